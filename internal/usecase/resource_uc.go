package usecase

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"research-compass/internal/domain"
	"research-compass/internal/domain/model"
	"research-compass/internal/domain/ports/adapter"
	"research-compass/internal/domain/ports/repository"
	"research-compass/internal/pipeline"
	"research-compass/internal/queue"
)

// Compile-time check
var _ ResourceUseCase = (*resourceUC)(nil)

type ResourceUseCase interface {
	// Upload stores the document, records the resource, and enqueues the
	// ingestion job. The returned job id is what progress subscribers watch.
	Upload(ctx context.Context, workspaceID, fileName, contentType string, r io.Reader, size int64) (*model.Resource, string, error)
	Get(ctx context.Context, id string) (*model.Resource, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*model.Resource, error)
}

type resourceUC struct {
	resources  repository.ResourceRepository
	workspaces repository.WorkspaceRepository
	store      adapter.ObjectStore
	jobs       *queue.Queue
	log        *zerolog.Logger
}

func NewResourceUseCase(
	resources repository.ResourceRepository,
	workspaces repository.WorkspaceRepository,
	store adapter.ObjectStore,
	jobs *queue.Queue,
	logger *zerolog.Logger,
) *resourceUC {
	rl := logger.With().Str("component", "ResourceUseCase").Logger()
	return &resourceUC{
		resources:  resources,
		workspaces: workspaces,
		store:      store,
		jobs:       jobs,
		log:        &rl,
	}
}

func (u *resourceUC) Upload(ctx context.Context, workspaceID, fileName, contentType string, r io.Reader, size int64) (*model.Resource, string, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" || r == nil {
		return nil, "", domain.ErrInvalidArgument
	}
	if _, err := u.workspaces.FindByID(ctx, nil, workspaceID); err != nil {
		return nil, "", err
	}

	res := model.NewResource(uuid.NewString(), workspaceID, uuid.NewString(), fileName, contentType)
	if err := u.store.Put(ctx, res.ExternalKey, r, size, contentType, fileName); err != nil {
		return nil, "", err
	}
	if err := u.resources.Save(ctx, nil, res); err != nil {
		return nil, "", err
	}

	jobID, err := u.jobs.Enqueue(ctx, pipeline.ResourcePayload{ResourceID: res.ID})
	if err != nil {
		// The upload itself succeeded; surface the enqueue failure so the
		// caller can retry ingestion without re-uploading.
		return res, "", err
	}
	u.log.Info().Str("resource_id", res.ID).Str("job_id", jobID).Msg("resource uploaded and queued")
	return res, jobID, nil
}

func (u *resourceUC) Get(ctx context.Context, id string) (*model.Resource, error) {
	return u.resources.FindByID(ctx, nil, id)
}

func (u *resourceUC) ListByWorkspace(ctx context.Context, workspaceID string) ([]*model.Resource, error) {
	return u.resources.ListByWorkspace(ctx, nil, workspaceID)
}
