package repository

import (
	"context"

	"research-compass/internal/domain/model"
)

type ResourceRepository interface {
	Save(ctx context.Context, qx any, res *model.Resource) error
	FindByID(ctx context.Context, qx any, id string) (*model.Resource, error)
	ListByWorkspace(ctx context.Context, qx any, workspaceID string) ([]*model.Resource, error)

	// UpdateSummary writes the generated summary, the read recommendation and
	// the embedding status in one statement.
	UpdateSummary(ctx context.Context, qx any, id, content string, rec model.ReadRecommendation, status model.EmbeddingStatus) error
	UpdateEmbeddingStatus(ctx context.Context, qx any, id string, status model.EmbeddingStatus) error
}
