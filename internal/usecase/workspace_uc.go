package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"research-compass/internal/domain"
	"research-compass/internal/domain/model"
	"research-compass/internal/domain/ports/adapter"
	"research-compass/internal/domain/ports/repository"
	"research-compass/internal/infra/redis"
)

// Compile-time check
var _ WorkspaceUseCase = (*workspaceUC)(nil)

type WorkspaceUseCase interface {
	// Create saves a new workspace and seeds it with model-suggested ideas.
	// The first suggestion becomes the primary focus.
	Create(ctx context.Context, theme string, intent model.WorkspaceIntent) (*model.Workspace, error)
	Get(ctx context.Context, id string) (*model.Workspace, error)
	Update(ctx context.Context, id, theme string, intent model.WorkspaceIntent) (*model.Workspace, error)
	SetPrimaryIdea(ctx context.Context, workspaceID, ideaID string) (*model.Workspace, error)
}

type workspaceUC struct {
	workspaces repository.WorkspaceRepository
	txManager  repository.TransactionManager
	cache      *redis.ContextCache
	ai         adapter.ModelProvider
	log        *zerolog.Logger
}

func NewWorkspaceUseCase(workspaces repository.WorkspaceRepository, txManager repository.TransactionManager, cache *redis.ContextCache, ai adapter.ModelProvider, logger *zerolog.Logger) *workspaceUC {
	wl := logger.With().Str("component", "WorkspaceUseCase").Logger()
	return &workspaceUC{workspaces: workspaces, txManager: txManager, cache: cache, ai: ai, log: &wl}
}

func (u *workspaceUC) Create(ctx context.Context, theme string, intent model.WorkspaceIntent) (*model.Workspace, error) {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return nil, domain.ErrInvalidArgument
	}
	if intent != model.WorkspaceIntentLearn && intent != model.WorkspaceIntentResearch {
		return nil, domain.ErrInvalidArgument
	}

	ws := model.NewWorkspace(uuid.NewString(), theme, intent)

	suggestions, err := u.ai.SuggestIdeas(ctx, theme)
	if err != nil {
		// A workspace without seeded ideas is still usable; the user can add
		// their own lines of inquiry later.
		u.log.Warn().Err(err).Str("workspace_id", ws.ID).Msg("idea suggestion failed")
	}
	now := time.Now()
	for i, s := range suggestions {
		ws.Ideas = append(ws.Ideas, model.Idea{
			ID:          uuid.NewString(),
			WorkspaceID: ws.ID,
			Name:        s.Name,
			Description: s.Description,
			Primary:     i == 0,
			CreatedAt:   now,
		})
	}

	// The workspace row and its seeded idea rows land atomically.
	err = u.txManager.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return u.workspaces.Save(ctx, tx, ws)
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

func (u *workspaceUC) Get(ctx context.Context, id string) (*model.Workspace, error) {
	return u.workspaces.FindByID(ctx, nil, id)
}

func (u *workspaceUC) Update(ctx context.Context, id, theme string, intent model.WorkspaceIntent) (*model.Workspace, error) {
	ws, err := u.workspaces.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if theme = strings.TrimSpace(theme); theme != "" {
		ws.Theme = theme
	}
	if intent != "" {
		if intent != model.WorkspaceIntentLearn && intent != model.WorkspaceIntentResearch {
			return nil, domain.ErrInvalidArgument
		}
		ws.Intent = intent
	}
	if err := u.workspaces.Update(ctx, nil, ws); err != nil {
		return nil, err
	}
	u.invalidate(ctx, id)
	return ws, nil
}

func (u *workspaceUC) SetPrimaryIdea(ctx context.Context, workspaceID, ideaID string) (*model.Workspace, error) {
	if err := u.workspaces.SetPrimaryIdea(ctx, nil, workspaceID, ideaID); err != nil {
		return nil, err
	}
	u.invalidate(ctx, workspaceID)
	return u.workspaces.FindByID(ctx, nil, workspaceID)
}

// invalidate drops the cached context snapshot so the next conversation turn
// rehydrates from the database.
func (u *workspaceUC) invalidate(ctx context.Context, workspaceID string) {
	if err := u.cache.Invalidate(ctx, workspaceID); err != nil {
		u.log.Warn().Err(err).Str("workspace_id", workspaceID).Msg("invalidate context cache")
	}
}
