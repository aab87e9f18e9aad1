package repository

import (
	"context"

	"research-compass/internal/domain/model"
)

// WorkspaceRepository persists workspaces together with their ideas.
// FindByID eager-loads the idea rows.
type WorkspaceRepository interface {
	Save(ctx context.Context, qx any, ws *model.Workspace) error
	FindByID(ctx context.Context, qx any, id string) (*model.Workspace, error)
	Update(ctx context.Context, qx any, ws *model.Workspace) error
	SetPrimaryIdea(ctx context.Context, qx any, workspaceID, ideaID string) error
}
