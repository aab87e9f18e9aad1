package repository

import (
	"context"

	"research-compass/internal/domain/model"
)

type MessageRepository interface {
	Save(ctx context.Context, qx any, msg *model.Message) error
	ListByWorkspace(ctx context.Context, qx any, workspaceID string, limit int) ([]*model.Message, error)
}
