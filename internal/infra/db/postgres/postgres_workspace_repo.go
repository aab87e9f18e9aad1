package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"research-compass/internal/domain"
	"research-compass/internal/domain/model"
	"research-compass/internal/domain/ports/repository"
)

var _ repository.WorkspaceRepository = (*WorkspaceRepo)(nil)

// WorkspaceRepo persists workspaces and their idea rows. FindByID eager-loads
// the ideas ordered by creation time.
type WorkspaceRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresWorkspaceRepo(pool *pgxpool.Pool) *WorkspaceRepo {
	return &WorkspaceRepo{pool: pool}
}

func (r *WorkspaceRepo) Save(ctx context.Context, qx any, ws *model.Workspace) error {
	const q = `
INSERT INTO workspaces (id, theme, intent, created_at, updated_at)
VALUES ($1,$2,$3,COALESCE($4,NOW()),COALESCE($5,NOW()))
ON CONFLICT (id) DO UPDATE SET
  theme = EXCLUDED.theme,
  intent = EXCLUDED.intent,
  updated_at = EXCLUDED.updated_at;`
	if _, err := execSQL(ctx, r.pool, qx, q, ws.ID, ws.Theme, string(ws.Intent), ws.CreatedAt, ws.UpdatedAt); err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}
	for i := range ws.Ideas {
		if err := r.saveIdea(ctx, qx, &ws.Ideas[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *WorkspaceRepo) saveIdea(ctx context.Context, qx any, idea *model.Idea) error {
	const q = `
INSERT INTO ideas (id, workspace_id, name, description, is_primary, created_at)
VALUES ($1,$2,$3,$4,$5,COALESCE($6,NOW()))
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  description = EXCLUDED.description,
  is_primary = EXCLUDED.is_primary;`
	if _, err := execSQL(ctx, r.pool, qx, q, idea.ID, idea.WorkspaceID, idea.Name, idea.Description, idea.Primary, idea.CreatedAt); err != nil {
		return fmt.Errorf("save idea: %w", err)
	}
	return nil
}

func (r *WorkspaceRepo) FindByID(ctx context.Context, qx any, id string) (*model.Workspace, error) {
	const q = `SELECT id, theme, intent, created_at, updated_at FROM workspaces WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	var ws model.Workspace
	var intent string
	if err := row.Scan(&ws.ID, &ws.Theme, &intent, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan workspace: %w", err)
	}
	ws.Intent = model.WorkspaceIntent(intent)

	const qi = `SELECT id, name, description, is_primary, created_at FROM ideas WHERE workspace_id=$1 ORDER BY created_at ASC;`
	rows, err := pickRows(ctx, r.pool, qx, qi, id)
	if err != nil {
		return nil, fmt.Errorf("query ideas: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		idea := model.Idea{WorkspaceID: ws.ID}
		if err := rows.Scan(&idea.ID, &idea.Name, &idea.Description, &idea.Primary, &idea.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan idea: %w", err)
		}
		ws.Ideas = append(ws.Ideas, idea)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return &ws, nil
}

func (r *WorkspaceRepo) Update(ctx context.Context, qx any, ws *model.Workspace) error {
	const q = `UPDATE workspaces SET theme=$2, intent=$3, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, qx, q, ws.ID, ws.Theme, string(ws.Intent))
	if err != nil {
		return fmt.Errorf("update workspace: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetPrimaryIdea moves the primary flag in one statement so two concurrent
// calls cannot leave the workspace with zero or two primaries.
func (r *WorkspaceRepo) SetPrimaryIdea(ctx context.Context, qx any, workspaceID, ideaID string) error {
	const q = `UPDATE ideas SET is_primary = (id = $2) WHERE workspace_id = $1;`
	tag, err := execSQL(ctx, r.pool, qx, q, workspaceID, ideaID)
	if err != nil {
		return fmt.Errorf("set primary idea: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
