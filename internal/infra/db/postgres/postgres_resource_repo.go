package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"research-compass/internal/domain"
	"research-compass/internal/domain/model"
	"research-compass/internal/domain/ports/repository"
)

var _ repository.ResourceRepository = (*ResourceRepo)(nil)

type ResourceRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresResourceRepo(pool *pgxpool.Pool) *ResourceRepo {
	return &ResourceRepo{pool: pool}
}

func (r *ResourceRepo) Save(ctx context.Context, qx any, res *model.Resource) error {
	const q = `
INSERT INTO resources (id, workspace_id, external_key, file_name, content_type, content, recommendation, embedding_status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),NULLIF($7,''),$8,COALESCE($9,NOW()),COALESCE($10,NOW()))
ON CONFLICT (id) DO UPDATE SET
  file_name = EXCLUDED.file_name,
  content_type = EXCLUDED.content_type,
  content = EXCLUDED.content,
  recommendation = EXCLUDED.recommendation,
  embedding_status = EXCLUDED.embedding_status,
  updated_at = EXCLUDED.updated_at;`
	_, err := execSQL(ctx, r.pool, qx, q,
		res.ID, res.WorkspaceID, res.ExternalKey, res.FileName, res.ContentType,
		res.Content, string(res.Recommendation), string(res.EmbeddingStatus),
		res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save resource: %w", err)
	}
	return nil
}

func (r *ResourceRepo) FindByID(ctx context.Context, qx any, id string) (*model.Resource, error) {
	const q = `
SELECT id, workspace_id, external_key, file_name, content_type, content, recommendation, embedding_status, created_at, updated_at
  FROM resources WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	res, err := scanResource(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan resource: %w", err)
	}
	return res, nil
}

func (r *ResourceRepo) ListByWorkspace(ctx context.Context, qx any, workspaceID string) ([]*model.Resource, error) {
	const q = `
SELECT id, workspace_id, external_key, file_name, content_type, content, recommendation, embedding_status, created_at, updated_at
  FROM resources WHERE workspace_id=$1 ORDER BY created_at ASC;`
	rows, err := pickRows(ctx, r.pool, qx, q, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()
	var out []*model.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *ResourceRepo) UpdateSummary(ctx context.Context, qx any, id, content string, rec model.ReadRecommendation, status model.EmbeddingStatus) error {
	const q = `UPDATE resources SET content=$2, recommendation=$3, embedding_status=$4, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, qx, q, id, content, string(rec), string(status))
	if err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ResourceRepo) UpdateEmbeddingStatus(ctx context.Context, qx any, id string, status model.EmbeddingStatus) error {
	const q = `UPDATE resources SET embedding_status=$2, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, qx, q, id, string(status))
	if err != nil {
		return fmt.Errorf("update embedding status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanResource(row pgx.Row) (*model.Resource, error) {
	var res model.Resource
	var content, rec sql.NullString
	var status string
	if err := row.Scan(&res.ID, &res.WorkspaceID, &res.ExternalKey, &res.FileName, &res.ContentType,
		&content, &rec, &status, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	res.Content = content.String
	res.Recommendation = model.ReadRecommendation(rec.String)
	res.EmbeddingStatus = model.EmbeddingStatus(status)
	return &res, nil
}
