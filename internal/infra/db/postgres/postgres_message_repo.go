package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"research-compass/internal/domain/model"
	"research-compass/internal/domain/ports/repository"
	"research-compass/internal/infra/security"
)

var _ repository.MessageRepository = (*MessageRepo)(nil)

// MessageRepo is the durable conversation log. Message bodies are encrypted
// at rest when an encryption service is configured.
type MessageRepo struct {
	pool          *pgxpool.Pool
	encryptionSvc *security.EncryptionService
}

func NewPostgresMessageRepo(pool *pgxpool.Pool, encryptionSvc *security.EncryptionService) *MessageRepo {
	return &MessageRepo{pool: pool, encryptionSvc: encryptionSvc}
}

func (r *MessageRepo) Save(ctx context.Context, qx any, m *model.Message) error {
	payload := m.Content
	encFlag := false
	if r.encryptionSvc != nil {
		enc, err := r.encryptionSvc.Encrypt(m.Content)
		if err != nil {
			return fmt.Errorf("encrypt message: %w", err)
		}
		payload = enc
		encFlag = true
	}
	const q = `
INSERT INTO messages (id, workspace_id, role, content, encrypted, created_at)
VALUES ($1,$2,$3,$4,$5,COALESCE($6,NOW()));`
	if _, err := execSQL(ctx, r.pool, qx, q, m.ID, m.WorkspaceID, m.Role, payload, encFlag, m.CreatedAt); err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// ListByWorkspace returns the newest limit messages in chronological order.
// limit <= 0 means no cap.
func (r *MessageRepo) ListByWorkspace(ctx context.Context, qx any, workspaceID string, limit int) ([]*model.Message, error) {
	const q = `
SELECT id, workspace_id, role, content, encrypted, created_at
  FROM (SELECT * FROM messages WHERE workspace_id=$1 ORDER BY created_at DESC LIMIT NULLIF($2,0)) latest
 ORDER BY created_at ASC;`
	if limit < 0 {
		limit = 0
	}
	rows, err := pickRows(ctx, r.pool, qx, q, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()
	var out []*model.Message
	for rows.Next() {
		var m model.Message
		var enc sql.NullBool
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.Role, &m.Content, &enc, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if enc.Valid && enc.Bool {
			if r.encryptionSvc == nil {
				return nil, fmt.Errorf("message %s is encrypted but no key is configured", m.ID)
			}
			plain, err := r.encryptionSvc.Decrypt(m.Content)
			if err != nil {
				return nil, fmt.Errorf("decrypt message: %w", err)
			}
			m.Content = plain
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
