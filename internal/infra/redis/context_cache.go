package redis

import (
	"context"
	"encoding/json"
	"errors"

	"research-compass/internal/domain"
	"research-compass/internal/domain/model"
	"research-compass/internal/infra/metrics"
)

// ContextCache holds the workspace snapshot (theme, intent, ideas) that every
// conversation job for the workspace reads. Cache-aside with no TTL: callers
// populate on miss; a workspace update invalidates explicitly. Concurrent
// population on a miss is a benign idempotent overwrite.
type ContextCache struct {
	client Client
}

func NewContextCache(client Client) *ContextCache {
	return &ContextCache{client: client}
}

func contextKey(workspaceID string) string {
	return "workspace:" + workspaceID + ":context"
}

// Get returns domain.ErrNotFound on a miss.
func (c *ContextCache) Get(ctx context.Context, workspaceID string) (*model.Workspace, error) {
	data, err := c.client.Get(ctx, contextKey(workspaceID))
	if err != nil {
		if errors.Is(err, Nil) {
			metrics.IncCacheMiss("workspace_context")
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var ws model.Workspace
	if err := json.Unmarshal([]byte(data), &ws); err != nil {
		return nil, err
	}
	metrics.IncCacheHit("workspace_context")
	return &ws, nil
}

func (c *ContextCache) Set(ctx context.Context, ws *model.Workspace) error {
	data, err := json.Marshal(ws)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, contextKey(ws.ID), data, 0)
}

// Invalidate drops the snapshot after the underlying workspace row changed.
func (c *ContextCache) Invalidate(ctx context.Context, workspaceID string) error {
	return c.client.Del(ctx, contextKey(workspaceID))
}
