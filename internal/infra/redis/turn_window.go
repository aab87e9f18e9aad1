package redis

import (
	"context"
	"encoding/json"

	"research-compass/internal/domain/model"
)

// TurnWindow is the per-workspace rolling conversation history: an
// append-only Redis list read back capped to the most recent N turns.
type TurnWindow struct {
	client Client
}

func NewTurnWindow(client Client) *TurnWindow {
	return &TurnWindow{client: client}
}

func windowKey(workspaceID string) string {
	return "workspace:" + workspaceID + ":turns"
}

func (w *TurnWindow) Append(ctx context.Context, workspaceID string, msgs ...model.Message) error {
	vals := make([]string, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		vals = append(vals, string(b))
	}
	return w.client.RPush(ctx, windowKey(workspaceID), vals...)
}

// Recent returns up to n most recent turns, oldest first. Entries that fail
// to decode are skipped.
func (w *TurnWindow) Recent(ctx context.Context, workspaceID string, n int) ([]model.Message, error) {
	raw, err := w.client.LRange(ctx, windowKey(workspaceID), int64(-n), -1)
	if err != nil {
		return nil, err
	}
	out := make([]model.Message, 0, len(raw))
	for _, item := range raw {
		var m model.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
