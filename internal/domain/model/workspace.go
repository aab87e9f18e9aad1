package model

import "time"

type WorkspaceIntent string

const (
	WorkspaceIntentLearn    WorkspaceIntent = "LEARN"
	WorkspaceIntentResearch WorkspaceIntent = "RESEARCH"
)

// Idea is one line of inquiry inside a workspace. Exactly one idea per
// workspace is primary at any time.
type Idea struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Primary     bool      `json:"primary"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Workspace is the aggregate root for one research effort: the research
// question (theme), the user's intent, and the ideas under consideration.
type Workspace struct {
	ID        string          `json:"id"`
	Theme     string          `json:"theme"`
	Intent    WorkspaceIntent `json:"intent"`
	Ideas     []Idea          `json:"ideas"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func NewWorkspace(id, theme string, intent WorkspaceIntent) *Workspace {
	now := time.Now()
	return &Workspace{
		ID:        id,
		Theme:     theme,
		Intent:    intent,
		Ideas:     make([]Idea, 0, 3),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PrimaryIdea returns the current focus area, or nil when the workspace has
// no ideas yet.
func (w *Workspace) PrimaryIdea() *Idea {
	for i := range w.Ideas {
		if w.Ideas[i].Primary {
			return &w.Ideas[i]
		}
	}
	if len(w.Ideas) > 0 {
		return &w.Ideas[0]
	}
	return nil
}
