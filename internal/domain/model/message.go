package model

import "time"

// ConversationWindowSize caps how many prior turns are replayed into the
// prompt on each conversation job.
const ConversationWindowSize = 15

// Message is one conversational turn inside a workspace.
type Message struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Role        string    `json:"role"` // "user" | "assistant" | "system"
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}

func NewMessage(id, workspaceID, role, content string) *Message {
	return &Message{
		ID:          id,
		WorkspaceID: workspaceID,
		Role:        role,
		Content:     content,
		CreatedAt:   time.Now(),
	}
}
