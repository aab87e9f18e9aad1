package model

import "time"

type EmbeddingStatus string

const (
	EmbeddingPending   EmbeddingStatus = "PENDING"
	EmbeddingAvailable EmbeddingStatus = "AVAILABLE"
	EmbeddingFailed    EmbeddingStatus = "FAILED"
)

type ReadRecommendation string

const (
	RecommendationRead ReadRecommendation = "READ"
	RecommendationSkim ReadRecommendation = "SKIM"
	RecommendationSkip ReadRecommendation = "SKIP"
)

// Resource is an uploaded document attached to a workspace. The binary lives
// in the object store under ExternalKey; Content holds the generated summary
// once ingestion has run.
type Resource struct {
	ID              string             `json:"id"`
	WorkspaceID     string             `json:"workspaceId"`
	ExternalKey     string             `json:"externalKey"`
	FileName        string             `json:"fileName"`
	ContentType     string             `json:"contentType"`
	Content         string             `json:"content,omitempty"`
	Recommendation  ReadRecommendation `json:"recommendation,omitempty"`
	EmbeddingStatus EmbeddingStatus    `json:"embeddingStatus"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

func NewResource(id, workspaceID, externalKey, fileName, contentType string) *Resource {
	now := time.Now()
	return &Resource{
		ID:              id,
		WorkspaceID:     workspaceID,
		ExternalKey:     externalKey,
		FileName:        fileName,
		ContentType:     contentType,
		EmbeddingStatus: EmbeddingPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
