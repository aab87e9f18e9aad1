package adapter

import "context"

// Point is one embedded chunk destined for the vector index.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// VectorIndex is the port for the vector database.
type VectorIndex interface {
	Upsert(ctx context.Context, collection string, points []Point) error
}
