package model

// Progress updates are transient broadcasts emitted while a job runs. They
// are published on the queue's event bus and never persisted.

type ResourceStage string

const (
	StageChunk          ResourceStage = "chunk"
	StageEmbed          ResourceStage = "embed"
	StageIndex          ResourceStage = "index"
	StageSummarize      ResourceStage = "summarize"
	StageRecommendation ResourceStage = "recommendation"
	StageDone           ResourceStage = "done"
	StageFailed         ResourceStage = "failed"
)

// ResourceProgress is one update from the ingestion pipeline. Progress is set
// for the chunk/embed/index/done stages, Fragment for summarize, and
// Recommendation for the recommendation stage. Progress always serializes so
// the 0% chunk update reaches subscribers as an explicit value.
type ResourceProgress struct {
	Stage          ResourceStage      `json:"stage"`
	Progress       float64            `json:"progress"`
	Fragment       string             `json:"fragment,omitempty"`
	Recommendation ReadRecommendation `json:"recommendation,omitempty"`
}

type ConversationEvent string

const (
	EventMeta    ConversationEvent = "meta"
	EventMessage ConversationEvent = "message"
	EventDone    ConversationEvent = "done"
	EventFailed  ConversationEvent = "failed"
)

// ConversationUpdate is one update from the conversation pipeline: meta
// carries the assistant message id, message carries one streamed delta, done
// is the terminal sentinel.
type ConversationUpdate struct {
	Event ConversationEvent `json:"event"`
	Data  string            `json:"data"`
}

// DoneSentinel is the data field of the terminal conversation update.
const DoneSentinel = "[DONE]"
