package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"research-compass/internal/domain"
	"research-compass/internal/domain/model"
	"research-compass/internal/domain/ports/adapter"
	"research-compass/internal/domain/ports/repository"
	"research-compass/internal/infra/metrics"
	"research-compass/internal/queue"
)

// ResourcePayload is the typed payload of a resource ingestion job.
type ResourcePayload struct {
	ResourceID string `json:"resourceId"`
}

// ResourceOptions tunes the ingestion pipeline. Zero values get defaults.
type ResourceOptions struct {
	Collection   string        // vector index collection
	ChunkSize    int           // window size in characters
	ChunkOverlap int           // overlap between consecutive windows
	ReplayDelay  time.Duration // pacing between summary fragments
}

func (o ResourceOptions) withDefaults() ResourceOptions {
	if o.Collection == "" {
		o.Collection = "resources"
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkOverlap <= 0 {
		o.ChunkOverlap = DefaultChunkOverlap
	}
	if o.ReplayDelay <= 0 {
		o.ReplayDelay = 80 * time.Millisecond
	}
	return o
}

// ResourcePipeline ingests one uploaded document: chunk, embed, index,
// summarize, recommend, done. Each transition emits a progress update on the
// queue's event bus.
type ResourcePipeline struct {
	resources  repository.ResourceRepository
	workspaces repository.WorkspaceRepository
	store      adapter.ObjectStore
	index      adapter.VectorIndex
	ai         adapter.ModelProvider
	opts       ResourceOptions
	log        *zerolog.Logger
}

func NewResourcePipeline(
	resources repository.ResourceRepository,
	workspaces repository.WorkspaceRepository,
	store adapter.ObjectStore,
	index adapter.VectorIndex,
	ai adapter.ModelProvider,
	opts ResourceOptions,
	logger *zerolog.Logger,
) *ResourcePipeline {
	pl := logger.With().Str("component", "ResourcePipeline").Logger()
	return &ResourcePipeline{
		resources:  resources,
		workspaces: workspaces,
		store:      store,
		index:      index,
		ai:         ai,
		opts:       opts.withDefaults(),
		log:        &pl,
	}
}

// Process is the queue worker function for resource jobs.
func (p *ResourcePipeline) Process(ctx context.Context, job *queue.Job, report queue.ProgressReporter) error {
	var payload ResourcePayload
	if err := job.UnmarshalPayload(&payload); err != nil {
		return queue.Permanent(fmt.Errorf("decode payload: %w", err))
	}

	res, err := p.resources.FindByID(ctx, nil, payload.ResourceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return queue.Permanent(fmt.Errorf("resource %s: %w", payload.ResourceID, err))
		}
		return fmt.Errorf("load resource: %w", err)
	}
	ws, err := p.workspaces.FindByID(ctx, nil, res.WorkspaceID)
	if err != nil {
		return fmt.Errorf("load workspace: %w", err)
	}

	text, err := p.fetchText(ctx, res)
	if err != nil {
		return err
	}

	report(model.ResourceProgress{Stage: model.StageChunk, Progress: 0})
	chunks := splitChunks(normalizeText(text), p.opts.ChunkSize, p.opts.ChunkOverlap)
	report(model.ResourceProgress{Stage: model.StageChunk, Progress: 100})

	if err := p.embed(ctx, res, chunks, report); err != nil {
		return err
	}
	report(model.ResourceProgress{Stage: model.StageIndex, Progress: 100})

	summary, err := p.summarize(ctx, res, ws, chunks)
	if err != nil {
		return err
	}

	p.replaySummary(ctx, summary, report)
	report(model.ResourceProgress{Stage: model.StageRecommendation, Recommendation: summary.Recommendation})
	report(model.ResourceProgress{Stage: model.StageDone, Progress: 100})
	return nil
}

// fetchText pulls the document from the object store. A missing object or
// non-text content is deterministic and fails the job without retries.
func (p *ResourcePipeline) fetchText(ctx context.Context, res *model.Resource) (string, error) {
	rc, err := p.store.Get(ctx, res.ExternalKey)
	if err != nil {
		if errors.Is(err, domain.ErrObjectMissing) {
			return "", queue.Permanent(fmt.Errorf("object %s: %w", res.ExternalKey, err))
		}
		return "", fmt.Errorf("fetch object %s: %w", res.ExternalKey, err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read object %s: %w", res.ExternalKey, err)
	}
	if !utf8.Valid(raw) {
		return "", queue.Permanent(fmt.Errorf("resource %s: %w", res.ID, domain.ErrUnreadableContent))
	}
	return string(raw), nil
}

// embed computes one vector per chunk, reporting fractional progress after
// every chunk. Upsert failures are logged and swallowed per point: a gap in
// retrieval coverage beats aborting the whole ingestion.
func (p *ResourcePipeline) embed(ctx context.Context, res *model.Resource, chunks []string, report queue.ProgressReporter) error {
	if len(chunks) == 0 {
		report(model.ResourceProgress{Stage: model.StageEmbed, Progress: 100})
		return nil
	}
	for i, ch := range chunks {
		vec, err := p.ai.Embed(ctx, ch)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", i, err)
		}
		report(model.ResourceProgress{
			Stage:    model.StageEmbed,
			Progress: float64(i+1) / float64(len(chunks)) * 100,
		})
		point := adapter.Point{
			ID:     uuid.NewString(),
			Vector: vec,
			Payload: map[string]any{
				"resourceId": res.ID,
				"content":    ch,
			},
		}
		if err := p.index.Upsert(ctx, p.opts.Collection, []adapter.Point{point}); err != nil {
			metrics.IncEmbeddingUpsertFailure()
			p.log.Error().Err(err).Str("resource_id", res.ID).Int("chunk", i).Msg("vector upsert failed, skipping point")
		}
	}
	return nil
}

// summarize asks for a structured summary + read recommendation from the
// first and last chunks, and persists both onto the resource row before any
// fragment is streamed.
func (p *ResourcePipeline) summarize(ctx context.Context, res *model.Resource, ws *model.Workspace, chunks []string) (adapter.Summary, error) {
	var first, last string
	if len(chunks) > 0 {
		first = chunks[0]
		last = chunks[len(chunks)-1]
	}
	req := adapter.SummaryRequest{
		First:  first,
		Last:   last,
		Theme:  ws.Theme,
		Intent: ws.Intent,
	}
	if idea := ws.PrimaryIdea(); idea != nil {
		req.Focus = idea.Name
	}
	summary, err := p.ai.Summarize(ctx, req)
	if err != nil {
		return adapter.Summary{}, fmt.Errorf("summarize: %w", err)
	}
	if err := p.resources.UpdateSummary(ctx, nil, res.ID, summary.Summary, summary.Recommendation, model.EmbeddingAvailable); err != nil {
		return adapter.Summary{}, fmt.Errorf("persist summary: %w", err)
	}
	return summary, nil
}

// replaySummary streams the stored summary word by word. The delay is purely
// presentational pacing.
func (p *ResourcePipeline) replaySummary(ctx context.Context, summary adapter.Summary, report queue.ProgressReporter) {
	report(model.ResourceProgress{Stage: model.StageSummarize, Fragment: ""})
	for _, word := range strings.Fields(summary.Summary) {
		report(model.ResourceProgress{Stage: model.StageSummarize, Fragment: word})
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.opts.ReplayDelay):
		}
	}
}
