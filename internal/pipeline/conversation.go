package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"research-compass/internal/domain"
	"research-compass/internal/domain/model"
	"research-compass/internal/domain/ports/adapter"
	"research-compass/internal/domain/ports/repository"
	"research-compass/internal/infra/metrics"
	red "research-compass/internal/infra/redis"
	"research-compass/internal/queue"
)

// ConversationPayload is the typed payload of a chat-turn job.
type ConversationPayload struct {
	WorkspaceID string        `json:"workspaceId"`
	UserMessage model.Message `json:"userMessage"`
}

// ConversationPipeline executes one chat turn: hydrate workspace context
// (cache-aside), assemble the prompt from the recent turn window, stream the
// model's reply as incremental updates, then persist.
type ConversationPipeline struct {
	workspaces repository.WorkspaceRepository
	messages   repository.MessageRepository
	cache      *red.ContextCache
	window     *red.TurnWindow
	ai         adapter.ModelProvider
	log        *zerolog.Logger
}

func NewConversationPipeline(
	workspaces repository.WorkspaceRepository,
	messages repository.MessageRepository,
	cache *red.ContextCache,
	window *red.TurnWindow,
	ai adapter.ModelProvider,
	logger *zerolog.Logger,
) *ConversationPipeline {
	pl := logger.With().Str("component", "ConversationPipeline").Logger()
	return &ConversationPipeline{
		workspaces: workspaces,
		messages:   messages,
		cache:      cache,
		window:     window,
		ai:         ai,
		log:        &pl,
	}
}

// Process is the queue worker function for conversation jobs.
func (p *ConversationPipeline) Process(ctx context.Context, job *queue.Job, report queue.ProgressReporter) error {
	var payload ConversationPayload
	if err := job.UnmarshalPayload(&payload); err != nil {
		return queue.Permanent(fmt.Errorf("decode payload: %w", err))
	}

	ws, err := p.hydrateContext(ctx, payload.WorkspaceID)
	if err != nil {
		return err
	}

	history, err := p.window.Recent(ctx, ws.ID, model.ConversationWindowSize)
	if err != nil {
		return fmt.Errorf("read turn window: %w", err)
	}

	msgs := make([]adapter.Message, 0, len(history)+2)
	msgs = append(msgs, adapter.Message{Role: "system", Content: systemPrompt(ws)})
	for _, m := range history {
		msgs = append(msgs, adapter.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, adapter.Message{Role: "user", Content: payload.UserMessage.Content})

	if n, err := p.ai.CountTokens(ctx, msgs); err == nil {
		metrics.AddPromptTokens("model", "chat", n)
	}

	assistantID := uuid.NewString()
	report(model.ConversationUpdate{Event: model.EventMeta, Data: assistantID})

	full, err := p.ai.ChatStream(ctx, msgs, func(delta string) error {
		report(model.ConversationUpdate{Event: model.EventMessage, Data: delta})
		return nil
	})
	if err != nil {
		return fmt.Errorf("chat stream: %w", err)
	}
	report(model.ConversationUpdate{Event: model.EventDone, Data: model.DoneSentinel})

	assistant := model.NewMessage(assistantID, ws.ID, "assistant", full)
	if err := p.window.Append(ctx, ws.ID, payload.UserMessage, *assistant); err != nil {
		p.log.Error().Err(err).Str("workspace_id", ws.ID).Msg("append turn window")
	}

	// Persistence is fire-and-forget relative to the response path: the live
	// stream is already complete on model output alone.
	go p.persist(assistant)
	return nil
}

func (p *ConversationPipeline) hydrateContext(ctx context.Context, workspaceID string) (*model.Workspace, error) {
	ws, err := p.cache.Get(ctx, workspaceID)
	if err == nil {
		return ws, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("context cache: %w", err)
	}
	ws, err = p.workspaces.FindByID(ctx, nil, workspaceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, queue.Permanent(fmt.Errorf("workspace %s: %w", workspaceID, err))
		}
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	// Concurrent first-turns may populate twice; the overwrite is idempotent.
	if err := p.cache.Set(ctx, ws); err != nil {
		p.log.Warn().Err(err).Str("workspace_id", workspaceID).Msg("populate context cache")
	}
	return ws, nil
}

func (p *ConversationPipeline) persist(msg *model.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.messages.Save(ctx, nil, msg); err != nil {
		p.log.Error().Err(err).Str("message_id", msg.ID).Msg("persist assistant message")
		return
	}
	p.log.Debug().Str("message_id", msg.ID).Msg("assistant message saved")
}

func systemPrompt(ws *model.Workspace) string {
	intent := "research the topic as a researcher familiar with the field"
	if ws.Intent == model.WorkspaceIntentLearn {
		intent = "learn more about the topic as a student"
	}
	ideas := make([]string, 0, len(ws.Ideas))
	for _, idea := range ws.Ideas {
		name := idea.Name
		if idea.Primary {
			name += " (primarily)"
		}
		ideas = append(ideas, name)
	}
	return fmt.Sprintf(`You are a helpful assistant. You are helping the user with their research on %s. The user is trying to %s, and they are currently focused on the following ideas: %s.

This system prompt is provided to give you more context on the user's intent and will be provided to you with every request, which will also include the last %d messages in the conversation. As far as possible, please try to consider every request from the user in terms of the "theme" of the conversation, the broad "ideas" or lines of inquiry that the user is considering, and finally, the line of inquiry they are *primarily* focused on at the moment.`,
		ws.Theme, intent, strings.Join(ideas, ", "), model.ConversationWindowSize)
}
