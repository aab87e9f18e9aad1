package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"research-compass/internal/domain"
	"research-compass/internal/domain/model"
	"research-compass/internal/domain/ports/repository"
	"research-compass/internal/infra/redis"
	"research-compass/internal/pipeline"
	"research-compass/internal/queue"
)

// Compile-time check
var _ ConversationUseCase = (*conversationUC)(nil)

type ConversationUseCase interface {
	// Send persists the user's turn and enqueues the conversation job. The
	// returned job id is what streaming subscribers watch.
	Send(ctx context.Context, workspaceID, content string) (*model.Message, string, error)
	History(ctx context.Context, workspaceID string, limit int) ([]*model.Message, error)
}

type conversationUC struct {
	workspaces repository.WorkspaceRepository
	messages   repository.MessageRepository
	limiter    *redis.RateLimiter
	rateLimit  int
	rateWindow time.Duration
	jobs       *queue.Queue
	log        *zerolog.Logger
}

func NewConversationUseCase(
	workspaces repository.WorkspaceRepository,
	messages repository.MessageRepository,
	limiter *redis.RateLimiter,
	rateLimit int,
	rateWindow time.Duration,
	jobs *queue.Queue,
	logger *zerolog.Logger,
) *conversationUC {
	cl := logger.With().Str("component", "ConversationUseCase").Logger()
	return &conversationUC{
		workspaces: workspaces,
		messages:   messages,
		limiter:    limiter,
		rateLimit:  rateLimit,
		rateWindow: rateWindow,
		jobs:       jobs,
		log:        &cl,
	}
}

func (u *conversationUC) Send(ctx context.Context, workspaceID, content string) (*model.Message, string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, "", domain.ErrInvalidArgument
	}
	if _, err := u.workspaces.FindByID(ctx, nil, workspaceID); err != nil {
		return nil, "", err
	}

	if u.limiter != nil && u.rateLimit > 0 {
		ok, err := u.limiter.Allow(ctx, redis.WorkspaceTurnKey(workspaceID), u.rateLimit, u.rateWindow)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			return nil, "", domain.ErrRateLimited
		}
	}

	msg := model.NewMessage(uuid.NewString(), workspaceID, "user", content)
	if err := u.messages.Save(ctx, nil, msg); err != nil {
		return nil, "", err
	}

	jobID, err := u.jobs.Enqueue(ctx, pipeline.ConversationPayload{
		WorkspaceID: workspaceID,
		UserMessage: *msg,
	})
	if err != nil {
		return msg, "", err
	}
	u.log.Info().Str("workspace_id", workspaceID).Str("job_id", jobID).Msg("conversation turn queued")
	return msg, jobID, nil
}

func (u *conversationUC) History(ctx context.Context, workspaceID string, limit int) ([]*model.Message, error) {
	return u.messages.ListByWorkspace(ctx, nil, workspaceID, limit)
}
