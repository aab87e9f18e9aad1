package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"research-compass/internal/queue"
	"research-compass/internal/usecase"
)

// Server exposes the public API: workspaces, resources, conversation turns,
// and the per-job SSE progress stream.
type Server struct {
	workspaceUC    usecase.WorkspaceUseCase
	resourceUC     usecase.ResourceUseCase
	conversationUC usecase.ConversationUseCase
	registry       *queue.Registry
	log            *zerolog.Logger
}

func NewServer(
	workspaceUC usecase.WorkspaceUseCase,
	resourceUC usecase.ResourceUseCase,
	conversationUC usecase.ConversationUseCase,
	registry *queue.Registry,
	logger *zerolog.Logger,
) *Server {
	sl := logger.With().Str("component", "web").Logger()
	return &Server{
		workspaceUC:    workspaceUC,
		resourceUC:     resourceUC,
		conversationUC: conversationUC,
		registry:       registry,
		log:            &sl,
	}
}

// Router builds the chi router with the ambient middleware stack.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(TraceID())
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/workspaces", func(r chi.Router) {
			r.Post("/", s.handleWorkspaceCreate)
			r.Route("/{workspaceID}", func(r chi.Router) {
				r.Get("/", s.handleWorkspaceGet)
				r.Patch("/", s.handleWorkspaceUpdate)
				r.Put("/ideas/{ideaID}/primary", s.handleSetPrimaryIdea)
				r.Post("/resources", s.handleResourceUpload)
				r.Get("/resources", s.handleResourceList)
				r.Post("/conversation", s.handleConversationSend)
				r.Get("/messages", s.handleMessageList)
			})
		})
		r.Get("/resources/{resourceID}", s.handleResourceGet)
		r.Get("/jobs/{queue}/{jobID}/events", s.handleJobEvents)
	})
	return r
}
