package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"research-compass/internal/domain"
	"research-compass/internal/domain/model"
	"research-compass/internal/infra/logging"
)

const maxUploadBytes = 32 << 20 // 32 MiB

type workspaceCreateRequest struct {
	Question string `json:"question"`
	Intent   string `json:"intent"`
}

func (s *Server) handleWorkspaceCreate(w http.ResponseWriter, r *http.Request) {
	var req workspaceCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	intent := model.WorkspaceIntent(req.Intent)
	if intent == "" {
		intent = model.WorkspaceIntentResearch
	}
	ws, err := s.workspaceUC.Create(r.Context(), req.Question, intent)
	if err != nil {
		s.writeError(w, r, err, "Failed to create workspace")
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

func (s *Server) handleWorkspaceGet(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaceUC.Get(r.Context(), chi.URLParam(r, "workspaceID"))
	if err != nil {
		s.writeError(w, r, err, "Failed to get workspace")
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

type workspaceUpdateRequest struct {
	Theme  string `json:"theme"`
	Intent string `json:"intent"`
}

func (s *Server) handleWorkspaceUpdate(w http.ResponseWriter, r *http.Request) {
	var req workspaceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	ws, err := s.workspaceUC.Update(r.Context(), chi.URLParam(r, "workspaceID"), req.Theme, model.WorkspaceIntent(req.Intent))
	if err != nil {
		s.writeError(w, r, err, "Failed to update workspace")
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleSetPrimaryIdea(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaceUC.SetPrimaryIdea(r.Context(), chi.URLParam(r, "workspaceID"), chi.URLParam(r, "ideaID"))
	if err != nil {
		s.writeError(w, r, err, "Failed to set primary idea")
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleResourceUpload(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithWorkspaceID(r.Context(), chi.URLParam(r, "workspaceID"))
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	res, jobID, err := s.resourceUC.Upload(ctx,
		chi.URLParam(r, "workspaceID"),
		header.Filename,
		header.Header.Get("Content-Type"),
		file, header.Size)
	if err != nil {
		s.writeError(w, r, err, "Failed to upload resource")
		return
	}
	writeJSON(w, http.StatusAccepted, struct {
		Resource *model.Resource `json:"resource"`
		JobID    string          `json:"jobId"`
	}{res, jobID})
}

func (s *Server) handleResourceList(w http.ResponseWriter, r *http.Request) {
	resources, err := s.resourceUC.ListByWorkspace(r.Context(), chi.URLParam(r, "workspaceID"))
	if err != nil {
		s.writeError(w, r, err, "Failed to list resources")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data []*model.Resource `json:"data"`
	}{resources})
}

func (s *Server) handleResourceGet(w http.ResponseWriter, r *http.Request) {
	res, err := s.resourceUC.Get(r.Context(), chi.URLParam(r, "resourceID"))
	if err != nil {
		s.writeError(w, r, err, "Failed to get resource")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type conversationSendRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleConversationSend(w http.ResponseWriter, r *http.Request) {
	var req conversationSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	msg, jobID, err := s.conversationUC.Send(r.Context(), chi.URLParam(r, "workspaceID"), req.Message)
	if err != nil {
		s.writeError(w, r, err, "Failed to send message")
		return
	}
	writeJSON(w, http.StatusAccepted, struct {
		Message *model.Message `json:"message"`
		JobID   string         `json:"jobId"`
	}{msg, jobID})
}

func (s *Server) handleMessageList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	messages, err := s.conversationUC.History(r.Context(), chi.URLParam(r, "workspaceID"), limit)
	if err != nil {
		s.writeError(w, r, err, "Failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data []*model.Message `json:"data"`
	}{messages})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrRateLimited):
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg(fallback)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
