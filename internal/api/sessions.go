package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/blankpage/blankpage/internal/domain"
	"github.com/blankpage/blankpage/internal/identity"
	"github.com/blankpage/blankpage/internal/store"
	"github.com/go-chi/chi/v5"
)

// maxSaveBodySize bounds a session-save request body (1MB).
const maxSaveBodySize = 1 << 20

// SessionHandler serves the saved-session endpoints for the paid tier.
type SessionHandler struct {
	repo store.Repository
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(repo store.Repository) *SessionHandler {
	return &SessionHandler{repo: repo}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.Save)
		r.Get("/", h.List)
		r.Delete("/{id}", h.Delete)
	})
}

type saveRequest struct {
	Title    string            `json:"title,omitempty"`
	Messages domain.Transcript `json:"messages"`
}

// Save handles POST /api/sessions. Saving an empty transcript is a no-op:
// no record is created and the gateway is never called.
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	ownerID := identity.UserIDFromContext(r.Context())
	if ownerID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSaveBodySize)
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Messages) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := req.Messages.Validate(); err != nil {
		Error(w, http.StatusBadRequest, "invalid transcript")
		return
	}

	sess, err := h.repo.SaveSession(r.Context(), ownerID, req.Title, req.Messages)
	if err != nil {
		slog.Error("Failed to save session", "owner_id", ownerID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save session")
		return
	}

	slog.Info("Session saved", "owner_id", ownerID, "session_id", sess.ID, "messages", len(sess.Messages))
	JSON(w, http.StatusCreated, sess)
}

// List handles GET /api/sessions, newest first.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := identity.UserIDFromContext(r.Context())
	if ownerID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessions, err := h.repo.ListSessions(r.Context(), ownerID)
	if err != nil {
		slog.Error("Failed to list sessions", "owner_id", ownerID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*domain.SavedSession{}
	}

	JSON(w, http.StatusOK, sessions)
}

// Delete handles DELETE /api/sessions/{id}. Deleting a nonexistent id is
// treated as already satisfied, not escalated.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := identity.UserIDFromContext(r.Context())
	if ownerID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.repo.DeleteSession(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		slog.Error("Failed to delete session", "session_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
