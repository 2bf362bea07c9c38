package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/blankpage/blankpage/internal/domain"
	"github.com/blankpage/blankpage/internal/identity"
	"github.com/go-chi/chi/v5"
)

// maxRequestBodySize bounds the chat request body (1MB).
const maxRequestBodySize = 1 << 20

// chatRequest is the wire shape of a chat submission.
type chatRequest struct {
	Messages domain.Transcript `json:"messages"`
}

// Handler serves the chat endpoint, relaying the model reply as a streamed
// plain-text body.
type Handler struct {
	svc *Service
}

// NewHandler creates a chat HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.HandleChat)
}

// HandleChat handles POST /api/chat. On success the response is a
// text/plain stream flushed fragment by fragment; taxonomy errors map to
// 400/429/500 with brand-voice copy.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, MsgInvalidRequest)
		return
	}

	clientKey := ClientKey(r)
	slog.Info("Chat request", "client", clientKey, "messages", len(req.Messages))

	started := false
	flusher, canFlush := w.(http.Flusher)

	for frag, err := range h.svc.StreamReply(r.Context(), clientKey, req.Messages) {
		if err != nil {
			// Errors only occur before the first fragment; afterwards the
			// service ends the sequence silently.
			switch {
			case errors.Is(err, ErrInvalidRequest):
				writeError(w, http.StatusBadRequest, MsgInvalidRequest)
			case errors.Is(err, ErrRateLimited):
				writeError(w, http.StatusTooManyRequests, MsgRateLimit)
			default:
				writeError(w, http.StatusInternalServerError, MsgAIFailure)
			}
			return
		}

		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := w.Write([]byte(frag)); err != nil {
			// Consumer is gone; discard the rest of the stream.
			slog.Debug("Chat client disconnected mid-stream", "client", clientKey, "error", err)
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}

	if !started {
		// Model produced no text at all; still a successful empty reply.
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	}
}

// ClientKey resolves the rate-limit key for a request: the anonymous
// device id when present, else the remote IP. Keying by device id first
// keeps throttling stable behind shared NATs.
func ClientKey(r *http.Request) string {
	if id := identity.UserIDFromContext(r.Context()); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		slog.Debug("Failed to encode error response", "error", err)
	}
}
