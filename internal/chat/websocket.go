package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/blankpage/blankpage/internal/domain"
	"github.com/coder/websocket"
)

// WebSocketHandler relays chat replies over a WebSocket connection as an
// alternative to the plain-text POST stream. Each turn is one inbound
// JSON frame {"messages": [...]}; fragments come back as text frames and a
// {"done": true} control frame ends the turn.
type WebSocketHandler struct {
	svc   *Service
	isDev bool
}

// NewWebSocketHandler creates a WebSocket chat handler.
func NewWebSocketHandler(svc *Service, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{svc: svc, isDev: isDev}
}

type wsControl struct {
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientKey := ClientKey(r)
	slog.Info("WebSocket chat connection", "client", clientKey, "ip", r.RemoteAddr)

	opts := &websocket.AcceptOptions{}
	if h.isDev {
		// Dev servers run the page on a different port.
		opts.OriginPatterns = []string{"localhost:*", "127.0.0.1:*"}
	}
	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "client", clientKey)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "client", clientKey)
		}
	}()

	ctx := r.Context()
	for {
		var req chatRequest
		if err := readJSON(ctx, ws, &req); err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				return
			}
			h.writeControl(ctx, ws, wsControl{Error: MsgInvalidRequest})
			return
		}

		if err := h.relayTurn(ctx, ws, clientKey, req.Messages); err != nil {
			// Consumer is gone; leave the provider stream to be discarded.
			slog.Debug("WebSocket chat relay ended", "client", clientKey, "error", err)
			return
		}
	}
}

// relayTurn streams one reply over the connection. Returns an error only
// when the connection itself is unusable.
func (h *WebSocketHandler) relayTurn(ctx context.Context, ws *websocket.Conn, clientKey string, transcript domain.Transcript) error {
	for frag, err := range h.svc.StreamReply(ctx, clientKey, transcript) {
		if err != nil {
			msg := MsgAIFailure
			switch {
			case errors.Is(err, ErrInvalidRequest):
				msg = MsgInvalidRequest
			case errors.Is(err, ErrRateLimited):
				msg = MsgRateLimit
			}
			h.writeControl(ctx, ws, wsControl{Error: msg})
			return nil
		}
		if err := ws.Write(ctx, websocket.MessageText, []byte(frag)); err != nil {
			return err
		}
	}
	h.writeControl(ctx, ws, wsControl{Done: true})
	return nil
}

func (h *WebSocketHandler) writeControl(ctx context.Context, ws *websocket.Conn, c wsControl) {
	raw, err := json.Marshal(c)
	if err != nil {
		slog.Debug("Failed to marshal control frame", "error", err)
		return
	}
	if err := ws.Write(ctx, websocket.MessageText, raw); err != nil {
		slog.Debug("Failed to write control frame", "error", err)
	}
}

func readJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	_, raw, err := ws.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
