package api

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tendant/simple-vault/pkg/simplevault"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// FeedMessage is one event frame sent over the WebSocket
type FeedMessage struct {
	Kind  simplevault.EventKind `json:"kind"`
	Event simplevault.Event     `json:"event"`
}

// FeedHandler streams realtime events to WebSocket clients. A client only
// receives events about files it could see when the event was raised.
type FeedHandler struct {
	service  simplevault.Service
	upgrader websocket.Upgrader
}

func NewFeedHandler(service simplevault.Service, checkOrigin func(r *http.Request) bool) *FeedHandler {
	return &FeedHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// parseKinds reads ?kind=uploaded,updated; no parameter means every kind.
func parseKinds(raw string) ([]simplevault.EventKind, error) {
	if raw == "" {
		return simplevault.EventKinds, nil
	}
	var kinds []simplevault.EventKind
	for _, part := range strings.Split(raw, ",") {
		kind, err := simplevault.ParseEventKind(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if !slices.Contains(kinds, kind) {
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}

func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	callerID := caller(r)
	kinds, err := parseKinds(r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, r, "Invalid event kind", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, err := h.subscribe(ctx, kinds)
	if err != nil {
		writeError(w, r, "Failed to subscribe", err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket connection", "user_id", callerID, "err", err)
		return
	}
	defer conn.Close()
	slog.Info("WebSocket feed connected", "user_id", callerID, "kinds", kinds)

	go readPump(conn, cancel)
	writePump(ctx, conn, callerID, events)
	slog.Info("WebSocket feed closed", "user_id", callerID)
}

// subscribe merges the per-kind feeds into one channel closed with ctx
func (h *FeedHandler) subscribe(ctx context.Context, kinds []simplevault.EventKind) (<-chan simplevault.Event, error) {
	out := make(chan simplevault.Event, 16)
	for _, kind := range kinds {
		ch, err := h.service.Subscribe(ctx, kind)
		if err != nil {
			return nil, err
		}
		go func() {
			for event := range ch {
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	return out, nil
}

// readPump discards client frames and keeps the read deadline fresh on pong.
// Any read error means the client is gone.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.Debug("Failed to set read deadline", "err", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Unexpected WebSocket close", "err", err)
			}
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, callerID uuid.UUID, events <-chan simplevault.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Best effort; the connection is closing either way.
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
				slog.Debug("Failed to send close frame", "user_id", callerID, "err", err)
			}
			return

		case event := <-events:
			if !slices.Contains(event.Audience(), callerID) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(FeedMessage{Kind: event.Kind(), Event: event}); err != nil {
				slog.Error("Failed to write WebSocket event", "user_id", callerID, "err", err)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("Failed to send ping", "user_id", callerID, "err", err)
				return
			}
		}
	}
}
