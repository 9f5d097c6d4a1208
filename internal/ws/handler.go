// Package ws serves the push channel over websockets.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/DoyleJ11/vtt-board-sync/internal/broadcast"
	"github.com/DoyleJ11/vtt-board-sync/internal/service"
	"github.com/DoyleJ11/vtt-board-sync/pkg/types"
)

const (
	writeTimeout = 3 * time.Second
	outboxSize   = 16
)

// Handler upgrades an authenticated request and streams the events of one
// hub channel, projected for the caller's role. The server does not read
// from the socket; clients push writes over POST /state.
func Handler(h *broadcast.Hub, channel string, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := service.IdentityFrom(r.Context())
		if !ok {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		if name := r.URL.Query().Get("channel"); name != "" && name != channel {
			http.Error(w, "unknown channel", http.StatusNotFound)
			return
		}

		ch, err := h.Ensure(r.Context(), channel)
		if err != nil {
			http.Error(w, "push unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan broadcast.Event, outboxSize)
		clientID := uuid.NewString()
		log := log.With(zap.String("client_id", clientID), zap.String("channel", channel))

		select {
		case ch.Inbox() <- broadcast.Join{ClientID: clientID, Role: id.Role, Outbox: out}:
		case <-ch.Done():
			return
		}
		defer func() {
			select {
			case ch.Inbox() <- broadcast.Leave{ClientID: clientID}:
			case <-ch.Done():
			}
		}()

		// nothing is read; CloseRead handles control frames and ends ctx on close
		ctx := conn.CloseRead(r.Context())

		if err := write(ctx, conn, types.PushMessage{Type: types.PushHello, ClientID: clientID}); err != nil {
			return
		}
		log.Debug("push client joined", zap.String("author_role", string(id.Role)))

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-out:
				if !ok {
					// dropped as slow or channel shut down; the client falls back to polling
					conn.Close(websocket.StatusTryAgainLater, "dropped")
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					log.Warn("encode event", zap.Error(err))
					continue
				}
				if err := write(ctx, conn, types.PushMessage{Type: types.PushChanged, Event: payload}); err != nil {
					log.Debug("push write failed", zap.Error(err))
					return
				}
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.PushMessage) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
