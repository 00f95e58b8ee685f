package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/codive/internal/hub"
	"github.com/DoyleJ11/codive/internal/lobby"
	"github.com/DoyleJ11/codive/pkg/types"
)

const guestCookie = "guest_id"

// Handler serves /ws/{code} for the dev server. Only the room creator's
// socket, identified by the guest_id cookie, may start the room.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		lb, ok := h.Lobby(r.Context(), code)
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		host := false
		if c, err := r.Cookie(guestCookie); err == nil && c.Value == hub.HostID(code) {
			host = true
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan types.RoomEvent, 8)
		clientID := uuid.NewString()

		if !lb.Send(lobby.Join{ClientID: clientID, Outbox: out}) {
			return
		}
		defer lb.Send(lobby.Leave{ClientID: clientID})
		log.Debug("room socket joined", zap.String("room", code), zap.String("client", clientID), zap.Bool("host", host))

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for ev := range out {
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				err := conn.Write(ctx, websocket.MessageText, types.EncodeRoomEvent(ev))
				cancel()
				if err != nil {
					return
				}
			}
			// Outbox closed: dropped as slow, or the room is gone.
			conn.Close(websocket.StatusGoingAway, "room closed")
		}()

		// Start commands are cheap to spam; one per second is plenty.
		limiter := rate.NewLimiter(rate.Every(time.Second), 2)

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				if !IsNormalClose(err) {
					log.Debug("room socket closed", zap.String("client", clientID), zap.Error(err))
				}
				return
			}
			if !types.IsStartCommand(data) || !limiter.Allow() {
				continue
			}
			if !host {
				log.Info("start from non-host ignored", zap.String("room", code), zap.String("client", clientID))
				continue
			}
			lb.Send(lobby.Start{})
		}
	}
}
