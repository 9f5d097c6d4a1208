package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/vtt-board-sync/internal/broadcast"
	"github.com/DoyleJ11/vtt-board-sync/internal/service"
	"github.com/DoyleJ11/vtt-board-sync/internal/ws"
)

type Deps struct {
	Service *service.Service
	// Hub is nil when push is disabled.
	Hub     *broadcast.Hub
	Channel string
	Log     *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(d.Log))

	// Public routes
	r.Get("/healthz", Healthz)

	r.Group(func(r chi.Router) {
		r.Use(Identity)
		r.Get("/state", GetState(d.Service, d.Log))
		r.Post("/state", PostState(d.Service, d.Log))
		if d.Hub != nil {
			r.Get("/ws", ws.Handler(d.Hub, d.Channel, d.Log))
		}
	})
	return r
}
