package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/vtt-board-sync/internal/apperr"
	"github.com/DoyleJ11/vtt-board-sync/internal/service"
)

// Session headers set by the authenticating proxy in front of the server.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// Identity resolves the caller from the session headers. Websocket
// upgrades from browsers cannot set headers, so the user_id and role query
// parameters are accepted as a fallback.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		role := r.Header.Get(HeaderUserRole)
		if userID == "" {
			q := r.URL.Query()
			userID = strings.TrimSpace(q.Get("user_id"))
			role = q.Get("role")
		}
		if userID == "" {
			writeError(w, apperr.Unauthenticated("missing session"))
			return
		}
		id := service.Identity{UserID: userID, Role: service.ParseRole(role)}
		next.ServeHTTP(w, r.WithContext(service.WithIdentity(r.Context(), id)))
	})
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
