package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/DoyleJ11/vtt-board-sync/internal/apperr"
	"github.com/DoyleJ11/vtt-board-sync/internal/service"
	"github.com/DoyleJ11/vtt-board-sync/pkg/types"
)

const maxBodyBytes = 8 << 20

func GetState(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := service.IdentityFrom(r.Context())
		snap, err := svc.Snapshot(r.Context(), id)
		if err != nil {
			logFailure(log, err, id)
			writeError(w, err)
			return
		}
		writeData(w, http.StatusOK, snap)
	}
}

func PostState(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := service.IdentityFrom(r.Context())

		var body map[string]any
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&body); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, apperr.Validation("body", "too large"))
				return
			}
			writeError(w, apperr.Validation("body", "expected JSON object"))
			return
		}

		saved, err := svc.Save(r.Context(), id, body)
		if err != nil {
			logFailure(log, err, id)
			writeError(w, err)
			return
		}
		writeData(w, http.StatusOK, saved)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func logFailure(log *zap.Logger, err error, id service.Identity) {
	switch apperr.CodeOf(err) {
	case apperr.CodePersistence, apperr.CodeInternal:
		log.Error("request failed", zap.Error(err), zap.String("author_id", id.UserID))
	default:
		log.Debug("request rejected", zap.Error(err), zap.String("author_id", id.UserID))
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.CodeInternal, "encode response", err))
		return
	}
	writeJSON(w, status, types.Envelope{Success: true, Data: raw})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.HTTPStatus(err), types.Envelope{Success: false, Error: apperr.Public(err)})
}

func writeJSON(w http.ResponseWriter, status int, env types.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
