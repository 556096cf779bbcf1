package internal

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	"manualpilot/drawsrv/internal/server"
)

// Main builds the HTTP side of the server: health and status, the websocket
// transport and, when adminKey is set, signed admin actions.
func Main(logger *slog.Logger, instanceID string, srv *server.Server, adminKey ed25519.PublicKey, origins []string) chi.Router {
	router := chi.NewRouter()
	router.Use(mid(instanceID))
	router.Get("/health", health())
	router.Get("/status", StatusRoute(srv))
	router.Get("/users", UsersRoute(srv))
	router.Get("/ws", JoinRoute(logger.With(slog.String("transport", "websocket")), srv, origins))

	if adminKey != nil {
		verifier := NewRequestVerifier(adminKey)
		router.Post("/users/{id}/{action}", AdminUserRoute(logger, srv, verifier))
		router.Post("/snapshot", AdminSnapshotRoute(logger, srv, verifier))
	}

	return router
}

func health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func mid(instanceID string) func(http.Handler) http.Handler {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Server", "drawsrv")
			w.Header().Set("Instance-ID", instanceID)
			handler.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func StatusRoute(srv *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, srv.Status())
	}
}

func UsersRoute(srv *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users := srv.Users()
		if users == nil {
			users = []server.User{}
		}
		writeJSON(w, users)
	}
}

// AdminUserRoute applies kick, lock, unlock, op and deop to a logged in user.
// The request must be signed for "<action>:<id>".
func AdminUserRoute(logger *slog.Logger, srv *server.Server, verifier RequestVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action := chi.URLParam(r, "action")
		id := chi.URLParam(r, "id")

		subject, err := verifier(r)
		if err != nil || subject != action+":"+id {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		n, err := strconv.ParseUint(id, 10, 8)
		if err != nil || n == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		ctl := Control{Type: ControlType(action), User: uint8(n)}
		if ctl.Type == ControlForceSnapshot {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if err := apply(srv, ctl); err != nil {
			w.WriteHeader(controlStatus(err))
			return
		}

		logger.Info("admin action", slog.String("action", action), slog.Int("user", int(n)))
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminSnapshotRoute forces a new snapshot. The request must be signed for
// "force_snapshot".
func AdminSnapshotRoute(logger *slog.Logger, srv *server.Server, verifier RequestVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, err := verifier(r)
		if err != nil || subject != string(ControlForceSnapshot) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if err := apply(srv, Control{Type: ControlForceSnapshot}); err != nil {
			w.WriteHeader(controlStatus(err))
			return
		}

		logger.Info("admin action", slog.String("action", string(ControlForceSnapshot)))
		w.WriteHeader(http.StatusAccepted)
	}
}

func controlStatus(err error) int {
	switch {
	case errors.Is(err, server.ErrNoSuchUser), errors.Is(err, errUnknownControl):
		return http.StatusNotFound
	case errors.Is(err, server.ErrNoSession), errors.Is(err, server.ErrSnapshotInProgress):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
