package internal

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/exp/slog"
	"nhooyr.io/websocket"

	"manualpilot/drawsrv/internal/server"
)

const pingInterval = 45 * time.Second

// JoinRoute carries the drawing protocol over a websocket. Every binary
// message is a chunk of the same byte stream a TCP client would send.
func JoinRoute(logger *slog.Logger, srv *server.Server, origins []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := &websocket.AcceptOptions{
			OriginPatterns: origins,
		}

		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			logger.Debug("websocket upgrade failed", slog.String("remote", r.RemoteAddr), slog.String("reason", err.Error()))
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(pingInterval):
					if err := conn.Ping(ctx); err != nil {
						if ctx.Err() == nil {
							logger.Info("websocket ping failed", slog.String("remote", r.RemoteAddr))
							_ = conn.Close(websocket.StatusAbnormalClosure, "hello?")
						}
						return
					}
				}
			}
		}()

		srv.ServeConn(ctx, websocket.NetConn(ctx, conn, websocket.MessageBinary))
	}
}
