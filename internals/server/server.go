// Package server is a read-only HTTP view of the logical screens held in the
// arena. It only runs when a debug address is configured.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/Oudwins/walletgate/internals/tasky"
	"github.com/Oudwins/walletgate/internals/timeouts"
)

type Server struct {
	Arena      *tasky.Arena
	Logger     *slog.Logger
	httpServer *http.Server
}

func New(arena *tasky.Arena, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{Arena: arena, Logger: logger.With(slog.String("component", "inspector"))}
}

// Start listens on addr and serves until ctx is done. It returns once the
// listener is open; the returned address is the one actually bound.
func (s *Server) Start(ctx context.Context, addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: timeouts.ServerRead,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error("inspector stopped", slog.String("error", err.Error()))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.ServerShutdown)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	bound := listener.Addr().String()
	s.Logger.Info("inspector listening", slog.String("addr", bound))
	return bound, nil
}
