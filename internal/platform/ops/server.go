// Package ops serves operational endpoints next to a long generation run.
package ops

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/leozzy13/Health-Benchmark/internal/platform/db"
	"github.com/leozzy13/Health-Benchmark/internal/platform/metrics"
)

type Server struct {
	echo   *echo.Echo
	addr   string
	logger zerolog.Logger
	errc   chan error
}

// NewServer wires /healthz to the store and /metrics to the run registry.
func NewServer(addr string, store db.Store, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(Recovery(logger))
	e.Use(AccessLog(logger))

	e.GET("/healthz", db.HealthHandler(store))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	return &Server{echo: e, addr: addr, logger: logger, errc: make(chan error, 1)}
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start binds the listener synchronously and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.echo.Listener = ln
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("ops server listening")

	go func() {
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("ops server error")
			s.errc <- err
		}
		close(s.errc)
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.echo.Listener == nil {
		return s.addr
	}
	return s.echo.Listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return err
	}
	if s.echo.Listener != nil {
		return <-s.errc
	}
	return nil
}
