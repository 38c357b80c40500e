// Package web holds the echo plumbing shared by the API and the engine gateway servers.
package web

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/virtualtutor/core"
	metricsvc "github.com/trezcool/virtualtutor/services/metrics"
)

type Options struct {
	Address        string
	Debug          bool
	TestMode       bool
	DisableReqLogs bool
	CORSOrigins    []string
	Logger         core.Logger
}

// Server is an echo server with graceful shutdown.
type Server struct {
	App      *echo.Echo
	opts     Options
	errors   chan error
	shutdown chan os.Signal
}

// NewServer returns a Server with the common middlewares installed; routes are registered on App.
func NewServer(opts Options) *Server {
	s := &Server{
		App:      echo.New(),
		opts:     opts,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	app := s.App
	app.HideBanner = true
	app.Debug = s.opts.Debug

	app.Pre(middleware.RemoveTrailingSlash())
	app.Use(RequestID())
	if !s.opts.DisableReqLogs {
		app.Use(RequestLogger(s.opts.Logger))
	}
	// do not recover in DEV|TEST mode
	if !(s.opts.Debug || s.opts.TestMode) {
		app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	app.Use(CORS(s.opts.CORSOrigins))
	app.Use(metricsvc.Middleware())

	app.GET("/metrics", metricsvc.Handler())
}

// SignalShutdown asks the Server to gracefully shut down.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) Start() {
	s.opts.Logger.Info("server listening on " + s.opts.Address)
	if err := s.App.Start(s.opts.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.App.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.App.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.App.ServeHTTP(w, r)
}
