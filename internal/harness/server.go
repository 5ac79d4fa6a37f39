// Package harness is the local HTTP front end used by `trailctl serve`. It
// runs the same pipeline as the Lambda handler behind a chi router so that
// envelopes can be replayed with curl:
//
//	POST /invoke   CloudWatch Logs envelope in, batch summary out
//	GET  /rules    the compiled rule table, in evaluation order
//	GET  /healthz  liveness and build metadata
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"trailnotify/internal/config"
	"trailnotify/internal/notifier"
	"trailnotify/internal/rules"
)

// defaultRequestTimeout mirrors the Lambda function timeout.
const defaultRequestTimeout = 30 * time.Second

// Pipeline runs one awslogs.data payload through the notifier.
type Pipeline interface {
	ProcessData(ctx context.Context, data string) (*notifier.Summary, error)
}

var _ Pipeline = (*notifier.Notifier)(nil)

// Server holds the harness dependencies.
type Server struct {
	Pipeline Pipeline
	Rules    []rules.Rule
	Logger   *slog.Logger
	Build    config.BuildInfo

	// RequestTimeout bounds each request context. Zero uses the default.
	RequestTimeout time.Duration

	router *chi.Mux
}

// NewServer validates the dependencies and mounts the routes.
func NewServer(pipeline Pipeline, table []rules.Rule, logger *slog.Logger, build config.BuildInfo) (*Server, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Pipeline: pipeline,
		Rules:    table,
		Logger:   logger,
		Build:    build,
		router:   chi.NewRouter(),
	}
	s.MountRoutes()
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestTimeout() time.Duration {
	if s.RequestTimeout > 0 {
		return s.RequestTimeout
	}
	return defaultRequestTimeout
}
