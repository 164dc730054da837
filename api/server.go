package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ontoforge.dev/async"
	"ontoforge.dev/config"
	"ontoforge.dev/metrics"
	"ontoforge.dev/store"
)

// Server bundles the echo instance with the dependencies its handlers need.
// It mirrors the teacher's minimal APIKeyAuth-protected echo server, widened
// to the lifecycle engine's surface: workspace/ontology/version CRUD, the
// synchronous C4/C5 endpoints, and the async C6-C9 submission endpoints.
type Server struct {
	echo *echo.Echo
	h    *Handlers
	cfg  config.ServerConfig
}

// NewServer wires a Handlers instance into a fresh echo server with the
// teacher's Logger/Recover/CORS middleware stack plus an optional API key
// check, and registers every route.
func NewServer(cfg config.ServerConfig, apiKey string, st *store.Store, runner *async.Runner, m *metrics.Metrics) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if apiKey != "" {
		e.Use(APIKeyAuth(apiKey))
	}

	h := &Handlers{Store: st, Runner: runner, Metrics: m}
	s := &Server{echo: e, h: h, cfg: cfg}
	s.routes()
	return s
}

// APIKeyAuth validates the X-API-Key header against a configured key,
// matching the teacher's api.APIKeyAuth contract exactly.
func APIKeyAuth(validKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get("X-API-Key")
			if key == "" || key != validKey {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing API key")
			}
			return next(c)
		}
	}
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.h.Health)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/v1")

	v1.POST("/workspaces", s.h.CreateWorkspace)
	v1.GET("/workspaces/:id", s.h.GetWorkspace)

	v1.POST("/workspaces/:workspaceId/ontologies", s.h.CreateOntology)
	v1.GET("/ontologies/:id", s.h.GetOntology)
	v1.GET("/workspaces/:workspaceId/ontologies", s.h.ListOntologies)
	v1.DELETE("/ontologies/:id", s.h.DeactivateOntology)

	v1.POST("/ontologies/:ontologyId/versions", s.h.CreateVersion)
	v1.GET("/versions/:id", s.h.GetVersion)
	v1.GET("/ontologies/:ontologyId/versions", s.h.ListVersions)
	v1.GET("/versions/:id/diff/:otherId", s.h.DiffVersions)
	v1.POST("/versions/:id/evaluate", s.h.EvaluateVersion)

	v1.POST("/tasks/compile", s.h.SubmitCompile)
	v1.POST("/tasks/deploy", s.h.SubmitDeploy)
	v1.POST("/tasks/drift", s.h.SubmitDrift)
	v1.POST("/tasks/regression", s.h.SubmitRegression)
	v1.GET("/tasks/:id", s.h.TaskStatus)
	v1.POST("/tasks/:id/cancel", s.h.CancelTask)

	v1.GET("/versions/:id/lifecycle", s.h.ListLifecycleEvents)
}

// Start runs the server until ctx is canceled, then shuts it down within the
// configured ShutdownTimeout — the same two-phase start/shutdown shape as
// the teacher's runServer, generalized to a caller-supplied context instead
// of a hardcoded signal.Notify call.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}
