// Package http exposes the run, memory and stats commands over HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/insights"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/memory"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/orchestrator"
)

// Runner is the orchestrator surface the server needs.
type Runner interface {
	Run(ctx context.Context, query string) (*orchestrator.Outcome, error)
	Snapshot(ctx context.Context) (*memory.State, error)
	Reset(ctx context.Context) (*memory.State, error)
}

// Server provides HTTP endpoints for finagent.
type Server struct {
	echo    *echo.Echo
	runner  Runner
	logger  *zap.Logger
	config  *Config
	metrics *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// MetricsHandler serves /metrics. Nil means the default Prometheus
	// registry.
	MetricsHandler http.Handler
}

// requestValidator adapts go-playground/validator to echo.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// NewServer creates a new HTTP server.
func NewServer(runner Runner, logger *zap.Logger, cfg *Config) (*Server, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}

	s := &Server{
		echo:    e,
		runner:  runner,
		logger:  logger,
		config:  cfg,
		metrics: NewHTTPMetrics(logger),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	e.Use(s.metrics.MetricsMiddleware())

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(s.config.MetricsHandler))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/runs", s.handleRun)
	v1.GET("/memory", s.handleMemory)
	v1.POST("/memory/reset", s.handleReset)
	v1.GET("/stats", s.handleStats)
}

// RunRequest is the request body for POST /api/v1/runs.
type RunRequest struct {
	Query string `json:"query" validate:"required,max=200"`
}

// RunResponse is the response body for POST /api/v1/runs.
type RunResponse struct {
	Outcome *orchestrator.Outcome `json:"outcome"`
	Message string                `json:"message"`
	// Warning is set when the run was recorded but could not be saved.
	Warning string `json:"warning,omitempty"`
}

// ResetRequest is the request body for POST /api/v1/memory/reset.
type ResetRequest struct {
	Confirm bool `json:"confirm" validate:"required"`
}

// StatsQuery holds GET /api/v1/stats parameters.
type StatsQuery struct {
	Format string `query:"format" validate:"omitempty,oneof=text markdown json"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleRun triggers one orchestrated run.
func (s *Server) handleRun(c echo.Context) error {
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid run request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required and must be at most 200 characters")
	}

	outcome, err := s.runner.Run(c.Request().Context(), req.Query)
	if outcome != nil {
		resp := RunResponse{Outcome: outcome, Message: outcome.Summary()}
		if err != nil {
			resp.Warning = "run recorded but not persisted: " + err.Error()
		}
		return c.JSON(http.StatusOK, resp)
	}
	return s.runError(err)
}

func (s *Server) runError(err error) error {
	var execErr *orchestrator.ExecutionError
	switch {
	case errors.Is(err, orchestrator.ErrEmptyQuery):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.As(err, &execErr):
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	case errors.Is(err, memory.ErrStorageCorrupt):
		s.logger.Error("learning memory is corrupt", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "learning memory is corrupt; inspect or reset it")
	default:
		s.logger.Error("run failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "run failed")
	}
}

// handleMemory returns the persisted learning memory.
func (s *Server) handleMemory(c echo.Context) error {
	state, err := s.runner.Snapshot(c.Request().Context())
	if err != nil {
		return s.runError(err)
	}
	return c.JSON(http.StatusOK, state)
}

// handleReset clears all learning memory.
func (s *Server) handleReset(c echo.Context) error {
	var req ResetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "reset is irreversible; send {\"confirm\": true}")
	}

	state, err := s.runner.Reset(c.Request().Context())
	if err != nil {
		s.logger.Error("memory reset failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "memory reset failed")
	}
	s.logger.Info("memory reset via http",
		zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
	)
	return c.JSON(http.StatusOK, state)
}

// handleStats returns the learning report.
func (s *Server) handleStats(c echo.Context) error {
	var q StatsQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query")
	}
	if err := c.Validate(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "format must be text, markdown or json")
	}

	state, err := s.runner.Snapshot(c.Request().Context())
	if err != nil {
		return s.runError(err)
	}
	report := insights.Analyze(state)

	if q.Format == "" || q.Format == insights.FormatJSON {
		return c.JSON(http.StatusOK, report)
	}
	out, err := insights.FormatReport(report, q.Format)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if q.Format == insights.FormatMarkdown {
		return c.Blob(http.StatusOK, "text/markdown; charset=UTF-8", []byte(out))
	}
	return c.String(http.StatusOK, out)
}

// Echo exposes the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
