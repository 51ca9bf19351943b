// cmd/worker-manager/server.go
package main

import (
	"context"
	"net/http"
	"sort"
	"time"

	"template-verifier/internal/common/database"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel/trace"
)

// opsServer exposes liveness, readiness and metrics for the worker process.
type opsServer struct {
	echo      *echo.Echo
	pingers   map[string]database.Pinger
	version   string
	startTime time.Time
}

type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type readiness struct {
	Status     string                 `json:"status"`
	Version    string                 `json:"version,omitempty"`
	Uptime     string                 `json:"uptime"`
	Checks     map[string]checkResult `json:"checks"`
	ReportedAt time.Time              `json:"reportedAt"`
}

func newOpsServer(serviceName, version string, pingers map[string]database.Pinger, tp trace.TracerProvider) *opsServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(otelecho.Middleware(serviceName, otelecho.WithTracerProvider(tp)))

	s := &opsServer{echo: e, pingers: pingers, version: version, startTime: time.Now()}
	e.GET("/health", s.health)
	e.GET("/ready", s.ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return s
}

func (s *opsServer) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// ready pings every backing service; one failure makes the process unready.
func (s *opsServer) ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	status := readiness{
		Status:     "ready",
		Version:    s.version,
		Uptime:     time.Since(s.startTime).Round(time.Second).String(),
		Checks:     make(map[string]checkResult, len(s.pingers)),
		ReportedAt: time.Now(),
	}

	names := make([]string, 0, len(s.pingers))
	for name := range s.pingers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		start := time.Now()
		if err := s.pingers[name].Ping(ctx); err != nil {
			status.Status = "unready"
			status.Checks[name] = checkResult{Status: "unhealthy", Message: err.Error()}
			continue
		}
		status.Checks[name] = checkResult{Status: "healthy", Latency: time.Since(start).String()}
	}

	code := http.StatusOK
	if status.Status != "ready" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

func (s *opsServer) Start(addr string) error {
	err := s.echo.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *opsServer) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
