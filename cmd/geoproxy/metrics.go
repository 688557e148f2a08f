package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vyrodovalexey/geoproxy/internal/observability"
)

// metricsServer serves Prometheus metrics on a dedicated port.
type metricsServer struct {
	server *http.Server
	path   string
	logger observability.Logger
}

func newMetricsServer(
	port int,
	path string,
	metrics *observability.Metrics,
	logger observability.Logger,
) *metricsServer {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())

	return &metricsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		path:   path,
		logger: logger,
	}
}

// Start serves until Stop is called.
func (m *metricsServer) Start() error {
	m.logger.Info("starting metrics server",
		observability.String("address", m.server.Addr),
		observability.String("metrics_path", m.path),
	)
	if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server error: %w", err)
	}
	return nil
}

// Stop shuts the metrics server down.
func (m *metricsServer) Stop(ctx context.Context) error {
	m.logger.Info("stopping metrics server")
	return m.server.Shutdown(ctx)
}
