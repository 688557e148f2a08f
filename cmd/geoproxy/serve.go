package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/geoproxy/internal/allowlist"
	"github.com/vyrodovalexey/geoproxy/internal/config"
	"github.com/vyrodovalexey/geoproxy/internal/handler"
	"github.com/vyrodovalexey/geoproxy/internal/health"
	"github.com/vyrodovalexey/geoproxy/internal/observability"
	"github.com/vyrodovalexey/geoproxy/internal/proxy"
	"github.com/vyrodovalexey/geoproxy/internal/server"
	"github.com/vyrodovalexey/geoproxy/internal/tiles"
)

func newServeCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the proxy server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
}

// application holds all application components.
type application struct {
	config        *config.Config
	logger        observability.Logger
	table         *allowlist.Table
	metrics       *observability.Metrics
	tracer        *observability.Tracer
	health        *health.Handler
	server        *server.Server
	metricsServer *metricsServer
}

func runServe(ctx context.Context, flags *cliFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting geoproxy",
		observability.String("version", version),
		observability.String("config", flags.configPath),
	)

	app, err := newApplication(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.run(ctx)
}

// newApplication wires every component from cfg.
func newApplication(cfg *config.Config, logger observability.Logger) (*application, error) {
	table, err := allowlist.FromConfig(cfg.AllowList)
	if err != nil {
		return nil, fmt.Errorf("invalid allow-list: %w", err)
	}
	logger.Info("allow-list loaded", observability.Strings("apis", table.Keys()))

	metrics := observability.NewMetrics(cfg.Metrics.Namespace)
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	httpClient := proxy.NewHTTPClient(
		cfg.Upstream.Timeout.Duration(),
		cfg.Upstream.MaxIdleConns,
		cfg.Upstream.MaxIdleConnsPerHost,
		cfg.Upstream.IdleConnTimeout.Duration(),
	)
	client := proxy.NewClient(table,
		proxy.WithLogger(logger),
		proxy.WithHTTPClient(httpClient),
		proxy.WithTracerProvider(tracer.Provider()),
		proxy.WithMetricsRegisterer(metrics.Registry()),
		proxy.WithUserAgent(cfg.Upstream.UserAgent),
		proxy.WithPropagateUpstreamStatus(cfg.Proxy.PropagateUpstreamStatus),
	)

	routes := handler.New(client, tiles.NewFetcher(client, tiles.WithFetcherLogger(logger)),
		handler.WithLogger(logger),
		handler.WithSearchLanguage(cfg.Routes.SearchLanguage),
		handler.WithSearchDefaultLimit(cfg.Routes.SearchDefaultLimit),
	)

	probes := health.NewHandler(version,
		health.WithLogger(logger),
		health.WithMetricsRegisterer(metrics.Registry()),
	)
	probes.AddCheck(health.NewHealthCheckFunc("allowlist", func(context.Context) error {
		if table.Len() == 0 {
			return errors.New("allow-list is empty")
		}
		return nil
	}))

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithTracerProvider(tracer.Provider()),
		server.WithHealth(probes),
		server.WithRoutes(routes.Register),
	}
	app := &application{
		config:  cfg,
		logger:  logger,
		table:   table,
		metrics: metrics,
		tracer:  tracer,
		health:  probes,
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, server.WithMetrics(metrics))
		app.metricsServer = newMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, metrics, logger)
	}
	app.server = server.New(server.ConfigFrom(cfg.Server), opts...)

	return app, nil
}

// run serves until ctx is cancelled or a listener fails, then shuts
// everything down.
func (a *application) run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		if err := a.server.Start(ctx); err != nil {
			errCh <- err
		}
	}()
	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.Start(); err != nil {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("received shutdown signal")
	case runErr = <-errCh:
		a.logger.Error("listener failed", observability.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	a.shutdown(shutdownCtx)

	return runErr
}

func (a *application) shutdownTimeout() time.Duration {
	if d := a.config.Server.ShutdownTimeout.Duration(); d > 0 {
		return d
	}
	return config.DefaultShutdownTimeout
}

func (a *application) shutdown(ctx context.Context) {
	if a.metricsServer != nil {
		if err := a.metricsServer.Stop(ctx); err != nil {
			a.logger.Error("failed to stop metrics server gracefully", observability.Error(err))
		}
	}

	if err := a.server.Stop(ctx); err != nil {
		a.logger.Error("failed to stop server gracefully", observability.Error(err))
	}

	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	a.logger.Info("geoproxy stopped")
}
