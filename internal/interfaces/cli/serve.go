package cli

import (
	"context"
	"net"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/turtacn/embedscope/internal/application/embedding"
	"github.com/turtacn/embedscope/internal/config"
	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
	httpapi "github.com/turtacn/embedscope/internal/interfaces/http"
	"github.com/turtacn/embedscope/internal/interfaces/http/handlers"
	"github.com/turtacn/embedscope/internal/interfaces/http/middleware"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var noExport bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the point cloud over HTTP and follow configuration changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", cliCtx.Config.Server.Addr())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cliCtx, ln, serveOptions{noExport: noExport})
		},
	}
	cmd.Flags().BoolVar(&noExport, "no-export", false, "disable the snapshot export endpoint")
	return cmd
}

type serveOptions struct {
	engine   EngineOptions
	noExport bool
	// exporter replaces the MinIO repository.
	exporter embedding.SnapshotStore
}

// serve runs the API on ln until ctx is cancelled.  The session is started
// before the listener accepts requests; fetches outlive the request that
// issued them and end with ctx.
func serve(ctx context.Context, cliCtx *CLIContext, ln net.Listener, opts serveOptions) error {
	cfg := cliCtx.Config
	logger := cliCtx.Logger

	engine, err := NewEngine(ctx, cfg, logger, opts.engine)
	if err != nil {
		ln.Close()
		return err
	}
	defer engine.Close()

	checkers := []handlers.HealthChecker{}
	if cfg.Fetch.Policy == config.PolicyCacheFirst {
		checkers = append(checkers, handlers.HealthCheckFunc{ComponentName: "redis", Fn: engine.Ping})
	}

	exporter := opts.exporter
	if exporter == nil && !opts.noExport && cfg.ValidateMinIO() == nil {
		client, repo, err := openSnapshotRepository(ctx, cfg, logger)
		if err != nil {
			logger.Warn("snapshot export disabled", logging.Err(err))
		} else {
			defer client.Close()
			exporter = repo
			checkers = append(checkers, handlers.HealthCheckFunc{ComponentName: "minio", Fn: func(ctx context.Context) error {
				_, err := client.HealthCheck(ctx)
				return err
			}})
		}
	}

	if cliCtx.ConfigPath != "" {
		err := config.Watch(cliCtx.ConfigPath,
			func(next *config.Config) {
				h, err := engine.Reload(ctx, next)
				switch {
				case err != nil:
					logger.Warn("reloaded parameters rejected", logging.Err(err))
				case h != nil:
					logger.Info("configuration reloaded", logging.Uint64("generation", h.Generation()))
				}
			},
			func(err error) { logger.Warn("configuration reload failed", logging.Err(err)) })
		if err != nil {
			logger.Warn("configuration watch disabled", logging.Err(err))
		}
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.Server.AllowedOrigins
	routerCfg := httpapi.RouterConfig{
		Mode:              cfg.Server.Mode,
		HealthHandler:     handlers.NewHealthHandler(Version, checkers...),
		PointCloudHandler: handlers.NewPointCloudHandler(ctx, engine.Session, exporter, logger),
		Logging:           middleware.DefaultLoggingConfig(),
		Logger:            logger,
		HTTPRecorder:      engine.Metrics,
	}
	if len(cors.AllowedOrigins) > 0 {
		routerCfg.CORS = &cors
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsCollector = engine.Collector
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	if routerCfg.Mode == "" {
		routerCfg.Mode = gin.ReleaseMode
	}

	srv := httpapi.NewServer(httpapi.ServerConfig{
		Addr:            ln.Addr().String(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, httpapi.NewRouter(routerCfg), logger)

	engine.Session.Start(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		return err
	}
	return <-errCh
}
