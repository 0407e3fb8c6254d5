package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/adsbridge/internal/adapter/graph"
	"github.com/smallbiznis/adsbridge/internal/bootstrap"
	"github.com/smallbiznis/adsbridge/internal/config"
	httptransport "github.com/smallbiznis/adsbridge/internal/http"
	"github.com/smallbiznis/adsbridge/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/adsbridge/internal/http/middleware"
	apimiddleware "github.com/smallbiznis/adsbridge/internal/middleware"
	"github.com/smallbiznis/adsbridge/internal/repository"
	"github.com/smallbiznis/adsbridge/internal/server"
	authservice "github.com/smallbiznis/adsbridge/internal/service/auth"
	"github.com/smallbiznis/adsbridge/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP proxy",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newCredentialCache,
			newCredentialRepository,
			newGraphClient,
			newRateLimiter,
			authservice.NewService,
			newAuthHandler,
			handler.NewMetaHandler,
			httpmiddleware.NewGate,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startHTTPServer),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newCredentialCache(lc fx.Lifecycle, cfg config.Config) (repository.CredentialCache, error) {
	cache, closeFn, err := bootstrap.OpenCache(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: closeFn})
	return cache, nil
}

func newCredentialRepository(lc fx.Lifecycle, cfg config.Config, node *snowflake.Node, cache repository.CredentialCache, logger *zap.Logger) (repository.CredentialRepository, error) {
	repo, closeFn, err := bootstrap.OpenStore(context.Background(), cfg, node, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: closeFn})
	return bootstrap.WithCache(repo, cache, cfg, logger), nil
}

func newGraphClient(cfg config.Config, logger *zap.Logger) graph.Client {
	return graph.NewHTTPClient(cfg.GraphURL(), &http.Client{Timeout: cfg.UpstreamTimeout}, logger)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newAuthHandler(svc *authservice.Service, logger *zap.Logger) *handler.AuthHandler {
	return handler.NewAuthHandler(svc, logger)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
