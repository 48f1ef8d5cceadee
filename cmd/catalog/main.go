package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lyzr/mediacatalog/cmd/catalog/container"
	catalogmw "github.com/lyzr/mediacatalog/cmd/catalog/middleware"
	"github.com/lyzr/mediacatalog/cmd/catalog/repository"
	"github.com/lyzr/mediacatalog/cmd/catalog/routes"
	"github.com/lyzr/mediacatalog/common/bootstrap"
	"github.com/lyzr/mediacatalog/common/db"
	"github.com/lyzr/mediacatalog/common/server"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "catalog: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Bootstrap common components (DB, Redis, KV, logger, queue, telemetry)
	components, err := bootstrap.Setup(ctx, "catalog",
		bootstrap.WithDBInitHook(func(d *db.DB) error {
			return repository.Migrate(ctx, d)
		}),
	)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer components.Shutdown(context.Background())

	// Initialize service container (all stores and services created once)
	serviceContainer, err := container.NewContainer(ctx, components)
	if err != nil {
		return fmt.Errorf("service container: %w", err)
	}
	defer serviceContainer.Close()

	e := setupEcho()
	setupMiddleware(e, components)
	setupHealthCheck(e, components)
	routes.RegisterCatalogRoutes(e, serviceContainer)

	// The server and the event hub stop together
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serviceContainer.Run(gctx) })
	g.Go(func() error { return startServer(gctx, e, components) })
	return g.Wait()
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo, components *bootstrap.Components) {
	cfg := components.Config

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Service.CORSOrigins,
	}))
	e.Use(middleware.RequestID())
	e.Use(catalogmw.RequestContext())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.Service.MaxUploadMB)))
	e.Use(catalogmw.ExtractUsername())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", echo.WrapHandler(server.HealthHandler(components.Health)))
}

// startServer serves until ctx is cancelled, then drains connections
func startServer(ctx context.Context, e *echo.Echo, components *bootstrap.Components) error {
	cfg := components.Config
	components.Logger.Info("starting catalog", "port", cfg.Service.Port, "public_base_url", cfg.Service.PublicBaseURL)

	srv := server.New(cfg.Service.Name, cfg.Service.Port, e, components.Logger, server.Options{
		ReadTimeout:  cfg.Service.ReadTimeout,
		WriteTimeout: cfg.Service.WriteTimeout,
	})
	return srv.Start(ctx)
}
