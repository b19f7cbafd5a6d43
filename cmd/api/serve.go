package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/gallery/service/internal/config"
	"github.com/gallery/service/internal/db"
	"github.com/gallery/service/internal/posting"
)

func newServeCmd(cfg *config.Config, log *slog.Logger) *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), cfg, log, !skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply pending migrations on startup")
	return cmd
}

// app bundles the service with the resources it holds open.
type app struct {
	svc     *posting.Service
	objects *objectStore
	close   func()
}

func openApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	objects, err := openObjectStore(ctx, cfg.Storage)
	if err != nil {
		pool.Close()
		return nil, err
	}

	svc := posting.NewService(posting.NewRepository(pool), objects.gateway, posting.Options{
		Disk:      objects.disk,
		URLExpiry: cfg.Storage.URLExpiry,
		Logger:    log,
	})
	return &app{svc: svc, objects: objects, close: pool.Close}, nil
}

func runServer(ctx context.Context, cfg *config.Config, log *slog.Logger, migrate bool) error {
	if migrate {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
	}

	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	handler, err := newRouter(cfg, log, a.svc, a.objects)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr, "env", cfg.AppEnv, "storage", cfg.Storage.Driver,
			"write_guard", cfg.WriteGuardEnabled())
		log.Info("swagger UI available", "url", fmt.Sprintf("http://localhost:%s/swagger/", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
