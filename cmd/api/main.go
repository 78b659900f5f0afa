package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rfsouza01/contacthub/internal/config"
	"github.com/rfsouza01/contacthub/internal/db"
	httpx "github.com/rfsouza01/contacthub/internal/http"
	"github.com/rfsouza01/contacthub/internal/observability"
	"github.com/rfsouza01/contacthub/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	// local dev convenience; the file is absent in containers
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	if cfg.OTELEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(context.Background(), "contacthub", cfg.OTELEndpoint)

		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}

		defer func() {
			ctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()

			if err := shutdownTracer(ctx); err != nil {
				log.Error("tracer shutdown failed", "err", err)
			}
		}()
	}

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("database connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	migrateCtx, cancelMigrate := config.WithTimeout(30 * time.Second)

	err = db.Migrate(migrateCtx, cfg.DBURL)
	cancelMigrate()

	if err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	images, err := newImageStore(cfg)

	if err != nil {
		log.Error("image storage init failed", "err", err, "driver", cfg.StorageDriver)
		os.Exit(1)
	}

	router := httpx.NewRouter(cfg, log, pool, images)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "storage", cfg.StorageDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		err := srv.Shutdown(ctx)

		if err != nil {
			log.Error("graceful shutdown failed", "err", err)
			return
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

func newImageStore(cfg config.Config) (storage.Store, error) {
	switch cfg.StorageDriver {
	case "s3":
		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		return storage.NewS3Store(ctx, cfg)
	default:
		return storage.NewDiskStore(cfg.StorageDir, cfg.PublicAssetBaseURL)
	}
}
