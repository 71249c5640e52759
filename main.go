package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/yourorg/tokko-sync/http"
	"github.com/yourorg/tokko-sync/internal/app"
	"github.com/yourorg/tokko-sync/internal/config"
	"github.com/yourorg/tokko-sync/internal/refresh"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, "tokko-sync-api")
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer a.Close()

	// one worker: runs never overlap inside this process
	queue := refresh.New(1, 1, cfg.Sync.LockTTL, func(ctx context.Context, t refresh.Trigger) {
		a.Logger.Info("sync: async trigger", "reason", t.Reason, "queued_for", time.Since(t.RequestedAt))
		a.Job.Run(ctx)
	})

	router := BuildRouter(a.Logger, httpapi.SyncDeps{
		Job:    a.Job,
		Source: a.Source,
		Errors: a.Errors,
		Queue:  queue,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	a.Logger.Info("tokko-sync listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.Logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
