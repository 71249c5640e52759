package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/yourorg/tokko-sync/internal/app"
	"github.com/yourorg/tokko-sync/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(rootCtx, cfg, "tokko-syncer")
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer a.Close()

	if cfg.Sync.RunOnce || cfg.Sync.Interval <= 0 {
		rep := a.Job.Run(rootCtx)
		for _, line := range rep.Summary(10) {
			a.Logger.Warn("sync error", "detail", line)
		}
		if rep.Aborted {
			a.Close()
			os.Exit(1)
		}
		return
	}

	if err := a.Job.RunEvery(rootCtx, cfg.Sync.Interval); err != nil {
		a.Logger.Error("sync scheduler stopped", "err", err)
	}
}
