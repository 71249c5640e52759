package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"

	httpapi "github.com/yourorg/tokko-sync/http"
	"github.com/yourorg/tokko-sync/internal/logger"
	"github.com/yourorg/tokko-sync/internal/metrics"
)

func BuildRouter(lg *slog.Logger, deps httpapi.SyncDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.Requests(lg))
	r.Use(httprate.LimitByIP(30, 1*time.Minute)) // a run is expensive; keep triggers scarce
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"ok":true}`)) })
		httpapi.RegisterSync(r, deps)
	})
	return r
}
