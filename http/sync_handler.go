package httpapi

import (
    "context"
    "net/http"
    "time"

    "github.com/go-chi/chi/v5"
    "github.com/go-chi/render"

    "github.com/yourorg/tokko-sync/internal/refresh"
    "github.com/yourorg/tokko-sync/internal/syncer"
)

// maxErrorLines bounds the error messages echoed back to the operator.
const maxErrorLines = 10

// SyncTriggerKey dedupes async triggers: only one run may be queued.
const SyncTriggerKey = "tokko-sync"

type Runner interface {
    Run(ctx context.Context) syncer.Report
    LastReport(ctx context.Context) (syncer.Report, bool)
    PostType(ctx context.Context) (string, error)
}

type FetchCache interface {
    HasAPIKey() bool
    ClearCache(ctx context.Context) error
    CachedCount(ctx context.Context) (int, bool)
}

type LastError interface {
    Last(ctx context.Context) string
    Clear(ctx context.Context) error
}

type SyncDeps struct {
    Job    Runner
    Source FetchCache
    Errors LastError
    Queue  *refresh.Refresher
}

type runResponse struct {
    RunID          string   `json:"run_id"`
    PostType       string   `json:"post_type,omitempty"`
    Fetched        int      `json:"fetched"`
    Imported       int      `json:"imported"`
    Updated        int      `json:"updated"`
    ElapsedSeconds float64  `json:"elapsed_seconds"`
    Errors         []string `json:"errors"`
    ErrorCount     int      `json:"error_count"`
    Aborted        bool     `json:"aborted"`
}

func newRunResponse(rep syncer.Report) runResponse {
    errs := rep.Summary(maxErrorLines)
    if errs == nil { errs = []string{} }
    return runResponse{
        RunID:          rep.RunID,
        PostType:       rep.PostType,
        Fetched:        rep.Fetched,
        Imported:       rep.Imported,
        Updated:        rep.Updated,
        ElapsedSeconds: rep.ElapsedSeconds(),
        Errors:         errs,
        ErrorCount:     len(rep.Errors),
        Aborted:        rep.Aborted,
    }
}

func RegisterSync(r chi.Router, d SyncDeps) {
    r.Route("/sync", func(r chi.Router) {
        r.Post("/", func(w http.ResponseWriter, req *http.Request) {
            rep := d.Job.Run(req.Context())
            render.Status(req, runStatus(rep))
            render.JSON(w, req, newRunResponse(rep))
        })

        r.Post("/async", func(w http.ResponseWriter, req *http.Request) {
            if d.Queue == nil {
                render.Status(req, http.StatusNotImplemented)
                render.JSON(w, req, map[string]any{"error": "async_disabled"})
                return
            }
            ok := d.Queue.Enqueue(refresh.Trigger{Key: SyncTriggerKey, Reason: "http", RequestedAt: time.Now()})
            if !ok {
                render.Status(req, http.StatusConflict)
                render.JSON(w, req, map[string]any{"error": "sync_in_progress"})
                return
            }
            render.Status(req, http.StatusAccepted)
            render.JSON(w, req, map[string]any{"queued": true})
        })

        r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
            ctx := req.Context()
            out := map[string]any{}

            if pt, err := d.Job.PostType(ctx); err != nil {
                out["post_type_error"] = err.Error()
            } else {
                out["post_type"] = pt
            }

            if d.Source != nil {
                out["api_key_configured"] = d.Source.HasAPIKey()
                n, cached := d.Source.CachedCount(ctx)
                out["cache"] = map[string]any{"active": cached, "properties": n}
            }
            if d.Errors != nil {
                out["last_error"] = d.Errors.Last(ctx)
            }
            if rep, ok := d.Job.LastReport(ctx); ok {
                out["last_report"] = newRunResponse(rep)
            }
            if d.Queue != nil {
                out["queued"] = d.Queue.InFlight(SyncTriggerKey)
            }
            render.JSON(w, req, out)
        })

        r.Delete("/cache", func(w http.ResponseWriter, req *http.Request) {
            if d.Source == nil {
                render.JSON(w, req, map[string]any{"cleared": false})
                return
            }
            if err := d.Source.ClearCache(req.Context()); err != nil {
                render.Status(req, http.StatusBadGateway)
                render.JSON(w, req, map[string]any{"error": "cache_clear_failed", "detail": err.Error()})
                return
            }
            render.JSON(w, req, map[string]any{"cleared": true})
        })

        r.Delete("/last-error", func(w http.ResponseWriter, req *http.Request) {
            if d.Errors == nil {
                render.JSON(w, req, map[string]any{"cleared": false})
                return
            }
            if err := d.Errors.Clear(req.Context()); err != nil {
                render.Status(req, http.StatusBadGateway)
                render.JSON(w, req, map[string]any{"error": "last_error_clear_failed", "detail": err.Error()})
                return
            }
            render.JSON(w, req, map[string]any{"cleared": true})
        })
    })
}

func runStatus(rep syncer.Report) int {
    if !rep.Aborted { return http.StatusOK }
    for _, e := range rep.Errors {
        if e == syncer.ErrSyncInProgress.Error() { return http.StatusConflict }
    }
    return http.StatusUnprocessableEntity
}
