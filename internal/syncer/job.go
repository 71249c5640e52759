package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/tokko-sync/internal/cache"
	"github.com/yourorg/tokko-sync/internal/events"
	"github.com/yourorg/tokko-sync/internal/media"
	"github.com/yourorg/tokko-sync/internal/metrics"
	"github.com/yourorg/tokko-sync/internal/store"
	"github.com/yourorg/tokko-sync/tokko"
)

const (
	DefaultBatchSize  = 10
	DefaultBatchPause = 250 * time.Millisecond
	DefaultLockKey    = "tokko:sync:lock"
	DefaultLockTTL    = 30 * time.Minute

	LastReportKey = "tb_last_report"
	lastReportTTL = 7 * 24 * time.Hour
)

// Fetcher is the source side of a run.
type Fetcher interface {
	HasAPIKey() bool
	FetchAll(ctx context.Context, useCache bool) ([]json.RawMessage, error)
}

type Config struct {
	PostTypeCandidates []string
	DefaultPostType    string
	UseCache           bool
	BatchSize          int
	BatchPause         time.Duration
	LockKey            string
	LockTTL            time.Duration
}

// Job runs the whole pipeline: preconditions, fetch, then per-record
// parse, map, upsert, apply and media in fixed-size batches.
type Job struct {
	Fetcher  Fetcher
	Mapper   *tokko.Mapper
	Upserter *Upserter
	Media    *media.Resolver
	Store    store.Store
	Locker   cache.Locker
	Cache    cache.Cache
	Errors   *cache.ErrorLog
	Events   events.Publisher
	Logger   *slog.Logger
	Config   Config

	running  sync.Mutex
	defaults sync.Once
}

func (j *Job) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *Job) validate() error {
	if j == nil {
		return errors.New("nil sync job")
	}
	if j.Fetcher == nil {
		return errors.New("sync job missing fetcher")
	}
	if j.Store == nil || j.Upserter == nil {
		return errors.New("sync job requires store and upserter")
	}
	j.defaults.Do(j.applyDefaults)
	return nil
}

// applyDefaults runs once per Job; afterwards Run only reads Mapper and Config.
func (j *Job) applyDefaults() {
	if j.Mapper == nil {
		j.Mapper = tokko.NewMapper(nil)
	}
	if j.Config.BatchSize <= 0 {
		j.Config.BatchSize = DefaultBatchSize
	}
	if j.Config.BatchPause < 0 {
		j.Config.BatchPause = 0
	}
	if j.Config.LockKey == "" {
		j.Config.LockKey = DefaultLockKey
	}
	if j.Config.LockTTL <= 0 {
		j.Config.LockTTL = DefaultLockTTL
	}
}

// Run performs one sync and always returns a report; failures are listed in
// Report.Errors rather than returned.
func (j *Job) Run(ctx context.Context) Report {
	start := time.Now()
	rep := Report{RunID: uuid.NewString(), StartedAt: start}

	if err := j.validate(); err != nil {
		return j.abort(ctx, rep, err)
	}
	if !j.Fetcher.HasAPIKey() {
		return j.abort(ctx, rep, ErrMissingAPIKey)
	}
	postType, err := ResolvePostType(ctx, j.Store, j.Config.PostTypeCandidates, j.Config.DefaultPostType)
	if err != nil {
		return j.abort(ctx, rep, err)
	}
	rep.PostType = postType

	release, err := j.lock(ctx)
	if err != nil {
		return j.abort(ctx, rep, err)
	}
	defer release()

	lg := j.log().With("run_id", rep.RunID, "post_type", postType)
	lg.Info("sync: run started")

	raw, err := j.Fetcher.FetchAll(ctx, j.Config.UseCache)
	if err != nil {
		if errors.Is(err, tokko.ErrMissingAPIKey) {
			return j.abort(ctx, rep, ErrMissingAPIKey)
		}
		// transport failures keep whatever was fetched
		lg.Warn("sync: fetch incomplete", "fetched", len(raw), "err", err)
		rep.addError(err)
	}
	rep.Fetched = len(raw)
	metrics.SetFetched(len(raw))

	if len(raw) == 0 {
		if err == nil {
			rep.addError(ErrNoProperties)
			j.Errors.Record(ctx, ErrNoProperties.Error())
		}
		return j.finish(ctx, rep, start)
	}

	batch := j.Config.BatchSize
	for from := 0; from < len(raw); from += batch {
		if from > 0 && j.Config.BatchPause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(j.Config.BatchPause):
			}
		}
		if ctx.Err() != nil {
			rep.addError(fmt.Errorf("sync interrupted after %d of %d properties: %w", from, len(raw), ctx.Err()))
			break
		}
		to := from + batch
		if to > len(raw) {
			to = len(raw)
		}
		for _, obj := range raw[from:to] {
			j.processOne(ctx, lg, postType, obj, &rep)
		}
		lg.Debug("sync: batch done", "processed", to, "total", len(raw))
	}
	return j.finish(ctx, rep, start)
}

func (j *Job) processOne(ctx context.Context, lg *slog.Logger, postType string, raw json.RawMessage, rep *Report) {
	p, err := tokko.Parse(raw)
	if err != nil {
		j.fail(ctx, lg, rep, recordError(tokko.PeekID(raw), err))
		return
	}
	l := j.Mapper.Map(p)

	id, action, err := j.Upserter.Upsert(ctx, postType, UpsertInput{
		ExternalID: l.ExternalID,
		Title:      l.Title,
		Address:    l.Address,
		Body:       l.Body,
	})
	if err != nil {
		j.fail(ctx, lg, rep, err)
		return
	}
	switch action {
	case ActionCreated:
		rep.Imported++
	case ActionUpdated:
		rep.Updated++
	}
	metrics.RecordRecord(string(action))

	if err := j.Upserter.Apply(ctx, id, l); err != nil {
		j.fail(ctx, lg, rep, recordError(l.ExternalID, err))
		return
	}

	photos := 0
	if j.Media != nil && len(l.Photos) > 0 {
		g, err := j.Media.Attach(ctx, id, l.Photos)
		if err != nil && ctx.Err() == nil {
			lg.Warn("sync: gallery not attached", "record_id", id, "external_id", l.ExternalID, "err", err)
		}
		photos = len(g.IDs)
	}

	if j.Events != nil {
		j.Events.PublishRecordSynced(ctx, events.RecordSynced{
			RunID:      rep.RunID,
			RecordID:   int64(id),
			ExternalID: l.ExternalID,
			PostType:   postType,
			Action:     string(action),
			Photos:     photos,
			At:         time.Now(),
		})
	}
}

func (j *Job) fail(ctx context.Context, lg *slog.Logger, rep *Report, err error) {
	lg.Warn("sync: record failed", "err", err)
	j.Errors.Record(ctx, err.Error())
	rep.addError(err)
	metrics.RecordRecord("failed")
}

// lock takes the distributed lock when a Locker is configured, else an
// in-process one.
func (j *Job) lock(ctx context.Context) (func(), error) {
	if j.Locker == nil {
		if !j.running.TryLock() {
			return nil, ErrSyncInProgress
		}
		return j.running.Unlock, nil
	}
	unlock, err := j.Locker.TryLock(ctx, j.Config.LockKey, j.Config.LockTTL)
	if errors.Is(err, cache.ErrLocked) {
		return nil, ErrSyncInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := unlock(ctx); err != nil {
			j.log().Warn("sync: lock release failed", "err", err)
		}
	}, nil
}

func (j *Job) abort(ctx context.Context, rep Report, err error) Report {
	rep.Aborted = true
	rep.addError(err)
	rep.Elapsed = time.Since(rep.StartedAt)
	j.log().Error("sync: run aborted", "run_id", rep.RunID, "err", err)
	metrics.RecordRun(rep.outcome(), rep.Elapsed)
	if !errors.Is(err, ErrSyncInProgress) {
		j.Errors.Record(ctx, err.Error())
		j.saveReport(ctx, rep)
	}
	return rep
}

func (j *Job) finish(ctx context.Context, rep Report, start time.Time) Report {
	rep.Elapsed = time.Since(start)
	metrics.RecordRun(rep.outcome(), rep.Elapsed)

	// bookkeeping must survive a cancelled run context
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if rr, ok := j.Store.(store.RunRecorder); ok {
		err := rr.RecordRun(bg, store.Run{
			ID:         rep.RunID,
			PostType:   rep.PostType,
			StartedAt:  rep.StartedAt,
			FinishedAt: rep.StartedAt.Add(rep.Elapsed),
			Imported:   rep.Imported,
			Updated:    rep.Updated,
			Errors:     rep.Errors,
		})
		if err != nil {
			j.log().Warn("sync: run history not written", "run_id", rep.RunID, "err", err)
		}
	}
	j.saveReport(bg, rep)
	if j.Events != nil {
		j.Events.PublishRunFinished(bg, events.RunFinished{
			RunID:      rep.RunID,
			PostType:   rep.PostType,
			Imported:   rep.Imported,
			Updated:    rep.Updated,
			ErrorCount: len(rep.Errors),
			Elapsed:    rep.Elapsed,
			At:         time.Now(),
		})
	}
	j.log().Info("sync: run finished", "run_id", rep.RunID, "post_type", rep.PostType,
		"fetched", rep.Fetched, "imported", rep.Imported, "updated", rep.Updated,
		"errors", len(rep.Errors), "elapsed", rep.Elapsed.Round(time.Millisecond))
	return rep
}

func (j *Job) saveReport(ctx context.Context, rep Report) {
	if j.Cache == nil {
		return
	}
	b, err := json.Marshal(rep)
	if err != nil {
		return
	}
	if err := j.Cache.Set(ctx, LastReportKey, b, lastReportTTL); err != nil {
		j.log().Warn("sync: last report not saved", "err", err)
	}
}

// LastReport returns the most recent saved report.
func (j *Job) LastReport(ctx context.Context) (Report, bool) {
	if j.Cache == nil {
		return Report{}, false
	}
	b, ok, err := j.Cache.Get(ctx, LastReportKey)
	if err != nil || !ok {
		return Report{}, false
	}
	var rep Report
	if err := json.Unmarshal(b, &rep); err != nil {
		return Report{}, false
	}
	return rep, true
}

// PostType reports the post type the next run would use.
func (j *Job) PostType(ctx context.Context) (string, error) {
	return ResolvePostType(ctx, j.Store, j.Config.PostTypeCandidates, j.Config.DefaultPostType)
}

// RunEvery runs immediately and then on every interval tick until ctx ends.
func (j *Job) RunEvery(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		j.Run(ctx)
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	j.log().Info("sync: scheduler started", "interval", interval)
	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.log().Info("sync: scheduler stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
