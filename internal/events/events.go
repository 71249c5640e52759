package events

import (
    "context"
    "sync"
    "time"
)

// RecordSynced is emitted once per record created or updated by a sync run.
type RecordSynced struct {
    RunID      string    `json:"run_id"`
    RecordID   int64     `json:"record_id"`
    ExternalID string    `json:"external_id"`
    PostType   string    `json:"post_type"`
    Action     string    `json:"action"`
    Photos     int       `json:"photos"`
    At         time.Time `json:"at"`
}

// RunFinished closes a sync run.
type RunFinished struct {
    RunID      string        `json:"run_id"`
    PostType   string        `json:"post_type"`
    Imported   int           `json:"imported"`
    Updated    int           `json:"updated"`
    ErrorCount int           `json:"error_count"`
    Elapsed    time.Duration `json:"elapsed_ns"`
    At         time.Time     `json:"at"`
}

type Publisher interface {
    PublishRecordSynced(ctx context.Context, evt RecordSynced)
    PublishRunFinished(ctx context.Context, evt RunFinished)
}

// InMemory buffers events for in-process consumers; a full buffer drops.
type InMemory struct {
    records chan RecordSynced
    runs    chan RunFinished
}

func NewInMemory(buffer int) *InMemory {
    if buffer <= 0 { buffer = 256 }
    return &InMemory{ records: make(chan RecordSynced, buffer), runs: make(chan RunFinished, 16) }
}

func (m *InMemory) PublishRecordSynced(_ context.Context, evt RecordSynced) {
    select { case m.records <- evt: default: }
}

func (m *InMemory) PublishRunFinished(_ context.Context, evt RunFinished) {
    select { case m.runs <- evt: default: }
}

func (m *InMemory) RecordSyncedEvents() <-chan RecordSynced { return m.records }

func (m *InMemory) RunFinishedEvents() <-chan RunFinished { return m.runs }

// Fanout publishes every event to each publisher in turn.
type Fanout []Publisher

func (f Fanout) PublishRecordSynced(ctx context.Context, evt RecordSynced) {
    for _, p := range f { if p != nil { p.PublishRecordSynced(ctx, evt) } }
}

func (f Fanout) PublishRunFinished(ctx context.Context, evt RunFinished) {
    for _, p := range f { if p != nil { p.PublishRunFinished(ctx, evt) } }
}

// Recorder keeps everything it receives, for callers that assert on or
// inspect published events after a run.
type Recorder struct {
    mu      sync.Mutex
    Records []RecordSynced
    Runs    []RunFinished
}

func (r *Recorder) PublishRecordSynced(_ context.Context, evt RecordSynced) {
    r.mu.Lock(); defer r.mu.Unlock()
    r.Records = append(r.Records, evt)
}

func (r *Recorder) PublishRunFinished(_ context.Context, evt RunFinished) {
    r.mu.Lock(); defer r.mu.Unlock()
    r.Runs = append(r.Runs, evt)
}

func (r *Recorder) Snapshot() ([]RecordSynced, []RunFinished) {
    r.mu.Lock(); defer r.mu.Unlock()
    return append([]RecordSynced(nil), r.Records...), append([]RunFinished(nil), r.Runs...)
}
