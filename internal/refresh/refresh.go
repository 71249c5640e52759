package refresh

import (
    "context"
    "sync"
    "time"
)

// Trigger asks for one sync run. Triggers sharing a Key collapse while one is
// queued or running.
type Trigger struct {
    Key         string
    Reason      string
    RequestedAt time.Time
}

type Refresher struct {
    ch      chan Trigger
    inFly   sync.Map // key -> struct{}
    timeout time.Duration
    Do      func(ctx context.Context, t Trigger)
}

// New starts workerCount workers. timeout bounds each run; <= 0 means 30 minutes.
func New(capacity int, workerCount int, timeout time.Duration, do func(ctx context.Context, t Trigger)) *Refresher {
    if capacity <= 0 { capacity = 16 }
    if workerCount <= 0 { workerCount = 1 }
    if timeout <= 0 { timeout = 30 * time.Minute }
    r := &Refresher{ ch: make(chan Trigger, capacity), timeout: timeout, Do: do }
    for i := 0; i < workerCount; i++ {
        go r.worker()
    }
    return r
}

// Enqueue reports whether the trigger was accepted. A duplicate of an
// in-flight key or a saturated queue is refused.
func (r *Refresher) Enqueue(t Trigger) bool {
    if t.RequestedAt.IsZero() { t.RequestedAt = time.Now() }
    if _, exists := r.inFly.LoadOrStore(t.Key, struct{}{}); exists {
        return false
    }
    select {
    case r.ch <- t:
        return true
    default:
        // drop if saturated
        r.inFly.Delete(t.Key)
        return false
    }
}

// InFlight reports whether a trigger with key is queued or running.
func (r *Refresher) InFlight(key string) bool {
    _, ok := r.inFly.Load(key)
    return ok
}

func (r *Refresher) worker() {
    for t := range r.ch {
        ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
        func() {
            defer func() {
                r.inFly.Delete(t.Key)
                cancel()
            }()
            if r.Do != nil { r.Do(ctx, t) }
        }()
    }
}
