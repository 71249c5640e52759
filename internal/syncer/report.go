package syncer

import (
	"fmt"
	"math"
	"time"
)

// Report summarizes one run.
type Report struct {
	RunID     string        `json:"run_id"`
	PostType  string        `json:"post_type"`
	StartedAt time.Time     `json:"started_at"`
	Fetched   int           `json:"fetched"`
	Imported  int           `json:"imported"`
	Updated   int           `json:"updated"`
	Errors    []string      `json:"errors"`
	Elapsed   time.Duration `json:"elapsed"`
	// Aborted is set when a precondition failed and nothing was synced.
	Aborted bool `json:"aborted"`
}

func (r *Report) addError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

func (r Report) ElapsedSeconds() float64 {
	return math.Round(r.Elapsed.Seconds()*100) / 100
}

// Summary returns at most max error messages, followed by a "... and N more"
// line when some were left out.
func (r Report) Summary(max int) []string {
	if max <= 0 || len(r.Errors) <= max {
		return append([]string(nil), r.Errors...)
	}
	out := append([]string(nil), r.Errors[:max]...)
	return append(out, fmt.Sprintf("... and %d more", len(r.Errors)-max))
}

func (r Report) outcome() string {
	switch {
	case r.Aborted:
		return "aborted"
	case len(r.Errors) > 0:
		return "partial"
	}
	return "ok"
}
