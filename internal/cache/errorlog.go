package cache

import (
	"context"
	"time"
)

const (
	LastErrorKey = "tb_last_error"
	LastErrorTTL = 5 * time.Minute
)

// ErrorLog keeps the most recent failure message so operators can read it
// independently of a given run.
type ErrorLog struct {
	Cache Cache
	TTL   time.Duration
}

func NewErrorLog(c Cache) *ErrorLog {
	return &ErrorLog{Cache: c, TTL: LastErrorTTL}
}

func (l *ErrorLog) Record(ctx context.Context, msg string) {
	if l == nil || l.Cache == nil || msg == "" {
		return
	}
	_ = l.Cache.Set(ctx, LastErrorKey, []byte(msg), l.TTL)
}

// Last returns "" when nothing failed recently.
func (l *ErrorLog) Last(ctx context.Context) string {
	if l == nil || l.Cache == nil {
		return ""
	}
	b, ok, err := l.Cache.Get(ctx, LastErrorKey)
	if err != nil || !ok {
		return ""
	}
	return string(b)
}

func (l *ErrorLog) Clear(ctx context.Context) error {
	if l == nil || l.Cache == nil {
		return nil
	}
	return l.Cache.Delete(ctx, LastErrorKey)
}
