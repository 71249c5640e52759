package logger

import (
	"context"
	"log/slog"
	"time"
)

// Poster is the part of *fluent.Fluent the handler uses.
type Poster interface {
	Post(tag string, message interface{}) error
}

// FluentHandler forwards records to Fluent Bit, tagged by level
// (<prefix>.info, <prefix>.error, ...).
type FluentHandler struct {
	out    Poster
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
}

func NewFluentHandler(out Poster, level slog.Leveler) *FluentHandler {
	return &FluentHandler{out: out, level: level}
}

func (h *FluentHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *FluentHandler) Handle(_ context.Context, r slog.Record) error {
	msg := make(map[string]interface{}, r.NumAttrs()+len(h.attrs)+3)
	msg["level"] = r.Level.String()
	msg["msg"] = r.Message
	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}
	msg["time"] = t.UTC().Format(time.RFC3339Nano)
	for _, a := range h.attrs {
		put(msg, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		put(msg, h.prefix, a)
		return true
	})
	return h.out.Post(levelTag(r.Level), msg)
}

func (h *FluentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		cp.attrs = append(cp.attrs, a)
	}
	return &cp
}

func (h *FluentHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	cp.prefix = h.prefix + name + "."
	return &cp
}

func put(msg map[string]interface{}, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, ga := range v.Group() {
			put(msg, prefix+a.Key+".", ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	switch v.Kind() {
	case slog.KindDuration:
		msg[prefix+a.Key] = v.Duration().String()
	case slog.KindTime:
		msg[prefix+a.Key] = v.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			msg[prefix+a.Key] = err.Error()
			return
		}
		msg[prefix+a.Key] = v.Any()
	default:
		msg[prefix+a.Key] = v.Any()
	}
}

func levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warn"
	case l >= slog.LevelInfo:
		return "info"
	}
	return "debug"
}
