package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Hour))
	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(v))

	now = now.Add(time.Hour)
	_, ok, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry expires exactly at ttl")

	require.NoError(t, m.Set(ctx, "forever", []byte("x"), 0))
	now = now.Add(24 * time.Hour)
	_, ok, _ = m.Get(ctx, "forever")
	assert.True(t, ok)

	require.NoError(t, m.Delete(ctx, "forever"))
	_, ok, _ = m.Get(ctx, "forever")
	assert.False(t, ok)
}

func TestMemoryTryLock(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	release, err := m.TryLock(ctx, "sync", time.Minute)
	require.NoError(t, err)

	_, err = m.TryLock(ctx, "sync", time.Minute)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, release(ctx))
	release2, err := m.TryLock(ctx, "sync", time.Minute)
	require.NoError(t, err)
	require.NoError(t, release2(ctx))
}

func TestErrorLog(t *testing.T) {
	ctx := context.Background()
	l := NewErrorLog(NewMemory())
	assert.Equal(t, "", l.Last(ctx))

	l.Record(ctx, "HTTP 500 - API request failed")
	assert.Equal(t, "HTTP 500 - API request failed", l.Last(ctx))

	require.NoError(t, l.Clear(ctx))
	assert.Equal(t, "", l.Last(ctx))

	var nilLog *ErrorLog
	nilLog.Record(ctx, "ignored")
	assert.Equal(t, "", nilLog.Last(ctx))
}
