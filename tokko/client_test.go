package tokko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/tokko-sync/internal/cache"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func objects(from, n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{"id": from + i, "publication_title": fmt.Sprintf("Casa %d", from+i)}
	}
	return out
}

// pagedServer serves total objects in pages and answers failAt (offset) with 500.
func pagedServer(t *testing.T, total, failAt int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		q := r.URL.Query()
		assert.Equal(t, "secret", q.Get("key"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "es_ar", q.Get("lang"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		if failAt >= 0 && offset == failAt {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		n := total - offset
		if n > limit {
			n = limit
		}
		if n < 0 {
			n = 0
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"objects": objects(offset, n)})
	}))
}

func newTestClient(url string, c cache.Cache, errs ErrorRecorder) *Client {
	return NewClient(Config{APIKey: "secret", BaseURL: url, PageSize: 20}, c, errs, quietLogger())
}

func TestFetchAllPaginates(t *testing.T) {
	var calls int32
	srv := pagedServer(t, 45, -1, &calls)
	defer srv.Close()

	got, err := newTestClient(srv.URL, nil, nil).FetchAll(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, got, 45)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Equal(t, "44", PeekID(got[44]))
}

func TestFetchAllStopsOnEmptyPage(t *testing.T) {
	var calls int32
	srv := pagedServer(t, 40, -1, &calls)
	defer srv.Close()

	got, err := newTestClient(srv.URL, nil, nil).FetchAll(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, got, 40)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls), "two full pages and an empty one")
}

func TestFetchAllKeepsPartialResultsOnServerError(t *testing.T) {
	var calls int32
	srv := pagedServer(t, 60, 20, &calls)
	defer srv.Close()

	errs := cache.NewErrorLog(cache.NewMemory())
	got, err := newTestClient(srv.URL, nil, errs).FetchAll(context.Background(), false)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
	assert.Equal(t, 20, te.Offset)
	assert.Len(t, got, 20)
	assert.NotEmpty(t, errs.Last(context.Background()))
}

func TestFetchAllWithoutKey(t *testing.T) {
	var calls int32
	srv := pagedServer(t, 5, -1, &calls)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil, nil, quietLogger())
	got, err := c.FetchAll(context.Background(), true)
	require.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Empty(t, got)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestFetchAllUsesCache(t *testing.T) {
	var calls int32
	srv := pagedServer(t, 5, -1, &calls)
	defer srv.Close()

	ctx := context.Background()
	c := newTestClient(srv.URL, cache.NewMemory(), nil)

	first, err := c.FetchAll(ctx, true)
	require.NoError(t, err)
	second, err := c.FetchAll(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	n, ok := c.CachedCount(ctx)
	assert.True(t, ok)
	assert.Equal(t, 5, n)

	require.NoError(t, c.ClearCache(ctx))
	_, ok = c.CachedCount(ctx)
	assert.False(t, ok)

	_, err = c.FetchAll(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetchAllDoesNotCachePartialResults(t *testing.T) {
	var calls int32
	srv := pagedServer(t, 60, 20, &calls)
	defer srv.Close()

	ctx := context.Background()
	c := newTestClient(srv.URL, cache.NewMemory(), nil)
	_, err := c.FetchAll(ctx, true)
	require.Error(t, err)
	_, ok := c.CachedCount(ctx)
	assert.False(t, ok)
}
