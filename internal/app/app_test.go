package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/tokko-sync/internal/config"
	"github.com/yourorg/tokko-sync/internal/syncer"
)

func memoryConfig(baseURL string) *config.AppConfig {
	return &config.AppConfig{
		Tokko: config.TokkoConfig{APIKey: "k", BaseURL: baseURL, Lang: "es_ar", PageSize: 20},
		Sync: config.SyncConfig{
			UseCache:           true,
			BatchSize:          10,
			MaxPhotos:          20,
			PostTypeCandidates: syncer.DefaultPostTypeCandidates,
			DefaultPostType:    syncer.DefaultPostType,
		},
		Store: config.StoreConfig{Backend: "memory"},
		Log:   config.LogConfig{Level: "error"},
	}
}

func TestNewWiresMemoryBackends(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{"objects": []map[string]any{
			{"id": 1, "publication_title": "Casa uno", "operations": []any{}},
			{"id": 2, "publication_title": "Casa dos"},
			{"id": 3, "publication_title": "Casa tres"},
		}})
	}))
	defer srv.Close()

	a, err := New(context.Background(), memoryConfig(srv.URL), "test")
	require.NoError(t, err)
	defer a.Close()

	first := a.Job.Run(context.Background())
	require.False(t, first.Aborted, first.Errors)
	assert.Equal(t, syncer.DefaultPostType, first.PostType)
	assert.Equal(t, 3, first.Imported)

	second := a.Job.Run(context.Background())
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 3, second.Updated)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "second run reads the fetch cache")

	n, ok := a.Source.CachedCount(context.Background())
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	last, ok := a.Job.LastReport(context.Background())
	require.True(t, ok)
	assert.Equal(t, second.RunID, last.RunID)
}

func TestNewFailsOnUnreachableRedis(t *testing.T) {
	cfg := memoryConfig("http://127.0.0.1:1")
	cfg.Redis.Addr = "127.0.0.1:1"
	_, err := New(context.Background(), cfg, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}
