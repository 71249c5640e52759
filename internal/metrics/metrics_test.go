package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, "2xx", classifyStatus(202))
	assert.Equal(t, "4xx", classifyStatus(429))
	assert.Equal(t, "5xx", classifyStatus(503))
	assert.Equal(t, "unknown", classifyStatus(99))
}

func TestHandlerExposesSyncMetrics(t *testing.T) {
	RecordRecord("created")
	RecordMedia("downloaded")
	RecordRun("ok", 3*time.Second)
	SetFetched(42)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `tokko_sync_records_total{action="created"}`)
	assert.Contains(t, body, `tokko_sync_media_total{result="downloaded"}`)
	assert.Contains(t, body, `tokko_sync_runs_total{outcome="ok"}`)
	assert.Contains(t, body, "tokko_sync_fetched_properties 42")
}
