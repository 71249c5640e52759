package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/tokko-sync/internal/store"
	"github.com/yourorg/tokko-sync/internal/syncer"
	"github.com/yourorg/tokko-sync/tokko"
)

const sampleMapping = `
post_types:
  candidates: [listing, es_property]
  default: listing
legacy_term_ids: true
taxonomy:
  es_type:
    Quinta: 300
    Casa: 900
fields:
  - key: es_property_bedrooms
    sources: [room_amount]
    transform: int
body_sources: [rich_description, description]
`

func TestParseMapping(t *testing.T) {
	m, err := ParseMapping([]byte(sampleMapping))
	require.NoError(t, err)
	assert.Equal(t, []string{"listing", "es_property"}, m.PostTypes.Candidates)

	tbl := m.TermTable()
	assert.Equal(t, store.TermID(300), tbl[tokko.AxisType]["quinta"])
	assert.Equal(t, store.TermID(900), tbl[tokko.AxisType]["casa"], "file overrides legacy id")
	assert.Equal(t, store.TermID(2), tbl[tokko.AxisCategory]["sale"])

	mp := m.Mapper()
	assert.Equal(t, []string{"rich_description", "description"}, mp.BodySources)
	p, err := tokko.Parse([]byte(`{"id": 1, "suite_amount": 2, "room_amount": 5}`))
	require.NoError(t, err)
	assert.Equal(t, "5", mp.Map(p).Meta["es_property_bedrooms"])
}

func TestParseMappingRejectsBadInput(t *testing.T) {
	_, err := ParseMapping([]byte("fields:\n  - key: x\n    sources: [a]\n    transform: upper\n"))
	assert.Error(t, err)
	_, err = ParseMapping([]byte("taxonomy:\n  es_colour: {red: 1}\n"))
	assert.Error(t, err)
	_, err = ParseMapping([]byte("fields: {"))
	assert.Error(t, err)
}

func TestNilMappingDefaults(t *testing.T) {
	var m *Mapping
	assert.Empty(t, m.TermTable())
	assert.Equal(t, tokko.DefaultFields(), m.Mapper().Fields)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	mappingPath := filepath.Join(dir, "mapping.yaml")
	require.NoError(t, os.WriteFile(mappingPath, []byte(sampleMapping), 0o600))
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("TOKKO_API_KEY=from-dotenv\nSYNC_BATCH_SIZE=5\n"), 0o600))

	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("TOKKO_PAGE_PAUSE", "2")
	t.Setenv("SYNC_USE_CACHE", "false")
	t.Setenv("MAPPING_FILE", mappingPath)
	// godotenv does not override variables that are already set
	t.Setenv("TOKKO_API_KEY", "from-env")
	t.Setenv("SYNC_BATCH_SIZE", "")
	require.NoError(t, os.Unsetenv("SYNC_BATCH_SIZE"))

	cfg, err := Load(envPath)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Tokko.APIKey)
	assert.Equal(t, 5, cfg.Sync.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Tokko.PagePause)
	assert.False(t, cfg.Sync.UseCache)
	assert.Equal(t, tokko.DefaultBaseURL, cfg.Tokko.BaseURL)
	assert.Equal(t, "listing", cfg.Sync.DefaultPostType)
	assert.Equal(t, []string{"listing", "es_property"}, cfg.Sync.PostTypeCandidates)
	require.NotNil(t, cfg.Mapping)
}

func TestLoadWithoutDotenv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("MAPPING_FILE", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, syncer.DefaultBatchSize, cfg.Sync.BatchSize)
	assert.Equal(t, syncer.DefaultPostTypeCandidates, cfg.Sync.PostTypeCandidates)
}

func TestValidate(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("PG_DSN", "")
	t.Setenv("MAPPING_FILE", "")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "PG_DSN")

	t.Setenv("STORE_BACKEND", "sqlite")
	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "unknown STORE_BACKEND")
}
