package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"

	"github.com/yourorg/tokko-sync/internal/env"
	"github.com/yourorg/tokko-sync/internal/syncer"
	"github.com/yourorg/tokko-sync/tokko"
)

type TokkoConfig struct {
	APIKey    string
	BaseURL   string
	Lang      string
	PageSize  int
	PagePause time.Duration
	CacheTTL  time.Duration
}

type SyncConfig struct {
	UseCache           bool
	BatchSize          int
	BatchPause         time.Duration
	MaxPhotos          int
	LockTTL            time.Duration
	Interval           time.Duration
	RunOnce            bool
	MediaRatePerSec    float64
	PostTypeCandidates []string
	DefaultPostType    string
}

type StoreConfig struct {
	Backend string // postgres | memory
	PGDSN   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type FluentBitConfig struct {
	Enabled bool
	Host    string
	Port    int
}

type LogConfig struct {
	Level  string
	Format string // text | json
}

// AppConfig is everything the binaries need.
type AppConfig struct {
	Tokko     TokkoConfig
	Sync      SyncConfig
	Store     StoreConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	FluentBit FluentBitConfig
	Log       LogConfig
	Port      string
	Mapping   *Mapping
}

// Load reads an optional .env file, then the environment, then the optional
// YAML mapping file named by MAPPING_FILE.
func Load(envPath ...string) (*AppConfig, error) {
	if err := godotenv.Load(envPath...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	} else if err != nil {
		slog.Debug("config: no .env file, using environment only")
	}

	cfg := &AppConfig{
		Tokko: TokkoConfig{
			APIKey:    env.Get("TOKKO_API_KEY", ""),
			BaseURL:   env.Get("TOKKO_API_BASE", tokko.DefaultBaseURL),
			Lang:      env.Get("TOKKO_LANG", tokko.DefaultLang),
			PageSize:  env.GetInt("TOKKO_PAGE_SIZE", tokko.DefaultPageSize),
			PagePause: env.GetDuration("TOKKO_PAGE_PAUSE", tokko.DefaultPagePause),
			CacheTTL:  env.GetDuration("TOKKO_CACHE_TTL", tokko.CacheTTL),
		},
		Sync: SyncConfig{
			UseCache:           env.GetBool("SYNC_USE_CACHE", true),
			BatchSize:          env.GetInt("SYNC_BATCH_SIZE", syncer.DefaultBatchSize),
			BatchPause:         env.GetDuration("SYNC_BATCH_PAUSE", syncer.DefaultBatchPause),
			MaxPhotos:          env.GetInt("SYNC_MAX_PHOTOS", tokko.MaxPhotos),
			LockTTL:            env.GetDuration("SYNC_LOCK_TTL", syncer.DefaultLockTTL),
			Interval:           env.GetDuration("SYNC_INTERVAL", 0),
			RunOnce:            env.GetBool("SYNC_RUN_ONCE", false),
			MediaRatePerSec:    env.GetFloat("MEDIA_RATE_PER_SEC", 4),
			PostTypeCandidates: env.GetList("POST_TYPE_CANDIDATES", syncer.DefaultPostTypeCandidates),
			DefaultPostType:    env.Get("DEFAULT_POST_TYPE", syncer.DefaultPostType),
		},
		Store: StoreConfig{
			Backend: env.Get("STORE_BACKEND", "postgres"),
			PGDSN:   env.Get("PG_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     env.Get("REDIS_ADDR", ""),
			Password: env.Get("REDIS_PASSWORD", ""),
			DB:       env.GetInt("REDIS_DB", 0),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      env.Get("RABBITMQ_URL", ""),
			Exchange: env.Get("RABBITMQ_EXCHANGE", "tokko.sync"),
		},
		FluentBit: FluentBitConfig{
			Enabled: env.GetBool("FLUENTBIT_ENABLED", false),
			Host:    env.Get("FLUENTBIT_HOST", "localhost"),
			Port:    env.GetInt("FLUENTBIT_PORT", 24224),
		},
		Log: LogConfig{
			Level:  env.Get("LOG_LEVEL", "info"),
			Format: env.Get("LOG_FORMAT", "text"),
		},
		Port: env.Get("PORT", "8080"),
	}

	if path := env.Get("MAPPING_FILE", ""); path != "" {
		m, err := LoadMapping(path)
		if err != nil {
			return nil, err
		}
		cfg.Mapping = m
		if len(m.PostTypes.Candidates) > 0 {
			cfg.Sync.PostTypeCandidates = m.PostTypes.Candidates
		}
		if m.PostTypes.Default != "" {
			cfg.Sync.DefaultPostType = m.PostTypes.Default
		}
	}
	return cfg, cfg.Validate()
}

func (c *AppConfig) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.Store.PGDSN == "" {
			return errors.New("PG_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Tokko.PageSize <= 0 {
		return fmt.Errorf("TOKKO_PAGE_SIZE must be positive, got %d", c.Tokko.PageSize)
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be positive, got %d", c.Sync.BatchSize)
	}
	return nil
}
