package tokko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/yourorg/tokko-sync/internal/cache"
)

const (
	DefaultBaseURL   = "https://www.tokkobroker.com/api/v1/property/"
	DefaultLang      = "es_ar"
	DefaultPageSize  = 20
	DefaultPagePause = 500 * time.Millisecond

	CacheKey = "tb_tokko_properties_cache"
	CacheTTL = time.Hour
)

var ErrMissingAPIKey = errors.New("tokko: api key not configured")

// TransportError reports a failed page request. Records fetched before the
// failure are still returned alongside it.
type TransportError struct {
	Op         string
	Offset     int
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("tokko %s at offset %d: http %d", e.Op, e.Offset, e.StatusCode)
	}
	return fmt.Sprintf("tokko %s at offset %d: %v", e.Op, e.Offset, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrorRecorder keeps the most recent operator-facing failure.
type ErrorRecorder interface {
	Record(ctx context.Context, msg string)
}

type Config struct {
	APIKey    string
	BaseURL   string
	Lang      string
	PageSize  int
	PagePause time.Duration
	CacheTTL  time.Duration
	Timeout   time.Duration
	RetryMax  int
}

func (c *Config) defaults() {
	if c.BaseURL == "" { c.BaseURL = DefaultBaseURL }
	if c.Lang == "" { c.Lang = DefaultLang }
	if c.PageSize <= 0 { c.PageSize = DefaultPageSize }
	if c.PagePause < 0 { c.PagePause = 0 }
	if c.CacheTTL <= 0 { c.CacheTTL = CacheTTL }
	if c.Timeout <= 0 { c.Timeout = 60 * time.Second }
	if c.RetryMax < 0 { c.RetryMax = 0 }
}

type Client struct {
	cfg   Config
	http  *retryablehttp.Client
	cache cache.Cache
	errs  ErrorRecorder
	log   *slog.Logger
}

// NewClient builds a fetcher. cache and errs may be nil.
func NewClient(cfg Config, c cache.Cache, errs ErrorRecorder, logger *slog.Logger) *Client {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.RetryMax = cfg.RetryMax
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = logger
	// hand the final response back so the status code can be reported
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{cfg: cfg, http: rc, cache: c, errs: errs, log: logger}
}

func (c *Client) HasAPIKey() bool { return c.cfg.APIKey != "" }

// FetchAll pages through the property endpoint and returns every raw object.
// With useCache set, a cached result set is served without network access and
// a complete fresh result is cached for CacheTTL.
func (c *Client) FetchAll(ctx context.Context, useCache bool) ([]json.RawMessage, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if useCache {
		if cached, ok := c.cached(ctx); ok {
			c.log.Info("tokko: serving properties from cache", "count", len(cached))
			return cached, nil
		}
	}

	var (
		all      []json.RawMessage
		fetchErr error
		offset   int
	)
	for {
		objs, err := c.fetchPage(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			fetchErr = err
			c.log.Warn("tokko: page fetch failed", "offset", offset, "err", err)
			if c.errs != nil {
				c.errs.Record(ctx, err.Error())
			}
			break
		}
		if len(objs) == 0 {
			break
		}
		all = append(all, objs...)
		offset += len(objs)
		c.log.Debug("tokko: fetched page", "count", len(objs), "total", len(all))

		if len(objs) < c.cfg.PageSize {
			break
		}
		// fixed pause between pages to stay under the API rate limit
		select {
		case <-ctx.Done():
			return all, ctx.Err()
		case <-time.After(c.cfg.PagePause):
		}
	}

	if useCache && fetchErr == nil && len(all) > 0 && c.cache != nil {
		if b, err := json.Marshal(all); err == nil {
			if err := c.cache.Set(ctx, CacheKey, b, c.cfg.CacheTTL); err != nil {
				c.log.Warn("tokko: cache store failed", "err", err)
			}
		}
	}
	return all, fetchErr
}

func (c *Client) cached(ctx context.Context) ([]json.RawMessage, bool) {
	if c.cache == nil {
		return nil, false
	}
	b, ok, err := c.cache.Get(ctx, CacheKey)
	if err != nil {
		c.log.Warn("tokko: cache read failed", "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var out []json.RawMessage
	if err := json.Unmarshal(b, &out); err != nil {
		c.log.Warn("tokko: discarding unreadable cache entry", "err", err)
		return nil, false
	}
	return out, true
}

// ClearCache drops the cached result set.
func (c *Client) ClearCache(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Delete(ctx, CacheKey)
}

// CachedCount reports how many properties are cached, if any.
func (c *Client) CachedCount(ctx context.Context) (int, bool) {
	objs, ok := c.cached(ctx)
	return len(objs), ok
}

type pageResponse struct {
	Objects []json.RawMessage `json:"objects"`
}

func (c *Client) fetchPage(ctx context.Context, offset int) ([]json.RawMessage, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, &TransportError{Op: "build url", Offset: offset, Err: err}
	}
	q := u.Query()
	q.Set("key", c.cfg.APIKey)
	q.Set("format", "json")
	q.Set("lang", c.cfg.Lang)
	q.Set("limit", strconv.Itoa(c.cfg.PageSize))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &TransportError{Op: "build request", Offset: offset, Err: err}
	}
	req.Header.Set("accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "get", Offset: offset, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &TransportError{Op: "get", Offset: offset, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	b, err := ioReadAllLimit(resp.Body, 32<<20)
	if err != nil {
		return nil, &TransportError{Op: "read", Offset: offset, Err: err}
	}
	var page pageResponse
	if err := json.Unmarshal(b, &page); err != nil {
		return nil, &TransportError{Op: "decode", Offset: offset, Err: err}
	}
	return page.Objects, nil
}

func ioReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil { return nil, err }
	if int64(len(b)) > limit { return nil, errors.New("payload too large") }
	return b, nil
}
