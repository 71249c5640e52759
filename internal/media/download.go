package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// MaxImageBytes bounds a single downloaded image.
const MaxImageBytes = 15 << 20

var errNotImage = errors.New("response is not an image")

type Download struct {
	Data        []byte
	ContentType string
}

type Downloader interface {
	Download(ctx context.Context, url string) (Download, error)
}

// HTTPDownloader fetches images with retries, throttled to a fixed rate.
type HTTPDownloader struct {
	http     *retryablehttp.Client
	limiter  *rate.Limiter
	maxBytes int64
}

// NewHTTPDownloader allows perSecond downloads per second; <= 0 disables the
// throttle.
func NewHTTPDownloader(perSecond float64, logger *slog.Logger) *HTTPDownloader {
	if logger == nil {
		logger = slog.Default()
	}
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.RetryMax = 2
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = logger
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	lim := rate.NewLimiter(rate.Inf, 1)
	if perSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return &HTTPDownloader{http: rc, limiter: lim, maxBytes: MaxImageBytes}
}

func (d *HTTPDownloader) Download(ctx context.Context, url string) (Download, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return Download{}, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Download{}, err
	}
	req.Header.Set("accept", "image/*")

	resp, err := d.http.Do(req)
	if err != nil {
		return Download{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Download{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return Download{}, err
	}
	if int64(len(b)) > d.maxBytes {
		return Download{}, fmt.Errorf("image larger than %d bytes", d.maxBytes)
	}
	if len(b) == 0 {
		return Download{}, errors.New("empty body")
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(b)
	}
	if !strings.HasPrefix(ct, "image/") {
		return Download{}, fmt.Errorf("%w: %s", errNotImage, ct)
	}
	return Download{Data: b, ContentType: ct}, nil
}
