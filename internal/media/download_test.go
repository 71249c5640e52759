package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDownloader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("\xff\xd8\xff\xe0jpeg-bytes"))
		case "/sniffed":
			_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n0000"))
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		case "/big.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write(make([]byte, 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	d := NewHTTPDownloader(0, nil)
	d.http.RetryMax = 0
	ctx := context.Background()

	got, err := d.Download(ctx, srv.URL+"/ok.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", got.ContentType)
	assert.NotEmpty(t, got.Data)

	got, err = d.Download(ctx, srv.URL+"/sniffed")
	require.NoError(t, err)
	assert.Equal(t, "image/png", got.ContentType)

	_, err = d.Download(ctx, srv.URL+"/page.html")
	assert.ErrorIs(t, err, errNotImage)

	_, err = d.Download(ctx, srv.URL+"/missing.jpg")
	assert.Error(t, err)

	d.maxBytes = 16
	_, err = d.Download(ctx, srv.URL+"/big.jpg")
	assert.ErrorContains(t, err, "larger than")
}
