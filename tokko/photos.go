package tokko

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"
)

// MaxPhotos is the gallery cap.
const MaxPhotos = 20

var imageExtPattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp)$`)

// URL prefers the full-size original over the default image.
func (p Photo) URL() string {
	return strings.TrimSpace(firstNonEmpty(strings.TrimSpace(p.Original), strings.TrimSpace(p.Image)))
}

func (p Photo) position() int {
	n, _ := p.Order.Int()
	return n
}

// OrderPhotos returns photos stably sorted by their order field (missing
// counts as 0) and capped at max. max <= 0 means MaxPhotos.
func OrderPhotos(photos []Photo, max int) []Photo {
	if max <= 0 {
		max = MaxPhotos
	}
	out := append([]Photo(nil), photos...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].position() < out[j].position() })
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// Filename derives a media filename from an image URL.
func Filename(rawURL string, now time.Time) string {
	if u, err := url.Parse(rawURL); err == nil {
		base := path.Base(u.Path)
		if imageExtPattern.MatchString(base) {
			return base
		}
	}
	return fmt.Sprintf("tokko_image_%d.jpg", now.Unix())
}
