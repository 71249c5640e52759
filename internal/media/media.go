// Package media imports listing photos into the store and builds the gallery.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/tokko-sync/internal/metrics"
	"github.com/yourorg/tokko-sync/internal/store"
	"github.com/yourorg/tokko-sync/tokko"
)

// Gallery metadata keys, both holding a JSON array of media ids.
const (
	MetaGallery       = "_es_gallery"
	MetaGalleryPublic = "es_property_gallery"
)

// Error is a single photo that could not be resolved.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("media %s: %v", e.URL, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

type Gallery struct {
	IDs      []store.MediaID
	Featured store.MediaID
	Errors   []error
}

func (g Gallery) HasFeatured() bool { return g.Featured != 0 }

type Resolver struct {
	store     store.Store
	dl        Downloader
	maxPhotos int
	log       *slog.Logger
	now       func() time.Time
}

func NewResolver(s store.Store, dl Downloader, maxPhotos int, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if maxPhotos <= 0 {
		maxPhotos = tokko.MaxPhotos
	}
	return &Resolver{store: s, dl: dl, maxPhotos: maxPhotos, log: logger, now: time.Now}
}

// ResolveGallery resolves at most maxPhotos photos in display order. A photo
// that fails is logged, reported in Gallery.Errors and left out. The returned
// error is non-nil only when ctx ends.
func (r *Resolver) ResolveGallery(ctx context.Context, photos []tokko.Photo, owner store.RecordID) (Gallery, error) {
	var g Gallery
	var firstCover store.MediaID
	seen := map[store.MediaID]bool{}

	for _, p := range tokko.OrderPhotos(photos, r.maxPhotos) {
		if err := ctx.Err(); err != nil {
			return g, err
		}
		src := p.URL()
		if src == "" {
			continue
		}
		id, err := r.resolve(ctx, src, owner)
		if err != nil {
			if ctx.Err() != nil {
				return g, ctx.Err()
			}
			merr := &Error{URL: src, Err: err}
			r.log.Warn("media: photo skipped", "record_id", owner, "url", src, "err", err)
			metrics.RecordMedia("failed")
			g.Errors = append(g.Errors, merr)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		g.IDs = append(g.IDs, id)
		if p.IsFrontCover && firstCover == 0 {
			firstCover = id
		}
	}

	switch {
	case firstCover != 0:
		g.Featured = firstCover
	case len(g.IDs) > 0:
		g.Featured = g.IDs[0]
	}
	return g, nil
}

func (r *Resolver) resolve(ctx context.Context, src string, owner store.RecordID) (store.MediaID, error) {
	if id, ok, err := r.store.FindMediaBySourceURL(ctx, src); err != nil {
		return 0, err
	} else if ok {
		metrics.RecordMedia("reused")
		return id, nil
	}
	d, err := r.dl.Download(ctx, src)
	if err != nil {
		return 0, err
	}
	id, err := r.store.CreateMedia(ctx, owner, store.NewMedia{
		SourceURL:   src,
		Filename:    tokko.Filename(src, r.now()),
		ContentType: d.ContentType,
		Data:        d.Data,
	})
	if err != nil {
		return 0, err
	}
	metrics.RecordMedia("downloaded")
	return id, nil
}

// Attach resolves the gallery and writes it onto the record together with the
// featured image. An empty gallery leaves the record untouched.
func (r *Resolver) Attach(ctx context.Context, owner store.RecordID, photos []tokko.Photo) (Gallery, error) {
	g, err := r.ResolveGallery(ctx, photos, owner)
	if err != nil {
		return g, err
	}
	if len(g.IDs) == 0 {
		return g, nil
	}
	ids, err := json.Marshal(g.IDs)
	if err != nil {
		return g, err
	}
	for _, key := range []string{MetaGallery, MetaGalleryPublic} {
		if err := r.store.SetMeta(ctx, owner, key, string(ids)); err != nil {
			return g, fmt.Errorf("set %s: %w", key, err)
		}
	}
	if g.HasFeatured() {
		if err := r.store.SetFeaturedMedia(ctx, owner, g.Featured); err != nil {
			return g, fmt.Errorf("set featured media: %w", err)
		}
	}
	return g, nil
}
