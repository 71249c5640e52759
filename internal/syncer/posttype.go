package syncer

import (
	"context"
	"fmt"
	"strings"

	"github.com/yourorg/tokko-sync/internal/store"
)

// DefaultPostTypeCandidates are probed in order.
var DefaultPostTypeCandidates = []string{"es_property", "properties", "property", "es_properties"}

const DefaultPostType = "es_property"

// ResolvePostType returns the first registered candidate, else def when it is
// registered or can be registered by the store.
func ResolvePostType(ctx context.Context, s store.Store, candidates []string, def string) (string, error) {
	if len(candidates) == 0 {
		candidates = DefaultPostTypeCandidates
	}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		ok, err := s.PostTypeExists(ctx, c)
		if err != nil {
			return "", fmt.Errorf("probe post type %q: %w", c, err)
		}
		if ok {
			return c, nil
		}
	}
	def = strings.TrimSpace(def)
	if def == "" {
		return "", ErrNoPostType
	}
	if r, ok := s.(postTypeRegistrar); ok {
		if err := r.EnsurePostType(ctx, def); err != nil {
			return "", fmt.Errorf("register post type %q: %w", def, err)
		}
		return def, nil
	}
	ok, err := s.PostTypeExists(ctx, def)
	if err != nil {
		return "", fmt.Errorf("probe post type %q: %w", def, err)
	}
	if !ok {
		return "", ErrNoPostType
	}
	return def, nil
}

type postTypeRegistrar interface {
	EnsurePostType(ctx context.Context, postType string) error
}
