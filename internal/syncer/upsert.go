package syncer

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/yourorg/tokko-sync/internal/canon"
	"github.com/yourorg/tokko-sync/internal/store"
	"github.com/yourorg/tokko-sync/internal/taxonomy"
	"github.com/yourorg/tokko-sync/tokko"
)

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

const placeholderTitle = "no title"

type UpsertInput struct {
	ExternalID string
	Title      string
	Address    string
	Body       string
}

// Upserter writes one listing into the store, keyed by its external id.
type Upserter struct {
	Store store.Store
	Terms *taxonomy.Resolver
	Log   *slog.Logger
}

func NewUpserter(s store.Store, terms *taxonomy.Resolver, logger *slog.Logger) *Upserter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Upserter{Store: s, Terms: terms, Log: logger}
}

// Upsert creates the record or rewrites its title and body. Errors are
// *RecordError.
func (u *Upserter) Upsert(ctx context.Context, postType string, in UpsertInput) (store.RecordID, Action, error) {
	ext := strings.TrimSpace(in.ExternalID)
	if ext == "" {
		return 0, "", &RecordError{Err: ErrMissingExternalID}
	}
	title := cleanTitle(in.Title, in.Address)
	body := sanitizeBody(in.Body)

	id, found, err := u.find(ctx, postType, ext)
	if err != nil {
		return 0, "", &RecordError{ExternalID: ext, Err: fmt.Errorf("lookup: %w", err)}
	}
	if found {
		if err := u.Store.UpdateRecord(ctx, id, store.RecordUpdate{Title: title, Body: body}); err != nil {
			return 0, "", &RecordError{ExternalID: ext, Err: fmt.Errorf("update record %d: %w", id, err)}
		}
		return id, ActionUpdated, nil
	}

	id, err = u.Store.CreateRecord(ctx, store.NewRecord{
		PostType: postType,
		Title:    title,
		Body:     body,
		Status:   "publish",
		Meta: map[string]string{
			store.MetaExternalID: ext,
			store.MetaLegacyID:   ext,
		},
	})
	if err != nil {
		return 0, "", &RecordError{ExternalID: ext, Err: fmt.Errorf("create record: %w", err)}
	}
	return id, ActionCreated, nil
}

// find looks up by external id, then by the legacy id key. A legacy match is
// stamped with the external id so later runs take the first path.
func (u *Upserter) find(ctx context.Context, postType, ext string) (store.RecordID, bool, error) {
	id, ok, err := u.Store.FindByMeta(ctx, postType, store.MetaExternalID, ext)
	if err != nil || ok {
		return id, ok, err
	}
	id, ok, err = u.Store.FindByMeta(ctx, postType, store.MetaLegacyID, ext)
	if err != nil || !ok {
		return 0, false, err
	}
	if err := u.Store.SetMeta(ctx, id, store.MetaExternalID, ext); err != nil {
		return 0, false, fmt.Errorf("stamp legacy record %d: %w", id, err)
	}
	u.Log.Info("sync: adopted legacy record", "record_id", id, "external_id", ext)
	return id, true, nil
}

// Apply writes metadata and replaces term assignments for every axis that has
// labels. A taxonomy failure skips that axis only.
func (u *Upserter) Apply(ctx context.Context, id store.RecordID, l tokko.Listing) error {
	keys := make([]string, 0, len(l.Meta))
	for k := range l.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := u.Store.SetMeta(ctx, id, k, l.Meta[k]); err != nil {
			return fmt.Errorf("set meta %s: %w", k, err)
		}
	}

	if u.Terms == nil {
		return nil
	}
	for _, axis := range tokko.Axes {
		labels := l.Terms[axis]
		if len(labels) == 0 {
			continue
		}
		ids, err := u.Terms.Resolve(ctx, axis, labels)
		if err != nil {
			u.Log.Warn("sync: taxonomy skipped", "record_id", id, "axis", axis, "err", err)
			continue
		}
		if len(ids) == 0 {
			continue
		}
		if err := u.Store.AssignTerms(ctx, id, string(axis), ids); err != nil {
			u.Log.Warn("sync: term assignment failed", "record_id", id, "axis", axis, "err", err)
		}
	}
	return nil
}

// Policies are safe for concurrent use once built.
var (
	titlePolicy = bluemonday.StrictPolicy()
	bodyPolicy  = bluemonday.UGCPolicy()
)

// cleanTitle keeps text only; entities escaped by the policy are decoded
// again because titles are stored as plain text.
func cleanTitle(title, address string) string {
	for _, v := range []string{title, address} {
		if t := canon.CleanLabel(html.UnescapeString(titlePolicy.Sanitize(v))); t != "" {
			return t
		}
	}
	return placeholderTitle
}

func sanitizeBody(body string) string {
	return strings.TrimSpace(bodyPolicy.Sanitize(body))
}
