package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yourorg/tokko-sync/internal/canon"
)

// Memory is an in-process Store. It keeps the same invariants as Postgres:
// one record per external id, one term per (taxonomy, key), one media asset
// per source URL.
type Memory struct {
	mu        sync.RWMutex
	postTypes map[string]bool
	records   map[RecordID]*Record
	external  map[string]RecordID
	terms     map[TermID]*Term
	termIndex map[string]TermID
	media     map[MediaID]*Media
	mediaURL  map[string]MediaID
	runs      []Run
	nextID    int64

	termCreates  int
	mediaCreates int
}

func NewMemory(postTypes ...string) *Memory {
	m := &Memory{
		postTypes: map[string]bool{},
		records:   map[RecordID]*Record{},
		external:  map[string]RecordID{},
		terms:     map[TermID]*Term{},
		termIndex: map[string]TermID{},
		media:     map[MediaID]*Media{},
		mediaURL:  map[string]MediaID{},
	}
	for _, pt := range postTypes {
		m.postTypes[pt] = true
	}
	return m
}

func (m *Memory) RegisterPostType(postType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postTypes[postType] = true
}

// EnsurePostType registers postType; it never fails.
func (m *Memory) EnsurePostType(_ context.Context, postType string) error {
	m.RegisterPostType(postType)
	return nil
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *Memory) PostTypeExists(_ context.Context, postType string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.postTypes[postType], nil
}

func (m *Memory) FindByMeta(_ context.Context, postType, key, value string) (RecordID, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if key == MetaExternalID {
		id, ok := m.external[value]
		if ok && m.records[id].PostType == postType {
			return id, true, nil
		}
		return 0, false, nil
	}
	ids := make([]RecordID, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		rec := m.records[id]
		if rec.PostType == postType && rec.Meta[key] == value {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (m *Memory) CreateRecord(_ context.Context, in NewRecord) (RecordID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.postTypes[in.PostType] {
		return 0, fmt.Errorf("post type %q: %w", in.PostType, ErrRejected)
	}
	ext := in.Meta[MetaExternalID]
	if ext != "" {
		if _, dup := m.external[ext]; dup {
			return 0, fmt.Errorf("external id %q already stored: %w", ext, ErrRejected)
		}
	}
	now := time.Now()
	rec := &Record{
		ID:        RecordID(m.id()),
		PostType:  in.PostType,
		Title:     in.Title,
		Body:      in.Body,
		Status:    in.Status,
		Meta:      map[string]string{},
		Terms:     map[string][]TermID{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for k, v := range in.Meta {
		rec.Meta[k] = v
	}
	m.records[rec.ID] = rec
	if ext != "" {
		m.external[ext] = rec.ID
	}
	return rec.ID, nil
}

func (m *Memory) UpdateRecord(_ context.Context, id RecordID, in RecordUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return fmt.Errorf("record %d: %w", id, ErrNotFound)
	}
	rec.Title = in.Title
	rec.Body = in.Body
	rec.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) SetMeta(_ context.Context, id RecordID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return fmt.Errorf("record %d: %w", id, ErrNotFound)
	}
	if key == MetaExternalID {
		if other, taken := m.external[value]; taken && other != id {
			return fmt.Errorf("external id %q belongs to record %d: %w", value, other, ErrRejected)
		}
		delete(m.external, rec.Meta[key])
		m.external[value] = id
	}
	rec.Meta[key] = value
	return nil
}

func (m *Memory) GetOrCreateTerm(_ context.Context, taxonomy, name string) (TermID, error) {
	key := canon.TermKey(name)
	if key == "" {
		return 0, fmt.Errorf("empty term name: %w", ErrRejected)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := taxonomy + "|" + key
	if id, ok := m.termIndex[idx]; ok {
		return id, nil
	}
	t := &Term{ID: TermID(m.id()), Taxonomy: taxonomy, Name: canon.CleanLabel(name), Slug: canon.Slug(name)}
	m.terms[t.ID] = t
	m.termIndex[idx] = t.ID
	m.termCreates++
	return t.ID, nil
}

func (m *Memory) AssignTerms(_ context.Context, id RecordID, taxonomy string, terms []TermID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return fmt.Errorf("record %d: %w", id, ErrNotFound)
	}
	rec.Terms[taxonomy] = append([]TermID(nil), terms...)
	return nil
}

func (m *Memory) FindMediaBySourceURL(_ context.Context, sourceURL string) (MediaID, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.mediaURL[sourceURL]
	return id, ok, nil
}

func (m *Memory) CreateMedia(_ context.Context, owner RecordID, in NewMedia) (MediaID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[owner]; !ok {
		return 0, fmt.Errorf("owner %d: %w", owner, ErrRejected)
	}
	if _, dup := m.mediaURL[in.SourceURL]; dup {
		return 0, fmt.Errorf("media %q already stored: %w", in.SourceURL, ErrRejected)
	}
	md := &Media{
		ID:          MediaID(m.id()),
		Owner:       owner,
		SourceURL:   in.SourceURL,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Size:        len(in.Data),
		CreatedAt:   time.Now(),
	}
	m.media[md.ID] = md
	m.mediaURL[in.SourceURL] = md.ID
	m.mediaCreates++
	return md.ID, nil
}

func (m *Memory) SetFeaturedMedia(_ context.Context, id RecordID, media MediaID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return fmt.Errorf("record %d: %w", id, ErrNotFound)
	}
	if _, ok := m.media[media]; !ok {
		return fmt.Errorf("media %d: %w", media, ErrNotFound)
	}
	rec.FeaturedMedia = media
	return nil
}

func (m *Memory) RecordRun(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

// Record returns a copy of the stored record.
func (m *Memory) Record(id RecordID) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return Record{}, false
	}
	out := *rec
	out.Meta = make(map[string]string, len(rec.Meta))
	for k, v := range rec.Meta {
		out.Meta[k] = v
	}
	out.Terms = make(map[string][]TermID, len(rec.Terms))
	for k, v := range rec.Terms {
		out.Terms[k] = append([]TermID(nil), v...)
	}
	return out, true
}

func (m *Memory) RecordCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// CountByExternalID reports how many records carry the given external id.
func (m *Memory) CountByExternalID(externalID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rec := range m.records {
		if rec.Meta[MetaExternalID] == externalID {
			n++
		}
	}
	return n
}

func (m *Memory) Term(id TermID) (Term, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.terms[id]
	if !ok {
		return Term{}, false
	}
	return *t, true
}

func (m *Memory) TermCreates() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.termCreates
}

func (m *Memory) MediaCreates() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mediaCreates
}

func (m *Memory) Media(id MediaID) (Media, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	md, ok := m.media[id]
	if !ok {
		return Media{}, false
	}
	return *md, true
}

func (m *Memory) Runs() []Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Run(nil), m.runs...)
}
