package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryNaturalKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("es_property")

	id, err := m.CreateRecord(ctx, NewRecord{
		PostType: "es_property",
		Title:    "Casa",
		Meta:     map[string]string{MetaExternalID: "101"},
	})
	require.NoError(t, err)

	_, err = m.CreateRecord(ctx, NewRecord{
		PostType: "es_property",
		Title:    "Casa duplicada",
		Meta:     map[string]string{MetaExternalID: "101"},
	})
	require.ErrorIs(t, err, ErrRejected)

	found, ok, err := m.FindByMeta(ctx, "es_property", MetaExternalID, "101")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, found)
	assert.Equal(t, 1, m.CountByExternalID("101"))

	_, ok, err = m.FindByMeta(ctx, "property", MetaExternalID, "101")
	require.NoError(t, err)
	assert.False(t, ok, "lookup is scoped to the post type")
}

func TestMemoryRejectsUnknownPostType(t *testing.T) {
	m := NewMemory()
	_, err := m.CreateRecord(context.Background(), NewRecord{PostType: "es_property", Title: "x"})
	require.ErrorIs(t, err, ErrRejected)
}

func TestMemoryGetOrCreateTermFoldsNames(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a, err := m.GetOrCreateTerm(ctx, "es_type", "Depósito")
	require.NoError(t, err)
	b, err := m.GetOrCreateTerm(ctx, "es_type", " deposito ")
	require.NoError(t, err)
	c, err := m.GetOrCreateTerm(ctx, "es_feature", "Depósito")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c, "terms are per taxonomy")
	assert.Equal(t, 2, m.TermCreates())

	term, ok := m.Term(a)
	require.True(t, ok)
	assert.Equal(t, "Depósito", term.Name)
	assert.Equal(t, "deposito", term.Slug)

	_, err = m.GetOrCreateTerm(ctx, "es_type", "  ")
	require.ErrorIs(t, err, ErrRejected)
}

func TestMemoryMediaDedupAndFeatured(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("es_property")
	id, err := m.CreateRecord(ctx, NewRecord{PostType: "es_property", Title: "x"})
	require.NoError(t, err)

	mid, err := m.CreateMedia(ctx, id, NewMedia{SourceURL: "https://img/1.jpg", Filename: "1.jpg", Data: []byte("abc")})
	require.NoError(t, err)
	_, err = m.CreateMedia(ctx, id, NewMedia{SourceURL: "https://img/1.jpg", Filename: "1.jpg"})
	require.ErrorIs(t, err, ErrRejected)

	got, ok, err := m.FindMediaBySourceURL(ctx, "https://img/1.jpg")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, mid, got)

	require.NoError(t, m.SetFeaturedMedia(ctx, id, mid))
	rec, ok := m.Record(id)
	require.True(t, ok)
	assert.Equal(t, mid, rec.FeaturedMedia)

	require.ErrorIs(t, m.SetFeaturedMedia(ctx, id, 999), ErrNotFound)
}

func TestMemoryAssignTermsReplaces(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("es_property")
	id, err := m.CreateRecord(ctx, NewRecord{PostType: "es_property", Title: "x"})
	require.NoError(t, err)

	require.NoError(t, m.AssignTerms(ctx, id, "es_amenity", []TermID{1, 2}))
	require.NoError(t, m.AssignTerms(ctx, id, "es_amenity", []TermID{3}))
	rec, _ := m.Record(id)
	assert.Equal(t, []TermID{3}, rec.Terms["es_amenity"])
}
