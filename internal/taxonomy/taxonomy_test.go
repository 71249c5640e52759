package taxonomy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/tokko-sync/internal/store"
	"github.com/yourorg/tokko-sync/tokko"
)

func TestResolveUsesStaticTable(t *testing.T) {
	m := store.NewMemory()
	r := NewResolver(m, LegacyTable(), nil)

	ids, err := r.Resolve(context.Background(), tokko.AxisType, []tokko.TermLabel{{Label: "Departamento"}})
	require.NoError(t, err)
	assert.Equal(t, []store.TermID{144}, ids)
	assert.Zero(t, m.TermCreates())

	ids, err = r.Resolve(context.Background(), tokko.AxisStatus, []tokko.TermLabel{{Label: "active", Fallback: "Activo"}})
	require.NoError(t, err)
	assert.Equal(t, []store.TermID{10}, ids)
}

func TestResolveCreatesUnknownLabelOnce(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	first, err := NewResolver(m, LegacyTable(), nil).Resolve(ctx, tokko.AxisType, []tokko.TermLabel{{Label: "Quinta"}})
	require.NoError(t, err)
	require.Len(t, first, 1)

	// a fresh resolver (next sync run) still reuses the stored term
	second, err := NewResolver(m, LegacyTable(), nil).Resolve(ctx, tokko.AxisType, []tokko.TermLabel{{Label: "quinta "}})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, m.TermCreates())

	term, ok := m.Term(first[0])
	require.True(t, ok)
	assert.Equal(t, "Quinta", term.Name)
	assert.Equal(t, "es_type", term.Taxonomy)
}

func TestResolveUsesFallbackName(t *testing.T) {
	m := store.NewMemory()
	ids, err := NewResolver(m, nil, nil).Resolve(context.Background(), tokko.AxisStatus, []tokko.TermLabel{{Label: "active", Fallback: "Activo"}})
	require.NoError(t, err)
	term, _ := m.Term(ids[0])
	assert.Equal(t, "Activo", term.Name)
}

func TestResolveDedupesAndSkipsBlank(t *testing.T) {
	m := store.NewMemory()
	ids, err := NewResolver(m, nil, nil).Resolve(context.Background(), tokko.AxisAmenity, []tokko.TermLabel{
		{Label: "Pileta"}, {Label: ""}, {Label: "Parrilla"}, {Label: "PILETA"},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Equal(t, 2, m.TermCreates())
}

type failingStore struct{ store.Store }

func (failingStore) GetOrCreateTerm(context.Context, string, string) (store.TermID, error) {
	return 0, errors.New("boom")
}

func TestResolveFailureFailsAxis(t *testing.T) {
	_, err := NewResolver(failingStore{store.NewMemory()}, nil, nil).Resolve(context.Background(), tokko.AxisFeature, []tokko.TermLabel{{Label: "Luminoso"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestNewTableFoldsLabels(t *testing.T) {
	tbl := NewTable(map[string]map[string]int64{"es_type": {"Depósito": 9}})
	id, ok := tbl.lookup(tokko.AxisType, "deposito")
	assert.True(t, ok)
	assert.Equal(t, store.TermID(9), id)
}
