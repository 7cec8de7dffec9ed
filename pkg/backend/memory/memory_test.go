package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovec/pkg/backend/backendtest"
	"github.com/marmos91/dittovec/pkg/store"
)

func open(t *testing.T, cfg map[string]any) store.Backend {
	t.Helper()
	return backendtest.Open(t, Adapter{}, store.Descriptor{
		Name: "kv1", Category: store.CategoryKeyValue, Kind: Kind, Config: cfg, Enabled: true,
	})
}

func TestConformance(t *testing.T) {
	backendtest.RunConformanceSuite(t, Kind, func(t *testing.T) store.Backend {
		return open(t, map[string]any{"dimension": backendtest.Dimension})
	})
}

func TestValidateConfig(t *testing.T) {
	a := Adapter{}
	assert.NoError(t, a.ValidateConfig(nil))
	assert.NoError(t, a.ValidateConfig(map[string]any{"metric": "cosine", "max_vectors": "10"}))
	assert.NoError(t, a.ValidateConfig(map[string]any{"metric": "manhattan"}))

	err := a.ValidateConfig(map[string]any{"metric": "chebyshev"})
	assert.True(t, store.IsCode(err, store.ErrConfig))

	err = a.ValidateConfig(map[string]any{"bogus": 1})
	assert.True(t, store.IsCode(err, store.ErrConfig))
}

func TestMaxVectors(t *testing.T) {
	s := open(t, map[string]any{"max_vectors": 2}).(*Store)
	ctx := t.Context()

	require.NoError(t, s.AddVector(ctx, store.Record{ID: "a", Vector: []float64{1}}))
	require.NoError(t, s.AddVector(ctx, store.Record{ID: "b", Vector: []float64{2}}))
	assert.Error(t, s.AddVector(ctx, store.Record{ID: "c", Vector: []float64{3}}))

	// replacing an existing id does not grow the store
	assert.NoError(t, s.AddVector(ctx, store.Record{ID: "a", Vector: []float64{4}}))
}

func TestDimensionEnforced(t *testing.T) {
	s := open(t, map[string]any{"dimension": 2}).(*Store)
	err := s.AddVector(t.Context(), store.Record{ID: "a", Vector: []float64{1, 2, 3}})
	assert.Error(t, err)
}

func TestCosineMetric(t *testing.T) {
	s := open(t, map[string]any{"metric": "cosine"}).(*Store)
	ctx := t.Context()
	require.NoError(t, s.AddVector(ctx, store.Record{ID: "long", Vector: []float64{10, 0}}))
	require.NoError(t, s.AddVector(ctx, store.Record{ID: "diag", Vector: []float64{1, 1}}))

	got, err := s.SearchVector(ctx, []float64{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "long", got[0].ID)
	assert.InDelta(t, 0, got[0].Distance, 1e-5)
}

func TestManhattanMetric(t *testing.T) {
	s := open(t, map[string]any{"metric": "manhattan"}).(*Store)
	ctx := t.Context()
	require.NoError(t, s.AddVector(ctx, store.Record{ID: "diag", Vector: []float64{1, 1}}))
	require.NoError(t, s.AddVector(ctx, store.Record{ID: "axis", Vector: []float64{1.5, 0}}))

	got, err := s.SearchVector(ctx, []float64{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "axis", got[0].ID)
	assert.InDelta(t, 1.5, got[0].Distance, 1e-5)
	assert.InDelta(t, 2, got[1].Distance, 1e-5)
}

func TestEmptySearch(t *testing.T) {
	s := open(t, nil).(*Store)
	got, err := s.SearchVector(t.Context(), []float64{1, 2}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClosed(t *testing.T) {
	b, err := Adapter{}.Open(t.Context(), store.Descriptor{Name: "c", Category: store.CategoryCache, Kind: Kind})
	require.NoError(t, err)
	s := b.(*Store)

	require.NoError(t, s.Close(t.Context()))
	assert.Error(t, s.AddVector(t.Context(), store.Record{ID: "a", Vector: []float64{1}}))
	_, err = s.SearchVector(t.Context(), []float64{1}, 1)
	assert.Error(t, err)
}
