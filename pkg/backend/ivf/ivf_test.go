package ivf

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovec/pkg/backend/backendtest"
	"github.com/marmos91/dittovec/pkg/store"
)

func desc(cfg map[string]any) store.Descriptor {
	return store.Descriptor{Name: "v2", Category: store.CategoryVector, Kind: Kind, Config: cfg, Enabled: true}
}

func baseConfig() map[string]any {
	// probe every list so results are exact on small data sets
	return map[string]any{"dimension": backendtest.Dimension, "nlist": 2, "nprobe": 2}
}

func TestConformance(t *testing.T) {
	backendtest.RunConformanceSuite(t, Kind, func(t *testing.T) store.Backend {
		return backendtest.Open(t, Adapter{}, desc(baseConfig()))
	})
}

func TestValidateConfig(t *testing.T) {
	a := Adapter{}
	assert.NoError(t, a.ValidateConfig(baseConfig()))
	assert.Error(t, a.ValidateConfig(map[string]any{"nlist": 4}), "dimension is required")
	assert.Error(t, a.ValidateConfig(map[string]any{"dimension": 3, "metric": "cosine"}))
}

func TestDefaults(t *testing.T) {
	cfg, err := store.LoadConfig[Config](map[string]any{"dimension": 8})
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.NList)
	assert.Equal(t, 10, cfg.NProbe)
	assert.Equal(t, "euclidean", cfg.Metric)
}

func TestRebuildOnlyWhenDirty(t *testing.T) {
	s := backendtest.Open(t, Adapter{}, desc(baseConfig())).(*Store)
	ctx := t.Context()

	require.NoError(t, s.AddVector(ctx, store.Record{ID: "1", Vector: []float64{1, 0, 0}}))
	require.NoError(t, s.AddVector(ctx, store.Record{ID: "2", Vector: []float64{0, 1, 0}}))

	st, err := s.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, st["dirty"])
	assert.Equal(t, 0, st["builds"])

	_, err = s.SearchVector(ctx, []float64{1, 0, 0}, 1)
	require.NoError(t, err)
	_, err = s.SearchVector(ctx, []float64{0, 1, 0}, 1)
	require.NoError(t, err)

	st, err = s.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, false, st["dirty"])
	assert.Equal(t, 1, st["builds"])
	assert.Equal(t, 2, st["indexed"])

	// a later add is visible to the next search
	require.NoError(t, s.AddVector(ctx, store.Record{ID: "3", Vector: []float64{0, 0, 5}}))
	got, err := s.SearchVector(ctx, []float64{0, 0, 5}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].ID)

	st, err = s.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st["builds"])
}

func TestEmptySearch(t *testing.T) {
	s := backendtest.Open(t, Adapter{}, desc(baseConfig())).(*Store)
	got, err := s.SearchVector(t.Context(), []float64{1, 0, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPersistence(t *testing.T) {
	cfg := baseConfig()
	cfg["persistence"] = map[string]any{"path": filepath.Join(t.TempDir(), "ivf")}

	b, err := Adapter{}.Open(t.Context(), desc(cfg))
	require.NoError(t, err)
	s := b.(*Store)
	require.NoError(t, s.AddVector(t.Context(), store.Record{ID: "a", Vector: []float64{1, 2, 3}}))
	require.NoError(t, s.AddVector(t.Context(), store.Record{ID: "b", Vector: []float64{3, 2, 1}}))
	require.NoError(t, s.Close(context.Background()))

	reopened := backendtest.Open(t, Adapter{}, desc(cfg)).(*Store)
	st, err := reopened.GetStatus(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, st["vector_count"])

	got, err := reopened.SearchVector(t.Context(), []float64{3, 2, 1}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}
