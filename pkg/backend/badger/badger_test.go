package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovec/internal/bytesize"
	"github.com/marmos91/dittovec/pkg/backend/backendtest"
	"github.com/marmos91/dittovec/pkg/store"
)

func desc(cfg map[string]any) store.Descriptor {
	return store.Descriptor{Name: "kv2", Category: store.CategoryKeyValue, Kind: Kind, Config: cfg, Enabled: true}
}

func TestConformance(t *testing.T) {
	backendtest.RunConformanceSuite(t, Kind, func(t *testing.T) store.Backend {
		return backendtest.Open(t, Adapter{}, desc(map[string]any{"in_memory": true, "dimension": backendtest.Dimension}))
	})
}

func TestValidateConfig(t *testing.T) {
	a := Adapter{}
	assert.Error(t, a.ValidateConfig(map[string]any{}), "path is required on disk")
	assert.NoError(t, a.ValidateConfig(map[string]any{"in_memory": true}))
	assert.NoError(t, a.ValidateConfig(map[string]any{"path": "/tmp/x", "memtable_size": "32Mi"}))
	assert.Error(t, a.ValidateConfig(map[string]any{"path": "/tmp/x", "memtable_size": "lots"}))
}

func TestByteSizeTunables(t *testing.T) {
	cfg, err := store.LoadConfig[Config](map[string]any{
		"path":             "/tmp/x",
		"memtable_size":    "32Mi",
		"block_cache_size": 1 << 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 32*bytesize.MiB, cfg.MemTableSize)
	assert.Equal(t, bytesize.MiB, cfg.BlockCacheMax)

	opts := cfg.options()
	assert.Equal(t, int64(32<<20), opts.MemTableSize)
}

func TestReopenKeepsCount(t *testing.T) {
	cfg := map[string]any{"path": t.TempDir()}

	b, err := Adapter{}.Open(t.Context(), desc(cfg))
	require.NoError(t, err)
	s := b.(*Store)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.AddVector(t.Context(), store.Record{ID: id, Vector: []float64{1, 2}}))
	}
	require.NoError(t, s.AddVector(t.Context(), store.Record{ID: "a", Vector: []float64{2, 1}}))
	require.NoError(t, s.Close(context.Background()))

	reopened := backendtest.Open(t, Adapter{}, desc(cfg))
	st, err := reopened.GetStatus(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(3), st["vector_count"])
}
