package backend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovec/pkg/backend"
	"github.com/marmos91/dittovec/pkg/backend/builtin"
	"github.com/marmos91/dittovec/pkg/backend/memory"
	"github.com/marmos91/dittovec/pkg/store"
)

func TestBuiltinKinds(t *testing.T) {
	a := builtin.Adapters()
	assert.Equal(t, []string{
		"badger", "gremlin", "hnsw", "ivf", "memory", "mongodb", "natskv", "postgres", "s3", "sqlite",
	}, a.Kinds())
}

func TestLookupUnknownKind(t *testing.T) {
	_, err := builtin.Adapters().Lookup("redis")
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrConfig))
	assert.Contains(t, err.Error(), "redis")
}

func TestDuplicateKindPanics(t *testing.T) {
	assert.Panics(t, func() { backend.NewAdapters(memory.Adapter{}, memory.Adapter{}) })
}

func TestCheck(t *testing.T) {
	a := builtin.Adapters()

	tests := []struct {
		name string
		desc store.Descriptor
		ok   bool
	}{
		{"memory as key_value", store.Descriptor{Name: "kv1", Category: store.CategoryKeyValue, Kind: "memory"}, true},
		{"memory as cache", store.Descriptor{Name: "c1", Category: store.CategoryCache, Kind: "memory"}, true},
		{"memory as vector", store.Descriptor{Name: "v9", Category: store.CategoryVector, Kind: "memory"}, false},
		{"unknown kind", store.Descriptor{Name: "x", Category: store.CategoryVector, Kind: "faiss"}, false},
		{"bad kind config", store.Descriptor{Name: "v1", Category: store.CategoryVector, Kind: "hnsw",
			Config: map[string]any{"dimension": 3}}, false},
		{"good kind config", store.Descriptor{Name: "v1", Category: store.CategoryVector, Kind: "hnsw",
			Config: map[string]any{"dimension": 3, "path": "/tmp/v1.db"}}, true},
		{"gremlin graph", store.Descriptor{Name: "g", Category: store.CategoryGraph, Kind: "gremlin",
			Config: map[string]any{"host": "localhost"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ad, err := a.Check(tt.desc)
			if !tt.ok {
				require.Error(t, err)
				assert.True(t, store.IsCode(err, store.ErrConfig), "got %v", err)
				assert.Equal(t, tt.desc.Name, storeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.desc.Kind, ad.Kind())
		})
	}
}

func storeOf(err error) string {
	if se, ok := err.(*store.StoreError); ok {
		return se.Store
	}
	return ""
}

func TestDescribe(t *testing.T) {
	infos := builtin.Adapters().Describe()
	require.Len(t, infos, 10)

	byKind := map[string]backend.KindInfo{}
	for _, ki := range infos {
		byKind[ki.Kind] = ki
	}
	assert.True(t, byKind["memory"].FullScan)
	assert.False(t, byKind["hnsw"].FullScan)
	assert.Equal(t, []store.Capability{store.CapGetStatus}, byKind["gremlin"].Capabilities)
}

func TestBaseStatus(t *testing.T) {
	st := backend.BaseStatus(store.Descriptor{Name: "v1", Category: store.CategoryVector, Kind: "hnsw"}, false)
	assert.Equal(t, "hnsw", st["type"])
	assert.Equal(t, "vector", st["category"])
	assert.Equal(t, "Connected", st["status"])
	assert.Equal(t, false, st["full_scan"])
}
