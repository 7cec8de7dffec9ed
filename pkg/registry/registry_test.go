package registry

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovec/pkg/store"
)

func testDescriptor(name string, cat store.Category, kind string, enabled bool) store.Descriptor {
	return store.Descriptor{
		Name:     name,
		Category: cat,
		Kind:     kind,
		Enabled:  enabled,
		Config:   map[string]any{"path": "/data/" + name},
	}
}

func names(seq func(func(store.Descriptor) bool)) []string {
	var out []string
	for d := range seq {
		out = append(out, d.Name)
	}
	return out
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NotNil(t, reg)
	assert.Zero(t, reg.Len())
	assert.Empty(t, names(reg.All()))
}

func TestRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	desc := testDescriptor("V1", store.CategoryVector, "hnsw", true)

	require.NoError(t, reg.Register(desc))

	got, ok := reg.Get("v1")
	require.True(t, ok)
	assert.Equal(t, "v1", got.Name)
	assert.Equal(t, store.CategoryVector, got.Category)
	assert.Equal(t, "hnsw", got.Kind)
	assert.Equal(t, "/data/V1", got.Config["path"])
	assert.True(t, got.Enabled)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testDescriptor("kv1", store.CategoryKeyValue, "badger", true)))

	err := reg.Register(testDescriptor("KV1", store.CategoryCache, "memory", true))
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrDuplicateStore))
	assert.Equal(t, 1, reg.Len())
}

func TestRegisterRejectsInvalid(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register(testDescriptor("", store.CategoryVector, "hnsw", true))
	assert.True(t, store.IsCode(err, store.ErrConfig))

	err = reg.Register(testDescriptor("x", store.Category("blob"), "hnsw", true))
	assert.True(t, store.IsCode(err, store.ErrConfig))

	err = reg.Register(testDescriptor("x", store.CategoryVector, "", true))
	assert.True(t, store.IsCode(err, store.ErrConfig))
}

func TestRegisterCopiesConfig(t *testing.T) {
	reg := NewRegistry()
	desc := testDescriptor("v1", store.CategoryVector, "hnsw", true)
	require.NoError(t, reg.Register(desc))

	desc.Config["path"] = "/elsewhere"

	got, _ := reg.Get("v1")
	assert.Equal(t, "/data/v1", got.Config["path"])
}

func TestListEnabledRoundTrip(t *testing.T) {
	reg := NewRegistry()
	descs := []store.Descriptor{
		testDescriptor("v2", store.CategoryVector, "ivf", true),
		testDescriptor("kv1", store.CategoryKeyValue, "badger", true),
		testDescriptor("v1", store.CategoryVector, "hnsw", true),
		testDescriptor("off", store.CategoryVector, "hnsw", false),
		testDescriptor("rel", store.CategoryRelational, "sqlite", true),
	}
	for _, d := range descs {
		require.NoError(t, reg.Register(d))
	}

	assert.Equal(t, []string{"kv1", "rel", "v1", "v2"}, names(reg.ListEnabled()))
	assert.Equal(t, []string{"v1", "v2"}, names(reg.ListEnabled(store.CategoryVector)))
	assert.Equal(t, []string{"kv1", "rel"},
		names(reg.ListEnabled(store.CategoryKeyValue, store.CategoryRelational)))
	assert.Empty(t, names(reg.ListEnabled(store.CategoryGraph)))
	assert.Equal(t, []string{"kv1", "off", "rel", "v1", "v2"}, names(reg.All()))

	// Every enabled descriptor comes back exactly as registered.
	for d := range reg.ListEnabled() {
		i := slices.IndexFunc(descs, func(x store.Descriptor) bool { return x.Name == d.Name })
		require.GreaterOrEqual(t, i, 0)
		assert.Equal(t, descs[i], d)
	}
}

func TestListEnabledIsRestartableAndLazy(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testDescriptor("a", store.CategoryCache, "memory", true)))

	seq := reg.ListEnabled()
	assert.Equal(t, []string{"a"}, names(seq))

	require.NoError(t, reg.Register(testDescriptor("b", store.CategoryCache, "memory", true)))
	assert.Equal(t, []string{"a", "b"}, names(seq))
	assert.Equal(t, []string{"a", "b"}, names(seq))

	// Early termination stops the iteration.
	count := 0
	for range seq {
		count++
		break
	}
	assert.Equal(t, 1, count)
}
