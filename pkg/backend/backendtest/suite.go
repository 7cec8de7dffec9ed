// Package backendtest holds a conformance suite every vector-capable backend
// kind runs from its own tests.
package backendtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovec/pkg/store"
	"github.com/marmos91/dittovec/pkg/store/scan"
)

// Dimension is the vector length the suite writes. Factories must open stores
// that accept it.
const Dimension = 3

// Factory opens a fresh, empty backend for one subtest. It should use
// t.TempDir() for paths and t.Cleanup() for teardown.
type Factory func(t *testing.T) store.Backend

// RunConformanceSuite runs the add/search/status checks against factory.
func RunConformanceSuite(t *testing.T, kind string, factory Factory) {
	t.Helper()

	t.Run("AddThenSearchExact", func(t *testing.T) {
		b := factory(t)
		add(t, b, "7", 1, 0, 0)

		got := search(t, b, []float64{1, 0, 0}, 1)
		require.Len(t, got, 1)
		assert.Equal(t, "7", got[0].ID)
		assert.InDelta(t, 0, got[0].Distance, scan.Epsilon)
	})

	t.Run("NearestFirst", func(t *testing.T) {
		b := factory(t)
		add(t, b, "1", 1, 0, 0)
		add(t, b, "2", 0, 1, 0)
		add(t, b, "3", 0, 0, 1)
		add(t, b, "4", 2, 0, 0)

		got := search(t, b, []float64{1.2, 0, 0}, 2)
		require.Len(t, got, 2)
		assert.Equal(t, "1", got[0].ID)
		assert.Equal(t, "4", got[1].ID)
		assert.LessOrEqual(t, got[0].Distance, got[1].Distance)
	})

	t.Run("FewerThanK", func(t *testing.T) {
		b := factory(t)
		add(t, b, "a", 1, 1, 0)
		add(t, b, "b", 0, 1, 1)

		got := search(t, b, []float64{1, 1, 1}, 10)
		assert.Len(t, got, 2)
	})

	t.Run("ReplaceByID", func(t *testing.T) {
		b := factory(t)
		add(t, b, "a", 1, 0, 0)
		add(t, b, "b", 0, 0, 1)
		add(t, b, "a", 0, 1, 0)

		got := search(t, b, []float64{0, 1, 0}, 10)
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].ID)
		assert.InDelta(t, 0, got[0].Distance, scan.Epsilon)
	})

	t.Run("QueryDimensionMismatch", func(t *testing.T) {
		b := factory(t)
		add(t, b, "x", 1, 0, 0)

		s, ok := b.(store.VectorSearcher)
		require.True(t, ok, "backend does not implement SearchVector")
		_, err := s.SearchVector(t.Context(), []float64{1, 0}, 1)
		assert.Error(t, err)
		_, err = s.SearchVector(t.Context(), []float64{1, 0, 0, 0}, 1)
		assert.Error(t, err)
	})

	t.Run("Status", func(t *testing.T) {
		b := factory(t)
		add(t, b, "x", 0, 0, 1)

		st, err := b.GetStatus(t.Context())
		require.NoError(t, err)
		assert.Equal(t, kind, st["type"])
		assert.Equal(t, "Connected", st["status"])
		assert.Contains(t, st, "full_scan")
	})
}

func add(t *testing.T, b store.Backend, id string, v ...float64) {
	t.Helper()
	w, ok := b.(store.VectorWriter)
	require.True(t, ok, "backend does not implement AddVector")
	require.NoError(t, w.AddVector(t.Context(), store.Record{ID: id, Vector: v}))
}

func search(t *testing.T, b store.Backend, q []float64, k int) []store.Candidate {
	t.Helper()
	s, ok := b.(store.VectorSearcher)
	require.True(t, ok, "backend does not implement SearchVector")
	got, err := s.SearchVector(t.Context(), q, k)
	require.NoError(t, err)
	return got
}

// Open opens desc with adapter and registers Close on cleanup.
func Open(t *testing.T, adapter store.Adapter, desc store.Descriptor) store.Backend {
	t.Helper()
	b, err := adapter.Open(t.Context(), desc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b
}
