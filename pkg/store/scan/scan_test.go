package scan

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovec/pkg/store"
)

func TestParseMetric(t *testing.T) {
	for in, want := range map[string]Metric{
		"":            Euclidean,
		"Euclidean":   Euclidean,
		"cosine":      Cosine,
		"dot":         Dot,
		"dot_product": Dot,
		"Manhattan":   Manhattan,
		"l1":          Manhattan,
		"hamming":     Hamming,
	} {
		got, err := ParseMetric(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMetric("chebyshev")
	assert.Error(t, err)
}

func TestDistance(t *testing.T) {
	d, err := Distance(Euclidean, []float64{0, 0}, []float64{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, Epsilon)

	d, err = Distance(Cosine, []float64{1, 0}, []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d, Epsilon)

	d, err = Distance(Dot, []float64{1, 2}, []float64{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, -11.0, d, Epsilon)

	d, err = Distance(Manhattan, []float64{0, 0}, []float64{3, -4})
	require.NoError(t, err)
	assert.InDelta(t, 7.0, d, Epsilon)

	d, err = Distance(Hamming, []float64{1, 2, 3, 4}, []float64{1, 0, 3, 5})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, d, Epsilon)

	_, err = Distance(Euclidean, []float64{1}, []float64{1, 2})
	assert.Error(t, err)
	_, err = Distance(Manhattan, []float64{1}, []float64{1, 2})
	assert.Error(t, err)
}

func TestCollectorManhattan(t *testing.T) {
	c := New(Manhattan).Begin([]float64{0, 0}, 2)
	c.Offer64("diag", []float64{1, 1})
	c.Offer64("axis", []float64{1.5, 0})
	c.Offer64("far", []float64{3, 3})

	res := c.Results()
	require.Len(t, res, 2)
	assert.Equal(t, "axis", res[0].ID)
	assert.Equal(t, "diag", res[1].ID)
	assert.InDelta(t, 2.0, res[1].Distance, Epsilon)
}

func TestCollectorKeepsNearest(t *testing.T) {
	s := New(Euclidean)
	c := s.Begin([]float64{0, 0}, 3)

	for i := 10; i >= 1; i-- {
		c.Offer64(fmt.Sprint(i), []float64{float64(i), 0})
	}

	res := c.Results()
	require.Len(t, res, 3)
	assert.Equal(t, []string{"1", "2", "3"}, ids(res))
	assert.InDelta(t, 1.0, res[0].Distance, Epsilon)
	assert.Equal(t, 10, c.Scanned())
}

func TestCollectorExactMatchWithinEpsilon(t *testing.T) {
	c := New(Euclidean).Begin([]float64{0.1, 0.2, 0.3}, 1)
	c.Offer64("far", []float64{1, 1, 1})
	c.Offer64("7", []float64{0.1, 0.2, 0.3})

	res := c.Results()
	require.Len(t, res, 1)
	assert.Equal(t, "7", res[0].ID)
	assert.InDelta(t, 0, res[0].Distance, Epsilon)
}

func TestCollectorTieBreakByID(t *testing.T) {
	c := New(Euclidean).Begin([]float64{0}, 2)
	c.Offer64("b", []float64{1})
	c.Offer64("10", []float64{1})
	c.Offer64("9", []float64{1})
	c.Offer64("a", []float64{1})

	assert.Equal(t, []string{"9", "10"}, ids(c.Results()))
}

func TestCollectorSkipsMismatchedDimension(t *testing.T) {
	c := New(Cosine).Begin([]float64{1, 0}, 5)
	c.Offer64("ok", []float64{1, 0})
	c.Offer64("bad", []float64{1, 0, 0})

	assert.Equal(t, 1, c.Scanned())
	assert.Equal(t, 1, c.Skipped())
	assert.Equal(t, []string{"ok"}, ids(c.Results()))
}

func TestCollectorFewerThanK(t *testing.T) {
	c := New(Dot).Begin([]float64{1, 1}, 10)
	c.Offer64("1", []float64{1, 0})
	c.Offer64("2", []float64{2, 2})

	res := c.Results()
	require.Len(t, res, 2)
	assert.Equal(t, "2", res[0].ID)
}

func ids(cs []store.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}
