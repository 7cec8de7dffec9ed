package commands

import (
	"errors"
	"testing"

	"github.com/marmos91/dittovec/pkg/dispatch"
	"github.com/marmos91/dittovec/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVector(t *testing.T) {
	tests := []struct {
		in   string
		want []float64
	}{
		{"1,0,0", []float64{1, 0, 0}},
		{" [0.5, -2, 3e2] ", []float64{0.5, -2, 300}},
		{"7", []float64{7}},
	}
	for _, tt := range tests {
		got, err := parseVector(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{"", "[]", "1,,2", "1,x"} {
		_, err := parseVector(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseMetadata(t *testing.T) {
	assert.Nil(t, parseMetadata(nil))

	meta := parseMetadata(map[string]string{
		"lang":  "en",
		"year":  "2024",
		"score": "0.5",
		"draft": "true",
		"tags":  "[a, b]",
		"empty": "",
	})
	assert.Equal(t, "en", meta["lang"])
	assert.Equal(t, 2024, meta["year"])
	assert.Equal(t, 0.5, meta["score"])
	assert.Equal(t, true, meta["draft"])
	assert.Equal(t, "[a, b]", meta["tags"])
	assert.Equal(t, "", meta["empty"])
}

func TestFailIfAllFailed(t *testing.T) {
	failed := dispatch.Outcome{Store: "a", Err: store.NewAdapterError("a", "boom", errors.New("x"))}
	ok := dispatch.Outcome{Store: "b"}

	assert.NoError(t, failIfAllFailed(nil))
	assert.NoError(t, failIfAllFailed(map[string]dispatch.Outcome{"a": failed, "b": ok}))
	assert.Error(t, failIfAllFailed(map[string]dispatch.Outcome{"a": failed}))
}

func TestStatusDetails(t *testing.T) {
	st := store.Status{"type": "memory", "category": "vector", "status": "Connected", "count": 3}
	assert.Equal(t, "count=3 status=Connected", statusDetails(st))
}

func TestRowsRenderFailures(t *testing.T) {
	rows := resultList{
		{Store: "a", OK: false, Code: "Timeout", Message: "deadline"},
		{Store: "b", OK: true, Results: []store.Candidate{{ID: "1", Distance: 0.25}}},
		{Store: "c", OK: true},
	}.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, "Timeout: deadline", rows[0][4])
	assert.Equal(t, []string{"b", "1", "1", "0.25", "-"}, rows[1])
	assert.Equal(t, "-", rows[2][2])
}
