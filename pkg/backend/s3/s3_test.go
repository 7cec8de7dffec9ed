package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovec/pkg/store"
)

func TestConfig(t *testing.T) {
	cfg, err := store.LoadConfig[Config](map[string]any{"bucket": "vectors"})
	require.NoError(t, err)
	assert.Equal(t, "vectors/", cfg.KeyPrefix)

	s := &Store{cfg: cfg}
	assert.Equal(t, "vectors/42.json", s.key("42"))

	assert.Error(t, Adapter{}.ValidateConfig(map[string]any{}), "bucket is required")
	assert.Error(t, Adapter{}.ValidateConfig(map[string]any{"bucket": "b", "access_key_id": "AK"}),
		"secret needed with access key")
	assert.Error(t, Adapter{}.ValidateConfig(map[string]any{"bucket": "b", "endpoint": "not a url"}))
}
