package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigSchemaEnumeratesStores(t *testing.T) {
	data, err := json.Marshal(configSchema())
	require.NoError(t, err)

	var doc struct {
		Properties struct {
			Stores struct {
				PropertyNames struct {
					Enum []string `json:"enum"`
				} `json:"propertyNames"`
				AdditionalProperties struct {
					AdditionalProperties struct {
						Properties struct {
							Kind struct {
								Enum []string `json:"enum"`
							} `json:"kind"`
						} `json:"properties"`
					} `json:"additionalProperties"`
				} `json:"additionalProperties"`
			} `json:"stores"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	stores := doc.Properties.Stores
	assert.ElementsMatch(t, []string{"vector", "graph", "key_value", "relational", "cache"}, stores.PropertyNames.Enum)
	kinds := stores.AdditionalProperties.AdditionalProperties.Properties.Kind.Enum
	assert.Contains(t, kinds, "hnsw")
	assert.Contains(t, kinds, "postgres")
	assert.Contains(t, kinds, "gremlin")
}
