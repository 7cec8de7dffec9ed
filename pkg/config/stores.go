package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/marmos91/dittovec/pkg/store"
)

// StoreConfig is one entry under stores.<category>.<name>.
type StoreConfig struct {
	// Kind selects the backend implementation, e.g. "hnsw" or "postgres".
	Kind string `mapstructure:"kind" yaml:"kind"`

	// Enabled defaults to true when omitted.
	Enabled *bool `mapstructure:"enabled" yaml:"enabled,omitempty"`

	// Config holds the kind-specific tunables. It is decoded and validated by
	// the kind's adapter, not here.
	Config map[string]any `mapstructure:"config" yaml:"config,omitempty"`
}

// IsEnabled returns whether the store is enabled. Defaults to true.
func (s StoreConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Descriptors converts the stores section into descriptors, ordered by
// category then name. Only the shape is checked here: a known category and a
// kind on every entry. All problems are reported together as ConfigErrors.
func (c *Config) Descriptors() ([]store.Descriptor, error) {
	var (
		descs []store.Descriptor
		errs  []error
	)
	for _, rawCategory := range slices.Sorted(maps.Keys(c.Stores)) {
		category, err := store.ParseCategory(rawCategory)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		entries := c.Stores[rawCategory]
		for _, rawName := range slices.Sorted(maps.Keys(entries)) {
			entry := entries[rawName]
			name := store.NormalizeName(rawName)
			if name == "" {
				errs = append(errs, store.NewConfigError("", fmt.Sprintf("empty store name under %q", rawCategory), nil))
				continue
			}
			if entry.Kind == "" {
				errs = append(errs, store.NewConfigError(name, "missing required key \"kind\"", nil))
				continue
			}
			descs = append(descs, store.Descriptor{
				Name:     name,
				Category: category,
				Kind:     store.NormalizeName(entry.Kind),
				Config:   entry.Config,
				Enabled:  entry.IsEnabled(),
			})
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return descs, nil
}
