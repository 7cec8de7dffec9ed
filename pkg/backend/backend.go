// Package backend holds the static kind-to-adapter table. Each backend kind
// lives in its own subpackage and is listed here by value; there is no
// init-time self registration.
package backend

import (
	"fmt"
	"slices"
	"sort"

	"github.com/marmos91/dittovec/pkg/store"
)

// Adapters maps a kind name to its adapter.
type Adapters struct {
	byKind map[string]store.Adapter
}

// NewAdapters builds a table from the given adapters. A kind listed twice panics,
// since the table is assembled from code rather than configuration.
func NewAdapters(adapters ...store.Adapter) *Adapters {
	a := &Adapters{byKind: make(map[string]store.Adapter, len(adapters))}
	for _, ad := range adapters {
		if _, dup := a.byKind[ad.Kind()]; dup {
			panic(fmt.Sprintf("backend: kind %q listed twice", ad.Kind()))
		}
		a.byKind[ad.Kind()] = ad
	}
	return a
}

// Lookup returns the adapter for kind, or a ConfigError naming the known kinds.
func (a *Adapters) Lookup(kind string) (store.Adapter, error) {
	ad, ok := a.byKind[kind]
	if !ok {
		return nil, store.NewConfigError("", fmt.Sprintf("unknown store kind %q (known: %v)", kind, a.Kinds()), nil)
	}
	return ad, nil
}

// Kinds returns the registered kind names, sorted.
func (a *Adapters) Kinds() []string {
	kinds := make([]string, 0, len(a.byKind))
	for k := range a.byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Check validates that desc can be served: known kind, category supported by
// the kind, and a kind config that decodes.
func (a *Adapters) Check(desc store.Descriptor) (store.Adapter, error) {
	ad, err := a.Lookup(desc.Kind)
	if err != nil {
		return nil, withStore(err, desc.Name)
	}
	if !store.Serves(ad, desc.Category) {
		return nil, store.NewConfigError(desc.Name,
			fmt.Sprintf("kind %q cannot serve category %q (supports %v)", desc.Kind, desc.Category, ad.Categories()), nil)
	}
	if err := ad.ValidateConfig(desc.Config); err != nil {
		return nil, withStore(err, desc.Name)
	}
	return ad, nil
}

// Describe lists kinds with their categories and capabilities for the CLI.
func (a *Adapters) Describe() []KindInfo {
	out := make([]KindInfo, 0, len(a.byKind))
	for _, k := range a.Kinds() {
		ad := a.byKind[k]
		caps := slices.Clone(ad.Capabilities())
		out = append(out, KindInfo{
			Kind:         k,
			Categories:   ad.Categories(),
			Capabilities: caps,
			FullScan:     ad.FullScan(),
		})
	}
	return out
}

// KindInfo summarises one adapter.
type KindInfo struct {
	Kind         string             `json:"kind" yaml:"kind"`
	Categories   []store.Category   `json:"categories" yaml:"categories"`
	Capabilities []store.Capability `json:"capabilities" yaml:"capabilities"`
	FullScan     bool               `json:"full_scan" yaml:"full_scan"`
}

func withStore(err error, name string) error {
	if se, ok := err.(*store.StoreError); ok && se.Store == "" {
		cp := *se
		cp.Store = name
		return &cp
	}
	if store.CodeOf(err) == 0 {
		return store.NewConfigError(name, "invalid store config", err)
	}
	return err
}

// BaseStatus returns the status fields every kind reports: the store's type,
// category and connection state, and whether search is a full scan.
func BaseStatus(desc store.Descriptor, fullScan bool) store.Status {
	return store.Status{
		"type":      desc.Kind,
		"category":  string(desc.Category),
		"status":    "Connected",
		"full_scan": fullScan,
	}
}
