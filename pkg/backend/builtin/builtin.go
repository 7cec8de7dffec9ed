// Package builtin lists every backend kind compiled into dittovec.
package builtin

import (
	"github.com/marmos91/dittovec/pkg/backend"
	"github.com/marmos91/dittovec/pkg/backend/badger"
	"github.com/marmos91/dittovec/pkg/backend/gremlin"
	"github.com/marmos91/dittovec/pkg/backend/hnsw"
	"github.com/marmos91/dittovec/pkg/backend/ivf"
	"github.com/marmos91/dittovec/pkg/backend/memory"
	"github.com/marmos91/dittovec/pkg/backend/mongodb"
	"github.com/marmos91/dittovec/pkg/backend/natskv"
	"github.com/marmos91/dittovec/pkg/backend/postgres"
	"github.com/marmos91/dittovec/pkg/backend/s3"
	"github.com/marmos91/dittovec/pkg/backend/sqlite"
)

// Adapters returns the static kind table.
func Adapters() *backend.Adapters {
	return backend.NewAdapters(
		hnsw.Adapter{},
		ivf.Adapter{},
		badger.Adapter{},
		memory.Adapter{},
		s3.Adapter{},
		mongodb.Adapter{},
		sqlite.Adapter{},
		postgres.Adapter{},
		natskv.Adapter{},
		gremlin.Adapter{},
	)
}
