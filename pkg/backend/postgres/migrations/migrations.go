// Package migrations embeds the SQL schema of the postgres vector store.
package migrations

import "embed"

// FS holds the golang-migrate migration files.
//
//go:embed *.sql
var FS embed.FS
