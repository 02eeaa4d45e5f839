// Package migrations embeds the scene store schema into the binary.
package migrations

import "embed"

// FS holds every *.sql migration at its root, ready for database.Migrate.
//
//go:embed *.sql
var FS embed.FS
