package migrations

import "embed"

// FS contains embedded SQLite migrations for companion storage.
//
//go:embed *.sql
var FS embed.FS
