package migrations

import "embed"

// FS contains embedded SQLite migrations for WMD core storage.
//
//go:embed *.sql
var FS embed.FS
