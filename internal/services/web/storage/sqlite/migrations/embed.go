package migrations

import "embed"

// FS contains embedded SQLite migrations for web browser-session storage.
//
//go:embed *.sql
var FS embed.FS
