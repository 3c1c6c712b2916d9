// Package sqlite embeds the SQLite schema migrations.
package sqlite

import "embed"

//go:embed *.sql
var FS embed.FS

// Dir is the directory within FS where migrations live.
const Dir = "."
