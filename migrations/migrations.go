// Package migrations carries the database schema as embedded SQL files,
// applied in lexicographic order at startup.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
