// Package migrations holds the schema as numbered goose SQL files. Files are
// applied in version order and never edited once released.
package migrations

import "embed"

// FS is the set of migration files, rooted at this directory.
//
//go:embed *.sql
var FS embed.FS
