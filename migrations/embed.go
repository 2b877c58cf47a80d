// Package migrations embeds the SQLite schema files.
package migrations

import "embed"

// Files holds every NNN_name.sql migration
//
//go:embed *.sql
var Files embed.FS
