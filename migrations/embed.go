// Package migrations embeds the Postgres schema so it applies regardless of
// working directory.
package migrations

import "embed"

// FS holds every .sql file in this directory.
//
//go:embed *.sql
var FS embed.FS
