// Package migrations embeds the versioned Postgres schema files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
