// Package migrations embeds the SQL schema migrations for the Postgres
// catalog backend.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
