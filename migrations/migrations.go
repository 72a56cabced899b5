// Package migrations embeds the postgres schema of the billing tables. The
// files mirror ent/schema and are applied in name order by cmd/migrate.
package migrations

import "embed"

//go:embed postgres/*.sql
var Postgres embed.FS
