// Package migrations embeds the SQL migration files for the SQLite driver.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
