// Package migrations embeds the schema of every service, one directory each.
package migrations

import "embed"

//go:embed order/*.sql product/*.sql search/*.sql user/*.sql
var FS embed.FS
