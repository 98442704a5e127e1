// Package migrations embeds the SQL migrations of the filing registry.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
