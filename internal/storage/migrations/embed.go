// Package migrations embeds the schema owned by this service.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
