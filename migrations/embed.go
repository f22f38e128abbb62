// Package migrations embeds the SQL schema migrations into the binary so
// they are applied on startup without a separate deploy artifact.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
