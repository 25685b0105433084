// Package migrations embeds the SQL schema so binaries and tests apply it without
// depending on the working directory.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
