// Package migrations embeds the goose SQL migrations so the daemon can apply
// them at startup without a files-on-disk dependency.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
