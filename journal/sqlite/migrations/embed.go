package migrations

import "embed"

// FS holds the audit journal schema.
//
//go:embed *.sql
var FS embed.FS
