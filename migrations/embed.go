// Package migrations holds the directory service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
