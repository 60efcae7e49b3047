// Package migrations holds the cache schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
