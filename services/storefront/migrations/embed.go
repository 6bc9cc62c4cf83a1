// Package migrations holds the storefront's catalog schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
