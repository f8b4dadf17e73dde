// Package defs embeds the default WMD catalog definitions.
package defs

import _ "embed"

// CatalogJSON contains the embedded default catalog.
//
//go:embed catalog.json
var CatalogJSON string
