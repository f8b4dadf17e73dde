// Package pagination normalizes requested page sizes for list queries.
package pagination

// PageSizeConfig sets the fallback and ceiling for a list surface.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize resolves a requested page size against cfg: zero or
// negative requests take the default, requests above Max are capped,
// and the result is always at least one row.
func ClampPageSize(value int32, cfg PageSizeConfig) int {
	size := int(value)
	if size <= 0 {
		size = cfg.Default
	}
	if cfg.Max > 0 && size > cfg.Max {
		size = cfg.Max
	}
	if size < 1 {
		return 1
	}
	return size
}
