package redis

import "strings"

// splitCSV and joinCSV encode string slices as comma-separated Redis hash
// field values — hash fields are scalars, so ordered lists like
// AllowedCfgKeys are flattened rather than stored as nested structures.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func joinCSV(items []string) string {
	return strings.Join(items, ",")
}
