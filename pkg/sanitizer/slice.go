package sanitizer

// NormalizeStringSlice maps every item through normalizer and keeps the first
// occurrence of each non-empty result, in input order. Aliases such as
// "Hair Cut" and "haircut " collapse to one entry this way.
func NormalizeStringSlice(items []string, normalizer func(string) string) []string {
	result := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		n := normalizer(item)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}
