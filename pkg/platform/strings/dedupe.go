// Package strings provides slice helpers shared by request handling.
package strings

// Dedupe removes repeated values, keeping the first occurrence of each. The
// input order is otherwise preserved, so batch reports line up with requests.
func Dedupe[T comparable](values []T) []T {
	if len(values) < 2 {
		return values
	}
	seen := make(map[T]struct{}, len(values))
	result := make([]T, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
