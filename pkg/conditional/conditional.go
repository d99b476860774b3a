// package conditional
//
// tiny ternary helper for inline defaulting
package conditional

// Ternary : returns a if the condition holds otherwise b
func Ternary[T any](condition bool, a T, b T) T {
	if condition {
		return a
	}
	return b
}
