package helpers

// Pointer returns a pointer to a copy of v. Settings use pointer fields to
// tell "unset" apart from the zero value.
func Pointer[T any](v T) *T {
	return &v
}
