//go:build !linux

package platform

// New returns the in-memory backend on platforms without a native
// implementation.
func New() (Backend, error) {
	return NewStub(), nil
}
