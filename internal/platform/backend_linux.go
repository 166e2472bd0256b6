//go:build linux

package platform

// New returns the X11 backend on Linux.
func New() (Backend, error) {
	return newX11Backend()
}
