//go:build !windows

package worldmodel

// platformKnownFolder has no OS shell-folder API to defer to outside
// Windows; the caller falls back to the OS-conventional home-relative
// path.
func platformKnownFolder(key CanonicalLocation) (string, bool) {
	return "", false
}
