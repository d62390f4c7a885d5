//go:build windows

package graph

import "golang.org/x/sys/windows"

// isHiddenAttribute reports whether path carries the Windows hidden
// file attribute, checked in addition to the dotfile convention so
// `clean` with an empty filter skips both (§9 Open Question 3).
func isHiddenAttribute(path string) bool {
	pointer, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false
	}
	attrs, err := windows.GetFileAttributes(pointer)
	if err != nil {
		return false
	}
	return attrs&windows.FILE_ATTRIBUTE_HIDDEN != 0
}
