//go:build windows

package worldmodel

import "golang.org/x/sys/windows"

// windowsFolderIDs maps each canonical location to its Windows known-
// folder GUID.
var windowsFolderIDs = map[CanonicalLocation]*windows.KNOWNFOLDERID{
	LocationDesktop:   &windows.FOLDERID_Desktop,
	LocationDownloads: &windows.FOLDERID_Downloads,
	LocationDocuments: &windows.FOLDERID_Documents,
	LocationPictures:  &windows.FOLDERID_Pictures,
	LocationVideos:    &windows.FOLDERID_Videos,
	LocationMusic:     &windows.FOLDERID_Music,
}

// platformKnownFolder asks the Windows shell for key's known-folder
// path, honouring any user redirection (e.g. Desktop moved to a
// different drive).
func platformKnownFolder(key CanonicalLocation) (string, bool) {
	id, ok := windowsFolderIDs[key]
	if !ok {
		return "", false
	}
	path, err := windows.KnownFolderPath(id, windows.KF_FLAG_DEFAULT)
	if err != nil {
		return "", false
	}
	return path, true
}
