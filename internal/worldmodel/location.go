package worldmodel

import (
	"os"
	"path/filepath"
	"strings"
)

// CanonicalLocation is one of the shell-folder keys the agent resolves
// to an absolute path (§6 "shell folder resolution").
type CanonicalLocation string

const (
	LocationDesktop   CanonicalLocation = "desktop"
	LocationDownloads CanonicalLocation = "downloads"
	LocationDocuments CanonicalLocation = "documents"
	LocationPictures  CanonicalLocation = "pictures"
	LocationVideos    CanonicalLocation = "videos"
	LocationMusic     CanonicalLocation = "music"
)

// locationAliases maps bilingual natural-language phrases to the
// canonical location they mean. Multiple aliases — Arabic and English
// — resolve to the same canonical key, per §6's "Arabic aliases that
// map to the same canonical resolved path."
var locationAliases = map[string]CanonicalLocation{
	"desktop":      LocationDesktop,
	"سطح المكتب":   LocationDesktop,
	"المكتب":       LocationDesktop,
	"downloads":    LocationDownloads,
	"تنزيلات":      LocationDownloads,
	"التنزيلات":    LocationDownloads,
	"documents":    LocationDocuments,
	"مستندات":      LocationDocuments,
	"pictures":     LocationPictures,
	"صور":          LocationPictures,
	"videos":       LocationVideos,
	"فيديوهات":     LocationVideos,
	"music":        LocationMusic,
	"موسيقى":       LocationMusic,
}

// cloudFolderNames lists the subdirectory names a cloud-sync client
// creates under the user's home directory for each canonical location;
// checked in order, first existing wins over the OS default.
var cloudFolderNames = map[CanonicalLocation][]string{
	LocationDesktop:   {"OneDrive/Desktop", "OneDrive/سطح المكتب"},
	LocationDocuments: {"OneDrive/Documents", "OneDrive/مستندات"},
	LocationDownloads: {"OneDrive/Downloads"},
}

// osDefaultNames is the OS-conventional subdirectory name for each
// canonical location, relative to the home directory.
var osDefaultNames = map[CanonicalLocation]string{
	LocationDesktop:   "Desktop",
	LocationDownloads: "Downloads",
	LocationDocuments: "Documents",
	LocationPictures:  "Pictures",
	LocationVideos:    "Videos",
	LocationMusic:     "Music",
}

// ResolveLocation converts a raw location phrase (an alias, a
// canonical key, or an already-absolute path) into an absolute path.
// Unrecognised, non-empty input is returned unchanged on the
// assumption the caller supplied a literal path.
func ResolveLocation(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	key, ok := locationAliases[strings.ToLower(trimmed)]
	if !ok {
		if filepath.IsAbs(trimmed) {
			return trimmed
		}
		return trimmed
	}

	return resolveCanonical(key)
}

// resolveCanonical finds the best absolute path for key: a
// cloud-synced folder if present, else the platform known-folder
// lookup, else the OS-conventional home-relative path.
func resolveCanonical(key CanonicalLocation) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	for _, cloudRel := range cloudFolderNames[key] {
		candidate := filepath.Join(home, filepath.FromSlash(cloudRel))
		if pathExists(candidate) {
			return candidate
		}
	}

	if path, ok := platformKnownFolder(key); ok {
		return path
	}

	if name, ok := osDefaultNames[key]; ok {
		return filepath.Join(home, name)
	}
	return home
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
