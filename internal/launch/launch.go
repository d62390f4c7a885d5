// Package launch is the thin interface edge the core exposes to the
// OS-specific app-indexing and launch helpers §1 treats as an external
// collaborator: this package only knows how to hand a target (an app
// name, a file path, or a URL) to the OS's own "open" verb. Searching
// an installed-application index, resolving aliases to executables, or
// anything smarter than that is explicitly out of scope here.
package launch

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Launcher opens target the way the host OS would if a user
// double-clicked it: a registered application for a bare name, the
// default handler for a file, or the default browser for a URL.
type Launcher interface {
	Open(ctx context.Context, target string) error
}

// OSLauncher shells out to the platform's own open verb.
type OSLauncher struct{}

// New returns the default OSLauncher.
func New() OSLauncher { return OSLauncher{} }

// Open dispatches target to the OS opener appropriate for the current
// GOOS, mirroring the original agent's subprocess.Popen/webbrowser.open
// split between a bare app name and a URL/file.
func (OSLauncher) Open(ctx context.Context, target string) error {
	name, args := openCommand(target)
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %q: %w", target, err)
	}
	// The opened process is independent of this one; its own lifetime
	// and exit status aren't ours to track past a successful spawn.
	go func() { _ = cmd.Wait() }()
	return nil
}

// openCommand picks the OS verb that hands target to its default
// handler (a file/URL) or runs it directly (a bare app/command name).
func openCommand(target string) (string, []string) {
	switch runtime.GOOS {
	case "windows":
		return "cmd", []string{"/c", "start", "", target}
	case "darwin":
		return "open", []string{target}
	default:
		if looksLikeURLOrPath(target) {
			return "xdg-open", []string{target}
		}
		return target, nil
	}
}

func looksLikeURLOrPath(target string) bool {
	return strings.Contains(target, "://") || strings.HasPrefix(target, "/") || strings.HasPrefix(target, ".") || strings.Contains(target, ".")
}
