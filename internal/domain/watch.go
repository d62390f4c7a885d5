package domain

import "time"

// WatchTask is one active filesystem observer (§3, §4.12). WatchID is
// eight lowercase hex characters.
type WatchTask struct {
	WatchID      string
	Folder       string
	ResolvedPath string
	FilterKey    string
	ActionType   string
	StartedAt    time.Time
	OnChange     *Command
}
