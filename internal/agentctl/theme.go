package agentctl

import "github.com/fatih/color"

// theme holds the color functions agentctl's output uses, grounded on
// daydemir-ralph's display.Theme: status-keyed colors plus a couple of
// structural ones, rather than coloring ad hoc at each call site.
var theme = struct {
	Success func(a ...interface{}) string
	Error   func(a ...interface{}) string
	Warning func(a ...interface{}) string
	Info    func(a ...interface{}) string
	Bold    func(a ...interface{}) string
	Dim     func(a ...interface{}) string
}{
	Success: color.New(color.FgGreen).SprintFunc(),
	Error:   color.New(color.FgRed, color.Bold).SprintFunc(),
	Warning: color.New(color.FgYellow).SprintFunc(),
	Info:    color.New(color.FgCyan).SprintFunc(),
	Bold:    color.New(color.Bold).SprintFunc(),
	Dim:     color.New(color.Faint).SprintFunc(),
}

// colorStatus renders a command/watch/schedule status string in the
// color that matches its meaning, falling back to plain Bold for
// anything it doesn't recognise.
func colorStatus(status string) string {
	switch status {
	case "COMPLETED", "running", "ok":
		return theme.Success(status)
	case "FAILED", "error":
		return theme.Error(status)
	case "CANCELLED", "ROLLED_BACK", "cancelled", "stopped", "paused":
		return theme.Warning(status)
	case "PENDING", "PROCESSING":
		return theme.Info(status)
	default:
		return theme.Bold(status)
	}
}
