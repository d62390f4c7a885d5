package agentctl

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deskagent/agent/internal/platform/config"
	"github.com/deskagent/agent/pkg/version"
)

var addrFlag string

var rootCmd = &cobra.Command{
	Use:   "agentctl",
	Short: "Operator CLI for a running deskagent instance",
	Long: `agentctl talks to a running deskagent's HTTP API (internal/httpapi)
over the network — unlike "deskagent <cmd>" (internal/cli), it never
builds its own in-process copy of the agent, so it works against a
remote or long-lived agent process just as well as a local one.`,
	Version: version.FullVersion(),
}

// Execute runs the root command, returning any error cobra surfaces.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "agent HTTP address (default: from config, e.g. 127.0.0.1:8080)")
	rootCmd.SetVersionTemplate(fmt.Sprintf("agentctl %s\n", version.FullVersion()))
}

// resolveAddr returns the --addr override, or falls back to the
// agent's own configured SERVER_HOST/SERVER_PORT so agentctl points at
// the same address "deskagent serve" binds by default.
func resolveAddr() string {
	if addrFlag != "" {
		return addrFlag
	}
	cfg, err := config.Load()
	if err != nil {
		return "127.0.0.1:8080"
	}
	return fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
}

func newClientFromFlags() *client {
	return newClient(resolveAddr())
}

func exitError(err error) {
	fmt.Fprintln(os.Stderr, theme.Error("Error:"), err)
	os.Exit(1)
}
