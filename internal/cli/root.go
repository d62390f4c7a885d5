// Package cli implements the deskagent command-line front end: a
// cobra root command plus the serve/submit/status/watch/schedule/
// profile/version subcommands, grounded on the daydemir-ralph CLI's
// package-level *cobra.Command + init()-registration pattern.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deskagent/agent/pkg/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "deskagent",
	Short: "A local desktop automation agent",
	Long: `deskagent turns natural-language requests into policy-gated,
rollback-capable filesystem actions.

Core commands:
  serve      Start the agent (HTTP API, watchers, scheduler, LLM supervisor)
  submit     Send one request through the pipeline and print the outcome
  status     Show recent commands and their execution state
  watch      List or start folder watches
  schedule   List or cancel scheduled tasks
  profile    Change the active execution profile (safe/power/silent)`,
	Version: version.FullVersion(),
}

// Execute runs the root command, returning any error cobra surfaces.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $CONFIG_FILE, else configs/config.yaml)")
	rootCmd.SetVersionTemplate(fmt.Sprintf("deskagent %s\n", version.FullVersion()))
}

func exitError(msg string) {
	fmt.Fprintln(os.Stderr, "Error:", msg)
	os.Exit(1)
}
