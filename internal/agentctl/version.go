package agentctl

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskagent/agent/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the agentctl version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.FullVersion())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
