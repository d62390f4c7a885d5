package agentctl

import (
	"fmt"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:       "profile [safe|power|silent]",
	Short:     "Change the active execution profile",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"safe", "power", "silent"},
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClientFromFlags()
		var resp map[string]string
		if err := c.post(cmd.Context(), "/v1/profile", map[string]string{"profile": args[0]}, &resp); err != nil {
			exitError(err)
			return nil
		}
		fmt.Println(theme.Success("profile set to"), theme.Bold(resp["profile"]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
}
