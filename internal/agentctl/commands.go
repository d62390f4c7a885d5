package agentctl

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var commandsLimit int

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List, inspect, or act on submitted commands",
}

var commandsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClientFromFlags()
		var recent []map[string]interface{}
		if err := c.get(cmd.Context(), fmt.Sprintf("/v1/commands?limit=%d", commandsLimit), &recent); err != nil {
			exitError(err)
			return nil
		}
		for _, rec := range recent {
			id, _ := rec["ID"].(string)
			status, _ := rec["Status"].(string)
			fmt.Printf("%s  %s  %s\n", theme.Dim(id), colorStatus(status), rec["RawInput"])
		}
		return nil
	},
}

var commandsGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show a command's record, status, and timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClientFromFlags()
		var resp map[string]interface{}
		if err := c.get(cmd.Context(), "/v1/commands/"+args[0], &resp); err != nil {
			exitError(err)
			return nil
		}
		encoded, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(encoded))
		return nil
	},
}

func simpleTransition(use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClientFromFlags()
			var resp map[string]string
			if err := c.post(cmd.Context(), fmt.Sprintf("/v1/commands/%s/%s", args[0], path), nil, &resp); err != nil {
				exitError(err)
				return nil
			}
			fmt.Println(theme.Success("ok"), colorStatus(resp["status"]))
			return nil
		},
	}
}

var commandsPauseCmd = simpleTransition("pause [id]", "Pause a running command", "pause")
var commandsResumeCmd = simpleTransition("resume [id]", "Resume a paused command", "resume")
var commandsCancelCmd = simpleTransition("cancel [id]", "Cancel a command", "cancel")

var commandsRollbackCmd = &cobra.Command{
	Use:   "rollback [id]",
	Short: "Undo a completed command's side effects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClientFromFlags()
		var result map[string]interface{}
		if err := c.post(cmd.Context(), "/v1/commands/"+args[0]+"/rollback", nil, &result); err != nil {
			exitError(err)
			return nil
		}
		encoded, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(encoded))
		return nil
	},
}

func init() {
	commandsListCmd.Flags().IntVar(&commandsLimit, "limit", 20, "maximum number of recent commands to show")
	commandsCmd.AddCommand(commandsListCmd, commandsGetCmd, commandsPauseCmd, commandsResumeCmd, commandsCancelCmd, commandsRollbackCmd)
	rootCmd.AddCommand(commandsCmd)
}
