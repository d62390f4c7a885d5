package agentctl

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "List or cancel scheduled tasks",
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClientFromFlags()
		var tasks []map[string]interface{}
		if err := c.get(cmd.Context(), "/v1/schedule", &tasks); err != nil {
			exitError(err)
			return nil
		}
		encoded, _ := json.MarshalIndent(tasks, "", "  ")
		fmt.Println(string(encoded))
		return nil
	},
}

var scheduleCancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a scheduled task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClientFromFlags()
		var resp map[string]string
		if err := c.post(cmd.Context(), "/v1/schedule/"+args[0]+"/cancel", nil, &resp); err != nil {
			exitError(err)
			return nil
		}
		fmt.Println(theme.Success("ok"), colorStatus(resp["status"]))
		return nil
	},
}

func init() {
	scheduleCmd.AddCommand(scheduleListCmd, scheduleCancelCmd)
	rootCmd.AddCommand(scheduleCmd)
}
