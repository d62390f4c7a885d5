package agentctl

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	watchFilterKey  string
	watchActionType string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "List, start, or stop folder watches",
}

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active folder watches",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClientFromFlags()
		var tasks []map[string]interface{}
		if err := c.get(cmd.Context(), "/v1/watches", &tasks); err != nil {
			exitError(err)
			return nil
		}
		encoded, _ := json.MarshalIndent(tasks, "", "  ")
		fmt.Println(string(encoded))
		return nil
	},
}

var watchStartCmd = &cobra.Command{
	Use:   "start [folder]",
	Short: "Start watching a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClientFromFlags()
		var task map[string]interface{}
		err := c.post(cmd.Context(), "/v1/watches", map[string]string{
			"folder":      args[0],
			"filter_key":  watchFilterKey,
			"action_type": watchActionType,
		}, &task)
		if err != nil {
			exitError(err)
			return nil
		}
		encoded, _ := json.MarshalIndent(task, "", "  ")
		fmt.Println(string(encoded))
		return nil
	},
}

var watchStopCmd = &cobra.Command{
	Use:   "stop [id]",
	Short: "Stop a folder watch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClientFromFlags()
		var resp map[string]string
		if err := c.delete(cmd.Context(), "/v1/watches/"+args[0], &resp); err != nil {
			exitError(err)
			return nil
		}
		fmt.Println(theme.Success("ok"), colorStatus(resp["status"]))
		return nil
	},
}

func init() {
	watchStartCmd.Flags().StringVar(&watchFilterKey, "filter", "", "filter key restricting which files trigger the watch")
	watchStartCmd.Flags().StringVar(&watchActionType, "action", "", "action type to run when the filter matches")
	watchCmd.AddCommand(watchListCmd, watchStartCmd, watchStopCmd)
	rootCmd.AddCommand(watchCmd)
}
