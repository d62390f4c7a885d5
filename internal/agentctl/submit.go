package agentctl

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var submitSource string

var submitCmd = &cobra.Command{
	Use:   "submit [text]",
	Short: "Send one request to a running agent over HTTP",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := strings.Join(args, " ")
		c := newClientFromFlags()

		var resp map[string]interface{}
		err := c.post(cmd.Context(), "/v1/commands", map[string]string{
			"text":   raw,
			"source": submitSource,
		}, &resp)
		if err != nil {
			exitError(err)
			return nil
		}

		if clar, ok := resp["clarification"]; ok && clar != nil {
			if m, ok := clar.(map[string]interface{}); ok {
				if q, ok := m["Question"].(string); ok {
					fmt.Println(theme.Info("?"), q)
					return nil
				}
			}
		}
		if status, ok := resp["Status"].(string); ok {
			fmt.Printf("%s %s\n", theme.Bold("status:"), colorStatus(status))
		}
		encoded, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(encoded))
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitSource, "source", "agentctl", "source label attached to the submitted command")
	rootCmd.AddCommand(submitCmd)
}
