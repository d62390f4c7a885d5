package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskagent/agent/infrastructure/logging"
	"github.com/deskagent/agent/internal/app"
)

var (
	watchFilterKey  string
	watchActionType string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "List or start folder watches",
}

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active folder watches",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logging.New("deskagent-cli", cfg.Logging.Level, cfg.Logging.Format)
		application, err := app.New(cfg, log)
		if err != nil {
			return fmt.Errorf("build application: %w", err)
		}
		encoded, _ := json.MarshalIndent(application.Watch.List(), "", "  ")
		fmt.Println(string(encoded))
		return nil
	},
}

var watchStartCmd = &cobra.Command{
	Use:   "start [folder]",
	Short: "Start watching a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logging.New("deskagent-cli", cfg.Logging.Level, cfg.Logging.Format)
		application, err := app.New(cfg, log)
		if err != nil {
			return fmt.Errorf("build application: %w", err)
		}
		task, err := application.Watch.StartWatch(cmd.Context(), args[0], watchFilterKey, watchActionType, nil)
		if err != nil {
			return err
		}
		encoded, _ := json.MarshalIndent(task, "", "  ")
		fmt.Println(string(encoded))
		return nil
	},
}

func init() {
	watchStartCmd.Flags().StringVar(&watchFilterKey, "filter", "", "filter key restricting which files trigger the watch")
	watchStartCmd.Flags().StringVar(&watchActionType, "action", "", "action type recorded on the watch and used as its metrics label; no on-change command is attached")
	watchCmd.AddCommand(watchListCmd, watchStartCmd)
	rootCmd.AddCommand(watchCmd)
}
