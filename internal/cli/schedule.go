package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskagent/agent/infrastructure/logging"
	"github.com/deskagent/agent/internal/app"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "List or cancel scheduled tasks",
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled tasks",
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
		tasks, err := application.Schedule.List(cmd.Context())
		if err != nil {
			return err
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
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logging.New("deskagent-cli", cfg.Logging.Level, cfg.Logging.Format)
		application, err := app.New(cfg, log)
		if err != nil {
			return fmt.Errorf("build application: %w", err)
		}
		if err := application.Schedule.CancelTask(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("cancelled")
		return nil
	},
}

func init() {
	scheduleCmd.AddCommand(scheduleListCmd, scheduleCancelCmd)
	rootCmd.AddCommand(scheduleCmd)
}
