package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskagent/agent/internal/app"
	"github.com/deskagent/agent/infrastructure/logging"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent commands and their execution state",
	Long: `Print the Command Registry's recent history plus a summary of
how many commands are in each status, and how many still have a
rollback available.`,
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

		recent := application.Registry.GetRecent(statusLimit)
		stats := application.Registry.Stats()

		encoded, _ := json.MarshalIndent(map[string]interface{}{
			"recent": recent,
			"stats":  stats,
		}, "", "  ")
		fmt.Println(string(encoded))
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "maximum number of recent commands to show")
	rootCmd.AddCommand(statusCmd)
}
