package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deskagent/agent/infrastructure/logging"
	"github.com/deskagent/agent/internal/app"
	"github.com/deskagent/agent/internal/platform/config"
)

var submitCmd = &cobra.Command{
	Use:   "submit [text]",
	Short: "Send one request through the pipeline",
	Long: `Build an in-process agent, submit raw natural-language text through
its pipeline, and print the resulting outcome: the execution status,
or the clarifying question if the Decision Engine couldn't proceed without
more information.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := strings.Join(args, " ")
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return runSubmit(cfg, raw)
	},
}

func runSubmit(cfg *config.Config, raw string) error {
	log := logging.New("deskagent-cli", cfg.Logging.Level, cfg.Logging.Format)
	application, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	ctx := context.Background()
	outcome, err := application.Pipeline.Submit(ctx, raw, "cli")
	if err != nil {
		return err
	}

	if outcome.Clarification != nil {
		fmt.Println(outcome.Clarification.Question)
		return nil
	}

	encoded, _ := json.MarshalIndent(outcome, "", "  ")
	fmt.Println(string(encoded))
	return nil
}

func init() {
	rootCmd.AddCommand(submitCmd)
}
