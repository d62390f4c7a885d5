package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/deskagent/agent/infrastructure/logging"
	"github.com/deskagent/agent/internal/app"
)

const serveShutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agent",
	Long: `Start the agent: binds the HTTP API, launches the scheduler and
trash-retention loops, and starts the LLM worker supervisor. Runs until
interrupted (SIGINT/SIGTERM).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logging.New("deskagent", cfg.Logging.Level, cfg.Logging.Format)

		application, err := app.New(cfg, log)
		if err != nil {
			return fmt.Errorf("build application: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := application.Start(ctx); err != nil {
			return fmt.Errorf("start application: %w", err)
		}
		log.Info(ctx, "deskagent started", map[string]interface{}{"addr": application.HTTP.Addr()})

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
		defer cancel()
		return application.Stop(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
