package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskagent/agent/infrastructure/logging"
	"github.com/deskagent/agent/internal/app"
	"github.com/deskagent/agent/internal/policy"
)

var profileCmd = &cobra.Command{
	Use:       "profile [safe|power|silent]",
	Short:     "Change the active execution profile",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"safe", "power", "silent"},
	RunE: func(cmd *cobra.Command, args []string) error {
		requested := policy.Profile(args[0])
		switch requested {
		case policy.ProfileSafe, policy.ProfilePower, policy.ProfileSilent:
		default:
			return fmt.Errorf("unknown profile %q (want safe, power, or silent)", args[0])
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logging.New("deskagent-cli", cfg.Logging.Level, cfg.Logging.Format)
		application, err := app.New(cfg, log)
		if err != nil {
			return fmt.Errorf("build application: %w", err)
		}
		application.Policy.SetProfile(requested)
		fmt.Printf("profile set to %s\n", requested)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
}
