package cli

import (
	"strings"

	"github.com/deskagent/agent/internal/platform/config"
)

// loadConfig resolves configuration through internal/platform/config.Load
// (defaults, then $CONFIG_FILE or configs/config.yaml, then environment).
// When the root command's --config flag is set it reads that file over the
// defaults with config.LoadFile instead, with no .env or environment overrides.
func loadConfig() (*config.Config, error) {
	if path := strings.TrimSpace(cfgFile); path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
