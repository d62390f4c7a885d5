package main

import (
	"os"

	"github.com/deskagent/agent/internal/agentctl"
)

func main() {
	if err := agentctl.Execute(); err != nil {
		os.Exit(1)
	}
}
