package main

import (
	"fmt"
	"os"

	"github.com/reflectscan-tool/cmd"
	"github.com/reflectscan-tool/internal/config"
	"github.com/reflectscan-tool/internal/logger"
)

func main() {
	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Execute command
	if err := cmd.Execute(cfg, log); err != nil {
		log.Fatal("Command execution failed", "error", err)
	}
}
