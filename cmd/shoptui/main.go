// Package main provides the interactive terminal search.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"shopvision/internal/config"
	"shopvision/internal/core"
	"shopvision/internal/logger"
	"shopvision/internal/tui"
)

func main() {
	os.Exit(execute())
}

func execute() int {
	configFile := flag.String("config", "", "Path to YAML configuration file")
	logFile := flag.String("log-file", "", "Write logs to this file instead of discarding them")

	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Resolve(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load config: %v\n", err)

		return 1
	}

	var sink io.Writer = io.Discard

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to open log file: %v\n", err)

			return 1
		}
		defer f.Close()

		sink = f
	}

	log := logger.New(sink, cfg.Logging.Level, cfg.Logging.Format)

	svc, err := core.NewFromConfig(context.Background(), cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to start search core: %v\n", err)

		return 1
	}
	defer svc.Close()

	summary := "Sources: " + strings.Join(svc.Sources(), ", ")

	if _, err := tea.NewProgram(tui.New(svc, summary), tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)

		return 1
	}

	return 0
}
