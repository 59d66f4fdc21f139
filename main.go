package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ShashidharM0118/sitelenz/cmd"
	"github.com/ShashidharM0118/sitelenz/internal/conf"
	"github.com/ShashidharM0118/sitelenz/internal/logging"
	"github.com/ShashidharM0118/sitelenz/internal/telemetry"
)

// version and buildDate are set by the build process
var version = "dev"
var buildDate = ""

func main() {
	if buildDate == "" {
		buildDate = time.Now().UTC().Format(time.RFC3339)
	}

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}
	settings.Version = version
	settings.BuildDate = buildDate

	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	logging.Init(level)

	if err := telemetry.Init(settings); err != nil {
		slog.Warn("error telemetry disabled", "error", err)
	}
	defer telemetry.Flush(3 * time.Second)

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "command error: %v\n", err)
		os.Exit(1)
	}
}
