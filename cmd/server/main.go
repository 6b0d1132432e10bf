package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"podium/internal/platform/config"
	"podium/internal/platform/logger"
)

const programName = "podium"

var globalFlags = struct {
	configFile string
	debug      bool
	logText    bool
}{}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Submission and verification service for competitions and achievements",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&globalFlags.configFile, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.logText, "log-text", false, "human-readable log output")

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(migrateCommand())
	rootCmd.AddCommand(tokenCommand())

	if err := rootCmd.Execute(); err != nil {
		slog.Error(err.Error(), "component", programName)
		os.Exit(1)
	}
}

// commonRun loads configuration and builds the process logger.
func commonRun() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(globalFlags.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(logger.Options{
		Debug: globalFlags.debug || cfg.Server.Debug,
		Text:  globalFlags.logText,
	})
	slog.SetDefault(log)

	_, err = maxprocs.Set(maxprocs.Logger(func(format string, v ...any) {
		log.Info(fmt.Sprintf(format, v...), "component", programName)
	}))
	if err != nil {
		return nil, nil, fmt.Errorf("set GOMAXPROCS: %w", err)
	}
	return cfg, log, nil
}
