package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"alfredoptarigan/assessment-recommender/internal/config"
	"alfredoptarigan/assessment-recommender/internal/logger"
)

const app = "assessment-recommender"

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "assessment-recommender recommends pre-built assessments for a hiring query",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a YAML config file (environment and .env are always read)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
}

// setup loads the configuration and builds the logger. Flags override LOG_JSON and LOG_DEBUG.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	debug, _ := cmd.Flags().GetBool("debug")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	cfg.Server.Debug = cfg.Server.Debug || debug
	cfg.Server.LogJSON = cfg.Server.LogJSON || jsonLogs

	log, err := logger.New(cfg.Server.LogJSON, cfg.Server.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("creating a logger: %w", err)
	}

	return cfg, log, nil
}
