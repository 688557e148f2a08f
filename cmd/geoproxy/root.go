package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/geoproxy/internal/config"
	"github.com/vyrodovalexey/geoproxy/internal/observability"
)

// cliFlags holds persistent command line flags.
type cliFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	rootCmd := &cobra.Command{
		Use:   "geoproxy",
		Short: "Geolocation edge proxy",
		Long: `geoproxy fronts a fixed allow-list of public geolocation APIs.

It serves place search, elevation lookup and satellite and topographic
map tiles to browser clients with uniform CORS and cache headers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c",
		getEnvOrDefault(envConfigPath, ""), "Path to configuration file (built-in defaults when empty)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level",
		getEnvOrDefault(envLogLevel, ""), "Log level (debug, info, warn, error); overrides the config file")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format",
		getEnvOrDefault(envLogFormat, ""), "Log format (json, console); overrides the config file")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newServeCmd(flags),
		newValidateCmd(flags),
		newVersionCmd(),
	)
	return rootCmd
}

// loadConfig loads the configuration file, applies flag overrides and
// validates the result.
func loadConfig(flags *cliFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = flags.logFormat
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger initializes the process logger.
func initLogger(cfg config.LoggingConfig) (observability.Logger, error) {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Level,
		Format: cfg.Format,
		Output: cfg.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	observability.SetGlobalLogger(logger)
	return logger, nil
}
