package commands

import (
	"fmt"

	"github.com/mullionhq/mullion/internal/app"
	"github.com/mullionhq/mullion/internal/config"
	"github.com/mullionhq/mullion/internal/logger"
	"github.com/mullionhq/mullion/internal/platform"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the mullion coordinator",
	Long: `Start the window coordinator with its message bridge server.

A second launch while a coordinator is running does not start another one:
the arguments are handed to the running instance, which either focuses the
main window or spawns a new one, depending on the configured
second_instance mode.`,
	Example: `  # Start with the default configuration
  mullion run

  # Start with a custom bridge port
  mullion run --port 9090

  # Start with a specific config file
  mullion run --config /path/to/config.yaml

  # Start with debug logging
  mullion run --log-level debug`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize config manager: %w", err)
	}

	// Flag overrides win over file values
	if viper.IsSet("server_port") {
		if port := viper.GetInt("server_port"); port > 0 {
			configMgr.SetPort(port)
		}
	}
	if viper.IsSet("log_level") {
		if level := viper.GetString("log_level"); level != "" {
			configMgr.SetLogLevel(level)
		}
	}

	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, !cfg.Production)

	log := logger.WithComponent("cli")
	log.Info().Str("config", configMgr.GetConfigPath()).Msg("Configuration loaded")

	backend, err := platform.New()
	if err != nil {
		return fmt.Errorf("failed to initialize platform backend: %w", err)
	}

	coordinator := app.New(cfg, backend)
	return coordinator.Run()
}
