package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "mullion",
		Short: "Mullion - Multi-window desktop shell coordinator",
		Long: `Mullion coordinates the windows of a multi-window desktop application:
it creates and places OS windows, routes messages between their content
processes, and owns the application lifecycle.

Features:
  • Anchor-relative window placement with per-window config
  • WebSocket message bridge between content processes
  • Parent/child window relations with focus return
  • Single-instance enforcement with argv handover
  • Device hot-plug relay to content processes
  • Persistent configuration`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/mullion/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "bridge server port (default is 7430)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	// Bind flags to viper
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
