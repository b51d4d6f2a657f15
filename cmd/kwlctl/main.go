// Kwlctl controls Helios KWL ventilation units through their easyControls 3.0
// web interface.
//
// It reads and changes the operating mode, fan levels, intensive duration and
// power of a unit, shows a live dashboard, and can run as a service exposing
// configured units over an HTTP API and to Home Assistant via MQTT discovery.
//
// Usage:
//
//	kwlctl [command] [flags]
//
// See 'kwlctl --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/easycontrols/internal/config"
	"github.com/muurk/easycontrols/internal/logging"
	"github.com/muurk/easycontrols/internal/ui"
	"github.com/muurk/easycontrols/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		var r *reportedError
		if !errors.As(err, &r) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// reportedError is an error already shown to the user in a result box
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	return &reportedError{err: err}
}

// Global flags
var (
	deviceArg    string
	configPath   string
	timeout      time.Duration
	logLevel     string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "kwlctl",
	Short: "Helios easyControls KWL control utility",
	Long: `Control Helios KWL ventilation units with an easyControls 3.0 web interface.

Units are addressed by the name they were given in the configuration file
(see 'kwlctl config add') or directly by host name or IP address.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Initialize(logLevel); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		switch outputFormat {
		case ui.FormatDetailed, ui.FormatJSON:
		default:
			return fmt.Errorf("unknown output format %q (expected %s or %s)", outputFormat, ui.FormatDetailed, ui.FormatJSON)
		}
		return nil
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&deviceArg, "device", "d", "", "Device name from the config file, or a host address")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default ~/.config/easycontrols/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-exchange timeout (default from config, 10s)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default $"+logging.LogLevelEnvVar+", silent)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", ui.FormatDetailed, "Output format (detailed, json)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kwlctl %s\n", version.Full())
	},
}

// loadConfig reads --config or the default config file. A missing file
// yields an empty configuration.
func loadConfig() (*config.Config, string, error) {
	if configPath != "" {
		cfg, err := config.Load(configPath)
		return cfg, configPath, err
	}
	return config.LoadDefault()
}
