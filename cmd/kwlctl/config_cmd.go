package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/easycontrols/internal/config"
	"github.com/muurk/easycontrols/internal/kwl"
	"github.com/muurk/easycontrols/internal/ui"
)

// Config command flags
var (
	addNickname string
	addDefault  bool
	addNoCheck  bool
	initForce   bool
	showSecrets bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configAddCmd, configRemoveCmd, configDefaultCmd, configPathCmd)

	configInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	configShowCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print the MQTT password")
	configAddCmd.Flags().StringVar(&addNickname, "nickname", "", "Display name (also the Home Assistant device name)")
	configAddCmd.Flags().BoolVar(&addDefault, "default", false, "Make this the default device")
	configAddCmd.Flags().BoolVar(&addNoCheck, "no-check", false, "Do not contact the unit before saving")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.NewConfig().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\nAdd a unit with 'kwlctl config add <name> <host>'.\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		if !showSecrets && cfg.MQTT.Password != "" {
			cfg.MQTT.Password = "********"
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, data)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}
		return nil
	},
}

var configAddCmd = &cobra.Command{
	Use:   "add <name> <host>",
	Short: "Add or update a unit",
	Long: `Add a unit to the config file, or change the host of an existing one.

The unit is contacted first to confirm it answers and to record its model and
serial number; pass --no-check to skip this.`,
	Example: `  kwlctl config add home 192.168.1.40
  kwlctl config add loft kwl-loft.local --nickname "Loft KWL"`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigAdd,
}

func runConfigAdd(cmd *cobra.Command, args []string) error {
	name, host := args[0], args[1]

	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}

	device := cfg.EnsureDevice(name, host)
	if addNickname != "" {
		device.Nickname = addNickname
	}
	if addDefault {
		cfg.DefaultDevice = name
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	printer := ui.NewPrinter(cmd.OutOrStdout())
	details := map[string]string{"Name": name, "Host": host}

	if !addNoCheck {
		t := timeout
		if t <= 0 {
			t = cfg.ExchangeTimeout(device)
		}
		ctx, cancel := context.WithTimeout(context.Background(), t+time.Second)
		defer cancel()

		snap, err := kwl.New(host, kwl.WithTimeout(t)).TestConnection(ctx)
		if err != nil {
			printer.PrintError("Could not reach "+host, err)
			return reported(fmt.Errorf("%s was not saved: %w", name, err))
		}
		cfg.RecordSeen(name, snap.SerialNumber, snap.Model, time.Now())
		details["Model"] = fmt.Sprintf("%s (%s)", snap.Model, snap.Type)
		details["Serial"] = strconv.FormatUint(uint64(snap.SerialNumber), 10)
	}

	if err := cfg.Save(path); err != nil {
		return err
	}
	if cfg.DefaultDevice == name {
		details["Default"] = "yes"
	}
	printer.PrintSuccess("Saved to "+path, details)
	return nil
}

var configRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a unit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.RemoveDevice(args[0]) {
			return fmt.Errorf("unknown device %q", args[0])
		}
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	},
}

var configDefaultCmd = &cobra.Command{
	Use:   "default <name>",
	Short: "Set the default unit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.GetDevice(args[0]) == nil {
			return fmt.Errorf("unknown device %q", args[0])
		}
		cfg.DefaultDevice = args[0]
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Default device is now %s\n", args[0])
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}
