package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/easycontrols/internal/config"
	"github.com/muurk/easycontrols/internal/kwl"
	"github.com/muurk/easycontrols/internal/logging"
	"github.com/muurk/easycontrols/internal/protocol"
	"github.com/muurk/easycontrols/internal/ui"
	"go.uber.org/zap"
)

// Command flags
var (
	modeDuration  float64
	assumeYes     bool
	watchInterval time.Duration
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(modeCmd)
	rootCmd.AddCommand(fanCmd)
	rootCmd.AddCommand(durationCmd)
	rootCmd.AddCommand(powerCmd)
	rootCmd.AddCommand(watchCmd)

	modeCmd.Flags().Float64Var(&modeDuration, "duration", 0, "Intensive run time in minutes (1-1440); the unit's setting when omitted")
	powerCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask before switching off")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Minute, "Refresh interval (reads are throttled to one per minute)")
}

// target is a resolved unit and its client
type target struct {
	cfg     *config.Config
	path    string
	name    string
	device  *config.Device
	client  *kwl.Client
	timeout time.Duration
}

func openTarget() (*target, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}
	name, device, err := cfg.ResolveDevice(deviceArg)
	if err != nil {
		return nil, err
	}

	t := timeout
	if t <= 0 {
		t = cfg.ExchangeTimeout(device)
	}

	logging.Debug("Resolved device",
		zap.String("name", name),
		zap.String("host", device.Host),
		zap.Duration("timeout", t),
	)

	return &target{
		cfg:     cfg,
		path:    path,
		name:    name,
		device:  device,
		client:  kwl.New(device.Host, kwl.WithTimeout(t)),
		timeout: t,
	}, nil
}

func (t *target) label() string {
	return fmt.Sprintf("%s (%s)", t.device.DisplayName(t.name), t.device.Host)
}

// context bounds a whole command: a read plus a write and a read back
func (t *target) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 3*t.timeout+time.Second)
}

// remember stores the identity of a configured device after a successful read
func (t *target) remember(snap *protocol.Snapshot) {
	if t.cfg.GetDevice(t.name) == nil {
		return
	}
	if t.device.Serial == snap.SerialNumber && t.device.Model == snap.Model &&
		time.Since(t.device.LastSeen) < 24*time.Hour {
		return
	}
	t.cfg.RecordSeen(t.name, snap.SerialNumber, snap.Model, time.Now())
	if err := t.cfg.Save(t.path); err != nil {
		logging.Warn("Failed to update config file", zap.String("path", t.path), zap.Error(err))
	}
}

func (t *target) view() ui.SnapshotView {
	snap, ok, available := t.client.State()
	v := ui.SnapshotView{
		Name:       t.device.DisplayName(t.name),
		Host:       t.device.Host,
		Available:  available,
		LastUpdate: t.client.LastUpdate(),
		LastError:  t.client.LastError(),
	}
	if ok {
		v.Snapshot = &snap
	}
	return v
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a unit",
	Long: `Read the status dump of a unit and display mode, fan levels, temperatures,
humidity, CO2 and the filter schedule.`,
	Example: `  # Default device
  kwlctl status

  # A configured device as JSON
  kwlctl status --device loft --format json

  # A unit not in the config file
  kwlctl status --device 192.168.1.40`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	t, err := openTarget()
	if err != nil {
		return err
	}
	ctx, cancel := t.context()
	defer cancel()

	printer := ui.NewPrinter(cmd.OutOrStdout())

	if err := t.client.Refresh(ctx); err != nil {
		printer.PrintError("Could not read "+t.label(), err)
		return reported(err)
	}

	v := t.view()
	if v.Snapshot == nil {
		err := fmt.Errorf("no data from %s: %w", t.device.Host, v.LastError)
		if outputFormat == ui.FormatJSON {
			return err
		}
		printer.PrintError("Could not read "+t.label(), v.LastError)
		return reported(err)
	}

	t.remember(v.Snapshot)
	return printer.PrintSnapshot(v, outputFormat)
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that a unit answers",
	Long: `Open a connection to the unit, request one status dump and decode it.
Reports the identity of the unit and the round trip time.`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func runPing(cmd *cobra.Command, args []string) error {
	t, err := openTarget()
	if err != nil {
		return err
	}
	ctx, cancel := t.context()
	defer cancel()

	printer := ui.NewPrinter(cmd.OutOrStdout())

	start := time.Now()
	snap, err := t.client.TestConnection(ctx)
	if err != nil {
		printer.PrintResult(ui.NewFailureResult("No answer from unit", err).
			AddDetail("Device", t.label()).
			AddDetail("Timeout", t.timeout.String()))
		return reported(err)
	}
	elapsed := time.Since(start)
	t.remember(snap)

	printer.PrintSuccess("Unit reachable", map[string]string{
		"Device":     t.label(),
		"Model":      fmt.Sprintf("%s (%s)", snap.Model, snap.Type),
		"Serial":     strconv.FormatUint(uint64(snap.SerialNumber), 10),
		"Round trip": elapsed.Round(time.Millisecond).String(),
	})
	return nil
}

var modeCmd = &cobra.Command{
	Use:   "mode <at-home|away|intensive|individual>",
	Short: "Switch the operating mode",
	Long: `Switch the operating mode of a unit.

Intensive runs for the unit's configured intensive duration unless --duration
is given. Individual is the fireplace mode.`,
	Example: `  kwlctl mode away
  kwlctl mode intensive --duration 45
  kwlctl mode at-home --device loft`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"at-home", "away", "intensive", "individual"},
	RunE:      runMode,
}

func runMode(cmd *cobra.Command, args []string) error {
	mode, err := protocol.ParseMode(args[0])
	if err != nil {
		return err
	}
	withDuration := cmd.Flags().Changed("duration")
	if withDuration && mode != protocol.ModeIntensive {
		return fmt.Errorf("--duration only applies to intensive mode")
	}

	details := map[string]string{"Mode": mode.DisplayName()}
	if withDuration {
		details["Duration"] = ui.FormatMinutes(protocol.ClampIntensiveDuration(modeDuration))
	}

	return runCommand(cmd, "Operating mode", "Operating mode changed", details, func(ctx context.Context, c *kwl.Client) error {
		if withDuration {
			return c.StartIntensive(ctx, modeDuration)
		}
		return c.SwitchMode(ctx, mode)
	})
}

var fanCmd = &cobra.Command{
	Use:   "fan <at-home|away|intensive> <percent>",
	Short: "Set the fan level of a mode",
	Long: `Set the fan level used in a mode, in percent.

Values are rounded and limited to 1-100. Individual mode has no fan level.`,
	Example: `  kwlctl fan at-home 35
  kwlctl fan intensive 100`,
	Args: cobra.ExactArgs(2),
	RunE: runFan,
}

func runFan(cmd *cobra.Command, args []string) error {
	mode, err := protocol.ParseMode(args[0])
	if err != nil {
		return err
	}
	if mode == protocol.ModeIndividual {
		return &protocol.UnsupportedModeError{Mode: mode, Operation: "setting the fan speed"}
	}
	percent, err := strconv.ParseFloat(strings.TrimSuffix(args[1], "%"), 64)
	if err != nil {
		return fmt.Errorf("invalid fan speed %q", args[1])
	}

	details := map[string]string{
		"Mode":      mode.DisplayName(),
		"Fan speed": fmt.Sprintf("%d%%", protocol.ClampFanSpeed(percent)),
	}
	return runCommand(cmd, "Fan level", "Fan level set", details, func(ctx context.Context, c *kwl.Client) error {
		return c.SetFanSpeed(ctx, percent, mode)
	})
}

var durationCmd = &cobra.Command{
	Use:   "duration <minutes>",
	Short: "Set the intensive duration",
	Long:  `Set how long intensive mode runs, in minutes (1-1440).`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDuration,
}

func runDuration(cmd *cobra.Command, args []string) error {
	minutes, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q", args[0])
	}

	details := map[string]string{"Duration": ui.FormatMinutes(protocol.ClampIntensiveDuration(minutes))}
	return runCommand(cmd, "Intensive duration", "Intensive duration set", details, func(ctx context.Context, c *kwl.Client) error {
		return c.SetIntensiveDuration(ctx, minutes)
	})
}

var powerCmd = &cobra.Command{
	Use:       "power <on|off>",
	Short:     "Switch a unit on or off",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runPower,
}

func runPower(cmd *cobra.Command, args []string) error {
	var on bool
	switch strings.ToLower(args[0]) {
	case "on":
		on = true
	case "off":
		on = false
	default:
		return fmt.Errorf("invalid power state %q (expected on or off)", args[0])
	}

	if !on && !assumeYes && ui.IsTerminal() {
		name := deviceArg
		if name == "" {
			name = "the unit"
		}
		if !ui.ConfirmPowerOff(cmd.InOrStdin(), cmd.OutOrStdout(), name) {
			return nil
		}
	}

	details := map[string]string{"Power": strings.ToLower(args[0])}
	return runCommand(cmd, "Power", "Power switched", details, func(ctx context.Context, c *kwl.Client) error {
		return c.SetPower(ctx, on)
	})
}

// runCommand prints a header, runs fn against the target and prints the result
func runCommand(cmd *cobra.Command, title, done string, details map[string]string, fn func(context.Context, *kwl.Client) error) error {
	t, err := openTarget()
	if err != nil {
		return err
	}
	ctx, cancel := t.context()
	defer cancel()

	printer := ui.NewPrinter(cmd.OutOrStdout())
	if outputFormat == ui.FormatDetailed {
		params := map[string]string{"Device": t.label()}
		for k, v := range details {
			params[k] = v
		}
		printer.PrintHeader(title, cmd.CommandPath()+" "+strings.Join(cmd.Flags().Args(), " "), params)
	}

	if err := fn(ctx, t.client); err != nil {
		if outputFormat == ui.FormatJSON {
			return err
		}
		printer.PrintError(title+" failed", err)
		return reported(err)
	}

	// Commands mark the snapshot dirty; read back the new state
	if err := t.client.Refresh(ctx); err != nil {
		logging.Warn("Failed to read back state", zap.Error(err))
	}
	v := t.view()

	if outputFormat == ui.FormatJSON {
		return printer.PrintSnapshot(v, ui.FormatJSON)
	}
	if v.Snapshot != nil {
		t.remember(v.Snapshot)
		details["Current mode"] = v.Snapshot.Mode.DisplayName()
		details["Current fan"] = fmt.Sprintf("%d%%", v.Snapshot.CurrentFanSpeed)
	}
	printer.PrintSuccess(done, details)
	return nil
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show a live dashboard of a unit",
	Long: `Show the state of a unit full screen and refresh it periodically.
Press q to quit.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	t, err := openTarget()
	if err != nil {
		return err
	}
	if watchInterval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := ui.NewWatchModel(t.device.DisplayName(t.name), t.client, watchInterval)
	m.Timeout = 3 * t.timeout
	return ui.RunWatch(ctx, m)
}
