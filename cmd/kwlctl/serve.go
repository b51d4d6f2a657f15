package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/easycontrols/internal/api"
	"github.com/muurk/easycontrols/internal/bridge"
	"github.com/muurk/easycontrols/internal/config"
	"github.com/muurk/easycontrols/internal/kwl"
	"github.com/muurk/easycontrols/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Serve flags
var (
	serveListen   string
	serveInterval time.Duration
	serveNoMQTT   bool
	serveNoHTTP   bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP API listen address (overrides http.listen)")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 0, "Poll interval (overrides poll.interval)")
	serveCmd.Flags().BoolVar(&serveNoMQTT, "no-mqtt", false, "Do not start the Home Assistant MQTT bridge")
	serveCmd.Flags().BoolVar(&serveNoHTTP, "no-http", false, "Do not start the HTTP API")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and Home Assistant bridge",
	Long: `Poll every configured unit and expose it over the HTTP API and, when
mqtt.enabled is set, to Home Assistant via MQTT discovery.

Runs until interrupted. Logs at info level unless --log-level says otherwise.`,
	Example: `  # Everything enabled in the config file
  kwlctl serve

  # HTTP API only, on another port
  kwlctl serve --no-mqtt --listen :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if logLevel == "" && os.Getenv(logging.LogLevelEnvVar) == "" {
		if err := logging.Initialize("info"); err != nil {
			return err
		}
	}

	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.HTTP.Enabled = true
		cfg.HTTP.Listen = serveListen
	}
	if serveInterval > 0 {
		cfg.Poll.Interval = serveInterval
	}
	if serveNoMQTT {
		cfg.MQTT.Enabled = false
	}
	if serveNoHTTP {
		cfg.HTTP.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	names := cfg.DeviceNames()
	if len(names) == 0 {
		return fmt.Errorf("no devices in %s (add one with 'kwlctl config add <name> <host>')", path)
	}
	if !cfg.MQTT.Enabled && !cfg.HTTP.Enabled {
		return errors.New("nothing to serve: enable http or mqtt in the config file")
	}

	clients := make(map[string]*kwl.Client, len(names))
	for _, name := range names {
		d := cfg.Devices[name]
		t := timeout
		if t <= 0 {
			t = cfg.ExchangeTimeout(d)
		}
		clients[name] = kwl.New(d.Host, kwl.WithTimeout(t))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	interval := cfg.Poll.Interval

	logging.Info("Starting",
		zap.Strings("devices", names),
		zap.Duration("interval", interval),
		zap.Bool("mqtt", cfg.MQTT.Enabled),
		zap.Bool("http", cfg.HTTP.Enabled),
	)

	if cfg.MQTT.Enabled {
		mqttClient, err := startBridges(ctx, g, cfg, clients, interval)
		if err != nil {
			return err
		}
		defer bridge.Disconnect(mqttClient, cfg.MQTT)
	} else {
		for name, c := range clients {
			g.Go(func() error { return pollLoop(ctx, name, c, interval) })
		}
	}

	if cfg.HTTP.Enabled {
		startHTTP(ctx, g, cfg, clients)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info("Stopped")
	return nil
}

func startBridges(ctx context.Context, g *errgroup.Group, cfg *config.Config, clients map[string]*kwl.Client, interval time.Duration) (mqtt.Client, error) {
	var bridges []*bridge.Bridge

	opts := bridge.ClientOptions(cfg.MQTT, func(mqtt.Client) {
		for _, b := range bridges {
			if err := b.Resubscribe(); err != nil {
				logging.Warn("Failed to resubscribe", zap.Error(err))
			}
		}
	})
	mqttClient := mqtt.NewClient(opts)

	// Bridges exist before the first connect so the handler sees all of them
	for _, name := range cfg.DeviceNames() {
		bridges = append(bridges, bridge.New(clients[name], mqttClient, bridge.Options{
			DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
			TopicPrefix:     cfg.MQTT.TopicPrefix,
			Name:            cfg.Devices[name].Nickname,
		}))
	}

	if err := bridge.Connect(mqttClient); err != nil {
		return nil, err
	}
	for _, b := range bridges {
		g.Go(func() error { return b.Run(ctx, interval) })
	}
	return mqttClient, nil
}

func startHTTP(ctx context.Context, g *errgroup.Group, cfg *config.Config, clients map[string]*kwl.Client) {
	devices := make(map[string]api.Device, len(clients))
	for name, c := range clients {
		devices[name] = c
	}
	defaultDevice := cfg.DefaultDevice
	if defaultDevice == "" {
		defaultDevice = cfg.DeviceNames()[0]
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           api.New(devices, defaultDevice),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logging.Info("HTTP API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// pollLoop keeps a unit's snapshot and availability current when no bridge does
func pollLoop(ctx context.Context, name string, c *kwl.Client, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := c.Refresh(ctx); err != nil {
			logging.Warn("Failed to refresh", zap.String("device", name), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
