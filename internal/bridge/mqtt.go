package bridge

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/muurk/easycontrols/internal/config"
	"github.com/muurk/easycontrols/internal/logging"
	"go.uber.org/zap"
)

const connectTimeout = 30 * time.Second

// ClientOptions builds paho options from the MQTT configuration. The bridge
// status topic gets a retained last will and is set online on every connect,
// after which onConnect runs.
func ClientOptions(cfg *config.MQTTConfig, onConnect func(mqtt.Client)) *mqtt.ClientOptions {
	status := StatusTopic(cfg.TopicPrefix)

	return mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false).
		SetWill(status, payloadOffline, 1, true).
		SetOnConnectHandler(func(c mqtt.Client) {
			logging.Info("Connected to MQTT broker", zap.String("broker", cfg.Broker))
			t := c.Publish(status, 1, true, payloadOnline)
			if t.Wait() && t.Error() != nil {
				logging.Warn("Failed to publish bridge status", zap.Error(t.Error()))
			}
			if onConnect != nil {
				onConnect(c)
			}
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logging.Warn("Lost connection to MQTT broker", zap.Error(err))
		}).
		SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
			logging.Info("Reconnecting to MQTT broker", zap.String("broker", cfg.Broker))
		})
}

// Connect waits for the first connection attempt of c
func Connect(c mqtt.Client) error {
	t := c.Connect()
	if !t.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connect to MQTT broker: timed out after %s", connectTimeout)
	}
	if err := t.Error(); err != nil {
		return fmt.Errorf("connect to MQTT broker: %w", err)
	}
	return nil
}

// Disconnect publishes the bridge offline and closes the connection
func Disconnect(c mqtt.Client, cfg *config.MQTTConfig) {
	t := c.Publish(StatusTopic(cfg.TopicPrefix), 1, true, payloadOffline)
	t.WaitTimeout(5 * time.Second)
	c.Disconnect(250)
}
