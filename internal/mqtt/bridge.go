// Package mqtt bridges the device-facing MQTT broker into Kafka. Devices
// publish their reports over MQTT; the bridge republishes them onto the
// notification topic and translates broker connectivity into lifecycle
// events.
package mqtt

import (
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/wattflow/backend/internal/config"
	"github.com/wattflow/backend/internal/kafka"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
)

const (
	// notificationTopic is the wildcard the bridge subscribes to:
	// devices/<external-id>/notification
	notificationTopic = "devices/+/notification"
	// statusTopic carries device online/offline announcements:
	// devices/<external-id>/status
	statusTopic = "devices/+/status"

	subscribeQoS = 1
)

// Bridge subscribes to device topics on the MQTT broker and forwards
// everything into Kafka.
type Bridge struct {
	client pahomqtt.Client
	kafka  *kafka.Manager
	logger *utils.Logger
}

// NewBridge creates the MQTT bridge. Connect must be called before the
// bridge forwards anything.
func NewBridge(cfg *config.MQTTConfig, kafkaManager *kafka.Manager, logger *utils.Logger) *Bridge {
	b := &Bridge{
		kafka:  kafkaManager,
		logger: logger.Named("mqtt_bridge"),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(30 * time.Second).
		SetOrderMatters(false)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		b.logger.Info("connected to MQTT broker", zap.String("broker", cfg.BrokerURL))
		b.subscribe()
	})
	opts.SetConnectionLostHandler(func(c pahomqtt.Client, err error) {
		b.logger.Warn("MQTT connection lost", zap.Error(err))
	})

	b.client = pahomqtt.NewClient(opts)
	return b
}

// Connect establishes the broker connection. Subscriptions are restored
// automatically on every reconnect by the connect handler.
func (b *Bridge) Connect() error {
	token := b.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("timed out connecting to MQTT broker")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

func (b *Bridge) subscribe() {
	if token := b.client.Subscribe(notificationTopic, subscribeQoS, b.handleNotification); token.Wait() && token.Error() != nil {
		b.logger.Error("failed to subscribe to notification topic", zap.Error(token.Error()))
	}
	if token := b.client.Subscribe(statusTopic, subscribeQoS, b.handleStatus); token.Wait() && token.Error() != nil {
		b.logger.Error("failed to subscribe to status topic", zap.Error(token.Error()))
	}
}

// deviceFromTopic extracts the external device id from a device topic
// of the form devices/<id>/<suffix>.
func deviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "devices" {
		return ""
	}
	return parts[1]
}

func (b *Bridge) handleNotification(_ pahomqtt.Client, msg pahomqtt.Message) {
	deviceID := deviceFromTopic(msg.Topic())
	if deviceID == "" {
		b.logger.Warn("ignoring message on unexpected topic", zap.String("topic", msg.Topic()))
		return
	}

	if err := b.kafka.ProduceRawNotification(deviceID, msg.Payload()); err != nil {
		b.logger.Error("failed to forward notification",
			zap.String("device", deviceID), zap.Error(err))
	}
}

func (b *Bridge) handleStatus(_ pahomqtt.Client, msg pahomqtt.Message) {
	deviceID := deviceFromTopic(msg.Topic())
	if deviceID == "" {
		return
	}

	var event kafka.LifecycleEvent
	switch strings.TrimSpace(strings.ToLower(string(msg.Payload()))) {
	case "online":
		event = kafka.LifecycleConnected
	case "offline":
		// Retained will messages arrive here when a device drops without
		// a clean disconnect.
		event = kafka.LifecycleConnectionLost
	case "disconnected":
		event = kafka.LifecycleDisconnected
	default:
		b.logger.Warn("unknown device status payload",
			zap.String("device", deviceID),
			zap.ByteString("payload", msg.Payload()))
		return
	}

	if err := b.kafka.ProduceLifecycleEvent(deviceID, event); err != nil {
		b.logger.Error("failed to forward lifecycle event",
			zap.String("device", deviceID), zap.Error(err))
	}
}

// Close disconnects from the broker, allowing in-flight work to finish.
func (b *Bridge) Close() {
	b.client.Disconnect(250)
	b.logger.Info("MQTT bridge stopped")
}
