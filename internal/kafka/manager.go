package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/wattflow/backend/internal/config"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
)

// Topic constants for the application
const (
	// TopicDeviceNotifications carries raw device telemetry reports
	TopicDeviceNotifications = "device-notifications"
	// TopicDeviceLifecycle carries device connect/disconnect/auth events
	TopicDeviceLifecycle = "device-lifecycle"
	// TopicAlertJobs carries asynchronous alert evaluation work
	TopicAlertJobs = "alert-jobs"
	// TopicMailJobs carries outbound mail work
	TopicMailJobs = "mail-jobs"
)

// Manager coordinates Kafka producers and consumers
type Manager struct {
	config         *config.KafkaConfig
	logger         *utils.Logger
	mainProducer   *Producer
	dlqProducer    *Producer
	consumers      map[string]*Consumer
	consumerCtx    context.Context
	consumerCancel context.CancelFunc
	mu             sync.Mutex
	isRunning      bool
}

// NewManager creates a new Kafka manager
func NewManager(cfg *config.KafkaConfig, logger *utils.Logger) (*Manager, error) {
	kafkaLogger := logger.Named("kafka_manager")

	mainProducer, err := NewProducer(cfg, kafkaLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create main producer: %w", err)
	}

	dlqProducer, err := NewProducer(cfg, kafkaLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create DLQ producer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:         cfg,
		logger:         kafkaLogger,
		mainProducer:   mainProducer,
		dlqProducer:    dlqProducer,
		consumers:      make(map[string]*Consumer),
		consumerCtx:    ctx,
		consumerCancel: cancel,
	}, nil
}

// Start initializes and starts all registered consumers
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("kafka manager is already running")
	}

	for name, consumer := range m.consumers {
		m.logger.Info("Starting consumer", zap.String("name", name))
		if err := consumer.Start(m.consumerCtx); err != nil {
			m.stopAllConsumers()
			return fmt.Errorf("failed to start consumer %s: %w", name, err)
		}
	}

	m.isRunning = true
	m.logger.Info("Kafka manager started")
	return nil
}

// AddConsumer creates and registers a consumer with specific handlers
func (m *Manager) AddConsumer(name string, handlers map[string][]MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("cannot add consumer while manager is running")
	}
	if _, exists := m.consumers[name]; exists {
		return fmt.Errorf("consumer with name %s already exists", name)
	}

	consumer, err := NewConsumer(m.config, m.logger, m.dlqProducer)
	if err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", name, err)
	}

	for topic, topicHandlers := range handlers {
		for _, handler := range topicHandlers {
			consumer.RegisterHandler(topic, handler)
		}
	}

	m.consumers[name] = consumer
	m.logger.Info("Added consumer", zap.String("name", name))
	return nil
}

// ProduceMessage sends a message to the specified topic
func (m *Manager) ProduceMessage(topic string, key string, value interface{}, headers map[string]string) error {
	message := &Message{
		Key:       key,
		Value:     value,
		Timestamp: time.Now(),
		Headers:   headers,
	}
	return m.mainProducer.Produce(topic, message)
}

// ProduceRawNotification publishes a device telemetry report as-is. The
// payload must already be valid JSON.
func (m *Manager) ProduceRawNotification(deviceID string, payload []byte) error {
	return m.ProduceMessage(TopicDeviceNotifications, deviceID, json.RawMessage(payload), nil)
}

// LifecycleEvent names a device connectivity transition
type LifecycleEvent string

const (
	LifecycleConnected      LifecycleEvent = "connected"
	LifecycleDisconnected   LifecycleEvent = "disconnected"
	LifecycleAuthSuccess    LifecycleEvent = "auth_success"
	LifecycleAuthFailed     LifecycleEvent = "auth_failed"
	LifecycleConnectionLost LifecycleEvent = "connection_lost"
)

// ProduceLifecycleEvent publishes a device connectivity transition
func (m *Manager) ProduceLifecycleEvent(deviceID string, event LifecycleEvent) error {
	payload := map[string]interface{}{
		"device":    deviceID,
		"event":     string(event),
		"timestamp": time.Now().Format(time.RFC3339),
	}
	return m.ProduceMessage(TopicDeviceLifecycle, deviceID, payload, nil)
}

// AlertJob is the envelope of one asynchronous alert evaluation
type AlertJob struct {
	DeviceID  uint               `json:"device_id"`
	Values    map[string]float64 `json:"values"`
	Timestamp string             `json:"timestamp"`
}

// ProduceAlertJob enqueues alert evaluation for one notification
func (m *Manager) ProduceAlertJob(deviceID uint, values map[string]float64, at time.Time) error {
	job := AlertJob{
		DeviceID:  deviceID,
		Values:    values,
		Timestamp: at.Format(time.RFC3339Nano),
	}
	return m.ProduceMessage(TopicAlertJobs, fmt.Sprintf("%d", deviceID), job, nil)
}

// MailJob is the envelope of one outbound mail
type MailJob struct {
	Template string                 `json:"template"`
	To       []string               `json:"to"`
	Data     map[string]interface{} `json:"data"`
}

// ProduceMailJob enqueues an outbound mail
func (m *Manager) ProduceMailJob(job MailJob) error {
	key := ""
	if len(job.To) > 0 {
		key = job.To[0]
	}
	return m.ProduceMessage(TopicMailJobs, key, job, nil)
}

// RegisterNotificationHandler registers a handler for raw device reports
func (m *Manager) RegisterNotificationHandler(name string, handler func(payload json.RawMessage, receivedAt time.Time) error) error {
	msgHandler := func(msg *kafka.Message) error {
		receivedAt := msg.Timestamp
		if receivedAt.IsZero() {
			receivedAt = time.Now()
		}
		return handler(msg.Value, receivedAt)
	}
	return m.AddConsumer(
		fmt.Sprintf("%s-notifications", name),
		map[string][]MessageHandler{
			TopicDeviceNotifications: {msgHandler},
		},
	)
}

// RegisterLifecycleHandler registers a handler for connectivity events
func (m *Manager) RegisterLifecycleHandler(name string, handler func(deviceID string, event LifecycleEvent, at time.Time) error) error {
	msgHandler := func(msg *kafka.Message) error {
		var payload struct {
			Device    string `json:"device"`
			Event     string `json:"event"`
			Timestamp string `json:"timestamp"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal lifecycle event: %w", err)
		}
		at, err := time.Parse(time.RFC3339, payload.Timestamp)
		if err != nil {
			at = time.Now()
		}
		return handler(payload.Device, LifecycleEvent(payload.Event), at)
	}
	return m.AddConsumer(
		fmt.Sprintf("%s-lifecycle", name),
		map[string][]MessageHandler{
			TopicDeviceLifecycle: {msgHandler},
		},
	)
}

// RegisterAlertJobHandler registers a handler for alert evaluation jobs
func (m *Manager) RegisterAlertJobHandler(name string, handler func(job AlertJob, at time.Time) error) error {
	msgHandler := func(msg *kafka.Message) error {
		var job AlertJob
		if err := json.Unmarshal(msg.Value, &job); err != nil {
			return fmt.Errorf("failed to unmarshal alert job: %w", err)
		}
		at, err := time.Parse(time.RFC3339Nano, job.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to parse alert job timestamp: %w", err)
		}
		return handler(job, at)
	}
	return m.AddConsumer(
		fmt.Sprintf("%s-alert-jobs", name),
		map[string][]MessageHandler{
			TopicAlertJobs: {msgHandler},
		},
	)
}

// RegisterMailJobHandler registers a handler for outbound mail jobs
func (m *Manager) RegisterMailJobHandler(name string, handler func(job MailJob) error) error {
	msgHandler := func(msg *kafka.Message) error {
		var job MailJob
		if err := json.Unmarshal(msg.Value, &job); err != nil {
			return fmt.Errorf("failed to unmarshal mail job: %w", err)
		}
		return handler(job)
	}
	return m.AddConsumer(
		fmt.Sprintf("%s-mail-jobs", name),
		map[string][]MessageHandler{
			TopicMailJobs: {msgHandler},
		},
	)
}

func (m *Manager) stopAllConsumers() {
	for name, consumer := range m.consumers {
		m.logger.Info("Stopping consumer", zap.String("name", name))
		consumer.Stop()
	}
}

// Stop stops the Kafka manager and all consumers
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isRunning {
		return fmt.Errorf("kafka manager is not running")
	}

	m.consumerCancel()
	m.stopAllConsumers()

	m.mainProducer.Close()
	m.dlqProducer.Close()

	m.isRunning = false
	m.logger.Info("Kafka manager stopped")
	return nil
}

// IsRunning returns whether the Kafka manager is running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRunning
}
