package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/wattflow/backend/internal/config"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
)

// MessageHandler is a function that processes a Kafka message
type MessageHandler func(msg *kafka.Message) error

// Consumer provides functionality to consume messages from Kafka topics.
// Handler errors route the message to a per-topic dead letter queue.
type Consumer struct {
	consumer       *kafka.Consumer
	logger         *utils.Logger
	config         *config.KafkaConfig
	handlers       map[string][]MessageHandler
	dlqProducer    *Producer
	stopChannel    chan struct{}
	// runningChannel is closed when the consume loop exits; Stop blocks on it.
	runningChannel chan struct{}
	isRunning      atomic.Bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, logger *utils.Logger, dlqProducer *Producer) (*Consumer, error) {
	kafkaLogger := logger.Named("kafka_consumer")

	kafkaConfig := &kafka.ConfigMap{
		"bootstrap.servers":       cfg.Brokers,
		"group.id":                cfg.ConsumerGroup,
		"auto.offset.reset":       "earliest",
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
	}
	if err := applySecurity(kafkaConfig, cfg); err != nil {
		return nil, err
	}

	consumer, err := kafka.NewConsumer(kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	return &Consumer{
		consumer:       consumer,
		logger:         kafkaLogger,
		config:         cfg,
		handlers:       make(map[string][]MessageHandler),
		dlqProducer:    dlqProducer,
		stopChannel:    make(chan struct{}),
		runningChannel: make(chan struct{}),
	}, nil
}

// RegisterHandler registers a message handler for a specific topic
func (c *Consumer) RegisterHandler(topic string, handler MessageHandler) {
	c.handlers[topic] = append(c.handlers[topic], handler)
	c.logger.Info("Registered handler for topic", zap.String("topic", topic))
}

// Start subscribes to all registered topics and begins consuming
func (c *Consumer) Start(ctx context.Context) error {
	if c.isRunning.Load() {
		return fmt.Errorf("consumer is already running")
	}

	topics := make([]string, 0, len(c.handlers))
	for topic := range c.handlers {
		topics = append(topics, topic)
	}
	if len(topics) == 0 {
		return fmt.Errorf("no topics registered")
	}

	if err := c.consumer.SubscribeTopics(topics, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topics: %w", err)
	}

	c.logger.Info("Subscribed to topics", zap.Strings("topics", topics))
	c.isRunning.Store(true)
	go c.consumeLoop(ctx)

	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer close(c.runningChannel)

	c.logger.Info("Starting Kafka consumer loop")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Context canceled, stopping consumer")
			c.isRunning.Store(false)
			_ = c.consumer.Close()
			return

		case <-c.stopChannel:
			c.logger.Info("Received stop signal, stopping consumer")
			c.isRunning.Store(false)
			_ = c.consumer.Close()
			return

		default:
			msg, err := c.consumer.ReadMessage(100 * time.Millisecond)
			if err != nil {
				if kerr, ok := err.(kafka.Error); ok && kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				c.logger.Error("Error reading message from Kafka", zap.Error(err))
				continue
			}
			c.processMessage(msg)
		}
	}
}

// processMessage runs all registered handlers for the message's topic
func (c *Consumer) processMessage(msg *kafka.Message) {
	if msg == nil || msg.TopicPartition.Topic == nil {
		return
	}

	topic := *msg.TopicPartition.Topic
	handlers, ok := c.handlers[topic]
	if !ok || len(handlers) == 0 {
		c.logger.Warn("No handlers registered for topic", zap.String("topic", topic))
		return
	}

	for i, handler := range handlers {
		if err := handler(msg); err != nil {
			c.logger.Error("Handler failed to process message",
				zap.String("topic", topic),
				zap.Int("handler_index", i),
				zap.Error(err),
			)
			c.sendToDLQ(topic, msg, err)
		}
	}
}

// sendToDLQ forwards a failed message to the topic's dead letter queue
func (c *Consumer) sendToDLQ(topic string, msg *kafka.Message, handlerErr error) {
	if c.dlqProducer == nil {
		return
	}

	dlqTopic := fmt.Sprintf("%s.dlq", topic)
	dlqMessage := &Message{
		Key:       string(msg.Key),
		Value:     json.RawMessage(msg.Value),
		Timestamp: time.Now(),
		Headers: map[string]string{
			"error":          handlerErr.Error(),
			"original_topic": topic,
		},
	}

	if err := c.dlqProducer.Produce(dlqTopic, dlqMessage); err != nil {
		c.logger.Error("Failed to send message to DLQ",
			zap.String("dlq_topic", dlqTopic),
			zap.Error(err),
		)
	}
}

// Stop stops the consumer
func (c *Consumer) Stop() {
	if c.isRunning.Load() {
		close(c.stopChannel)
		<-c.runningChannel
	}
	c.logger.Info("Kafka consumer stopped")
}
