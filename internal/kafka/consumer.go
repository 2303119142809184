package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/farmpulse/backend/internal/config"
	"github.com/farmpulse/backend/internal/utils"
	"go.uber.org/zap"
)

// MessageHandler is a function that processes a Kafka message
type MessageHandler func(msg *kafka.Message) error

// Consumer provides functionality to consume messages from Kafka topics
type Consumer struct {
	consumer  *kafka.Consumer
	logger    *utils.Logger
	config    *config.KafkaConfig
	handlers  map[string][]MessageHandler
	stopped   chan struct{}
	isRunning bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, logger *utils.Logger) (*Consumer, error) {
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
		consumer: consumer,
		logger:   logger.Named("kafka_consumer"),
		config:   cfg,
		handlers: make(map[string][]MessageHandler),
		stopped:  make(chan struct{}),
	}, nil
}

// RegisterHandler registers a message handler for a specific topic
func (c *Consumer) RegisterHandler(topic string, handler MessageHandler) {
	c.handlers[topic] = append(c.handlers[topic], handler)
	c.logger.Info("Registered handler for topic", zap.String("topic", topic))
}

// Start subscribes to the registered topics and consumes until the context
// is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	if c.isRunning {
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
	c.isRunning = true

	go c.consumeLoop(ctx)
	return nil
}

// consumeLoop polls for messages and dispatches them to handlers
func (c *Consumer) consumeLoop(ctx context.Context) {
	defer close(c.stopped)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stopping consumer loop")
			return
		default:
		}

		msg, err := c.consumer.ReadMessage(500 * time.Millisecond)
		if err != nil {
			if kafkaErr, ok := err.(kafka.Error); ok && kafkaErr.Code() == kafka.ErrTimedOut {
				continue
			}
			c.logger.Error("Failed to read message", zap.Error(err))
			continue
		}

		topic := ""
		if msg.TopicPartition.Topic != nil {
			topic = *msg.TopicPartition.Topic
		}

		for _, handler := range c.handlers[topic] {
			if err := handler(msg); err != nil {
				c.logger.Error("Handler failed for message",
					zap.String("topic", topic),
					zap.Int64("offset", int64(msg.TopicPartition.Offset)),
					zap.Error(err))
			}
		}
	}
}

// Stop waits for the consume loop to drain and closes the consumer
func (c *Consumer) Stop() error {
	if !c.isRunning {
		return nil
	}
	<-c.stopped
	c.isRunning = false
	return c.consumer.Close()
}

// applySecurity configures SASL when security is enabled
func applySecurity(kafkaConfig *kafka.ConfigMap, cfg *config.KafkaConfig) error {
	if !cfg.SecurityEnable {
		return nil
	}

	settings := map[string]string{
		"security.protocol": "SASL_SSL",
		"sasl.mechanisms":   "PLAIN",
		"sasl.username":     cfg.SecurityUser,
		"sasl.password":     cfg.SecurityPass,
	}
	for key, value := range settings {
		if err := kafkaConfig.SetKey(key, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}
