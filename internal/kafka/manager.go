package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/farmpulse/backend/internal/config"
	"github.com/farmpulse/backend/internal/utils"
	"go.uber.org/zap"
)

// Topic constants for the application
const (
	// TopicReadings carries raw sensor readings from field gateways.
	TopicReadings = "sensor-readings"
	// TopicAlerts carries fired and cleared alerts for downstream consumers.
	TopicAlerts = "alerts"
)

// ReadingHandler processes one raw reading payload from the readings topic
type ReadingHandler func(ctx context.Context, payload []byte) error

// Manager coordinates the Kafka producer and consumer
type Manager struct {
	config   *config.KafkaConfig
	logger   *utils.Logger
	producer *Producer
	consumer *Consumer

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	isRunning bool
}

// NewManager creates a new Kafka manager
func NewManager(cfg *config.KafkaConfig, logger *utils.Logger) (*Manager, error) {
	kafkaLogger := logger.Named("kafka_manager")

	producer, err := NewProducer(cfg, kafkaLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	consumer, err := NewConsumer(cfg, kafkaLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:   cfg,
		logger:   kafkaLogger,
		producer: producer,
		consumer: consumer,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// RegisterReadingHandler subscribes a handler to the readings topic
func (m *Manager) RegisterReadingHandler(handler ReadingHandler) {
	m.consumer.RegisterHandler(TopicReadings, func(msg *kafka.Message) error {
		return handler(m.ctx, msg.Value)
	})
}

// Producer returns the shared producer
func (m *Manager) Producer() *Producer {
	return m.producer
}

// Start begins consuming from the registered topics
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("kafka manager is already running")
	}

	if err := m.consumer.Start(m.ctx); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	m.isRunning = true
	m.logger.Info("Kafka manager started")
	return nil
}

// IsRunning reports whether the manager has been started
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRunning
}

// Stop shuts down the consumer and flushes the producer
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isRunning {
		return nil
	}

	m.cancel()

	if err := m.consumer.Stop(); err != nil {
		m.logger.Error("Failed to stop consumer", zap.Error(err))
	}
	m.producer.Close()

	m.isRunning = false
	m.logger.Info("Kafka manager stopped")
	return nil
}
