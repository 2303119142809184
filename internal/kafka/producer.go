package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/farmpulse/backend/internal/config"
	"github.com/farmpulse/backend/internal/db/models"
	"github.com/farmpulse/backend/internal/utils"
	"go.uber.org/zap"
)

// Producer provides functionality to produce messages to Kafka topics
type Producer struct {
	producer *kafka.Producer
	logger   *utils.Logger
	config   *config.KafkaConfig
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg *config.KafkaConfig, logger *utils.Logger) (*Producer, error) {
	kafkaLogger := logger.Named("kafka_producer")

	kafkaConfig := &kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"client.id":         "farmpulse-producer",
		"acks":              "all",
	}

	if err := applySecurity(kafkaConfig, cfg); err != nil {
		return nil, err
	}

	producer, err := kafka.NewProducer(kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	// Delivery report loop
	go func() {
		for e := range producer.Events() {
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					kafkaLogger.Error("Failed to deliver message",
						zap.String("topic", *ev.TopicPartition.Topic),
						zap.Error(ev.TopicPartition.Error),
					)
				} else {
					kafkaLogger.Debug("Message delivered",
						zap.String("topic", *ev.TopicPartition.Topic),
						zap.Int32("partition", ev.TopicPartition.Partition),
						zap.Int64("offset", int64(ev.TopicPartition.Offset)),
					)
				}
			}
		}
	}()

	return &Producer{
		producer: producer,
		logger:   kafkaLogger,
		config:   cfg,
	}, nil
}

// Message represents a message to be sent to Kafka
type Message struct {
	Key       string
	Value     interface{}
	Timestamp time.Time
}

// Produce sends a message to a Kafka topic. Keying by sensor id keeps
// per-sensor ordering within a partition.
func (p *Producer) Produce(topic string, message *Message) error {
	valueBytes, err := json.Marshal(message.Value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value: %w", err)
	}

	kafkaMessage := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:       []byte(message.Key),
		Value:     valueBytes,
		Timestamp: message.Timestamp,
	}

	if err := p.producer.Produce(kafkaMessage, nil); err != nil {
		return fmt.Errorf("failed to produce message to %s: %w", topic, err)
	}

	return nil
}

// ProduceAlert publishes an alert to the alerts topic for downstream consumers
func (p *Producer) ProduceAlert(alert *models.Alert) error {
	return p.Produce(TopicAlerts, &Message{
		Key:       alert.SensorID,
		Value:     alert,
		Timestamp: alert.Time,
	})
}

// Close flushes pending messages and shuts the producer down
func (p *Producer) Close() {
	remaining := p.producer.Flush(5000)
	if remaining > 0 {
		p.logger.Warn("Messages still pending after flush", zap.Int("remaining", remaining))
	}
	p.producer.Close()
}
