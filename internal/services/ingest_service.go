package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/farmpulse/backend/internal/bus"
	"github.com/farmpulse/backend/internal/config"
	"github.com/farmpulse/backend/internal/db/models"
	"github.com/farmpulse/backend/internal/db/repository"
	"github.com/farmpulse/backend/internal/rules"
	"github.com/farmpulse/backend/internal/schema"
	"github.com/farmpulse/backend/internal/utils"
	"go.uber.org/zap"
)

// AlertProducer forwards fired alerts to an external broker. Optional.
type AlertProducer interface {
	ProduceAlert(alert *models.Alert) error
}

// IngestService runs the ingestion pipeline: validate, persist, evaluate
// rules, publish to the event bus. Persistence success is the sole success
// criterion of Ingest; evaluation and fan-out failures are logged and never
// propagate back to the sender.
type IngestService struct {
	logger    *utils.Logger
	validator *schema.Validator
	readings  repository.ReadingRepository
	alerts    repository.AlertRepository
	engine    *rules.Engine
	bus       *bus.Bus
	producer  AlertProducer

	appendTimeout time.Duration

	// locks serialize the whole per-sensor flow so writes and published
	// events keep per-sensor order; unrelated sensors use different stripes.
	locks []sync.Mutex
}

// NewIngestService creates the ingestion pipeline service
func NewIngestService(
	cfg *config.IngestConfig,
	repoFactory *repository.RepositoryFactory,
	engine *rules.Engine,
	eventBus *bus.Bus,
	producer AlertProducer,
	logger *utils.Logger,
) (*IngestService, error) {
	validator, err := schema.NewValidator(time.Duration(cfg.MaxClockSkewSeconds) * time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	return &IngestService{
		logger:        logger.Named("ingest_service"),
		validator:     validator,
		readings:      repoFactory.Readings(),
		alerts:        repoFactory.Alerts(),
		engine:        engine,
		bus:           eventBus,
		producer:      producer,
		appendTimeout: time.Duration(cfg.AppendTimeoutSeconds) * time.Second,
		locks:         make([]sync.Mutex, cfg.SensorShards),
	}, nil
}

// Validator exposes the message validator, shared with transports that
// pre-validate payloads.
func (s *IngestService) Validator() *schema.Validator {
	return s.validator
}

// Ingest accepts one raw sensor message. It is synchronous through the
// persistence acknowledgment; rule evaluation and live fan-out happen after
// the ack is determined and cannot fail it.
func (s *IngestService) Ingest(ctx context.Context, raw []byte) (schema.SensorReading, error) {
	reading, err := s.validator.ValidateJSON(raw)
	if err != nil {
		return schema.SensorReading{}, err
	}

	if err := s.IngestReading(ctx, reading); err != nil {
		return schema.SensorReading{}, err
	}
	return reading, nil
}

// IngestReading persists an already-validated reading and runs the
// evaluation and fan-out stages
func (s *IngestService) IngestReading(ctx context.Context, reading schema.SensorReading) error {
	lock := s.lockFor(reading.SensorID)
	lock.Lock()
	defer lock.Unlock()

	appendCtx, cancel := context.WithTimeout(ctx, s.appendTimeout)
	defer cancel()

	record := &models.Reading{
		Time:     reading.Time,
		SensorID: reading.SensorID,
		Metric:   string(reading.Metric),
		Value:    reading.Value,
		Unit:     reading.Unit,
		Meta:     reading.Meta,
	}

	if err := s.readings.Append(appendCtx, record); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: reading for sensor %q at %s", utils.ErrAlreadyExists,
				reading.SensorID, reading.Time.Format(time.RFC3339Nano))
		}
		// Timeouts included: a timed-out append is a store failure, never
		// silent success.
		return fmt.Errorf("%w: append failed: %v", utils.ErrStore, err)
	}

	// The reading is durable; everything past this point is best-effort.
	s.fanOut(reading)
	return nil
}

// fanOut evaluates rules and publishes the reading plus any alerts, in
// deterministic order
func (s *IngestService) fanOut(reading schema.SensorReading) {
	s.bus.Publish(bus.Event{
		Type:      bus.EventReading,
		SensorID:  reading.SensorID,
		Timestamp: reading.Time,
		Payload:   reading,
	})

	alerts := s.engine.Evaluate(reading)
	for i := range alerts {
		alert := alerts[i]

		if err := s.alerts.Insert(&alert); err != nil {
			s.logger.Error("Failed to persist alert",
				zap.String("alert_id", alert.AlertID),
				zap.String("sensor_id", alert.SensorID),
				zap.Error(err))
		}

		s.bus.Publish(bus.Event{
			Type:      bus.EventAlert,
			SensorID:  alert.SensorID,
			Timestamp: alert.Time,
			Payload:   alert,
		})

		if s.producer != nil {
			if err := s.producer.ProduceAlert(&alert); err != nil {
				s.logger.Error("Failed to produce alert to broker",
					zap.String("alert_id", alert.AlertID),
					zap.Error(err))
			}
		}
	}
}

// lockFor returns the serialization stripe for a sensor
func (s *IngestService) lockFor(sensorID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sensorID))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}
