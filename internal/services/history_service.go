package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/farmpulse/backend/internal/db"
	"github.com/farmpulse/backend/internal/db/models"
	"github.com/farmpulse/backend/internal/db/repository"
	"github.com/farmpulse/backend/internal/rules"
	"github.com/farmpulse/backend/internal/schema"
	"github.com/farmpulse/backend/internal/utils"
	"go.uber.org/zap"
)

// HistoryService answers range queries over stored readings and alerts and
// reports current rule statuses
type HistoryService struct {
	db       *db.Database
	logger   *utils.Logger
	readings repository.ReadingRepository
	alerts   repository.AlertRepository
	engine   *rules.Engine
}

// NewHistoryService creates a new history service
func NewHistoryService(database *db.Database, engine *rules.Engine, logger *utils.Logger) *HistoryService {
	repoFactory := repository.NewRepositoryFactory(database.DB)
	return &HistoryService{
		db:       database,
		logger:   logger.Named("history_service"),
		readings: repoFactory.Readings(),
		alerts:   repoFactory.Alerts(),
		engine:   engine,
	}
}

// Readings returns stored readings for a sensor and metric in [from, to]
// inclusive, ascending by time
func (s *HistoryService) Readings(sensorID string, metric string, from, to time.Time) ([]models.Reading, error) {
	if !schema.KnownMetric(schema.MetricKind(metric)) {
		return nil, fmt.Errorf("%w: unknown metric kind %q", utils.ErrBadRequest, metric)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end precedes range start", utils.ErrBadRequest)
	}

	readings, err := s.readings.Range(sensorID, metric, from, to)
	if err != nil {
		s.logger.Error("Failed to query readings",
			zap.String("sensor_id", sensorID),
			zap.String("metric", metric),
			zap.Error(err))
		return nil, fmt.Errorf("%w: range query failed", utils.ErrStore)
	}

	return readings, nil
}

// LatestReading returns the most recent reading for a sensor and metric
func (s *HistoryService) LatestReading(sensorID, metric string) (*models.Reading, error) {
	if !schema.KnownMetric(schema.MetricKind(metric)) {
		return nil, fmt.Errorf("%w: unknown metric kind %q", utils.ErrBadRequest, metric)
	}

	reading, err := s.readings.Latest(sensorID, metric)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: no readings for sensor %q", utils.ErrNotFound, sensorID)
		}
		return nil, fmt.Errorf("%w: latest query failed", utils.ErrStore)
	}

	return reading, nil
}

// Alerts returns stored alerts in a time range, newest first, with paging
func (s *HistoryService) Alerts(sensorID string, from, to time.Time, severity string, offset, limit int) ([]models.Alert, int64, error) {
	alerts, total, err := s.alerts.List(sensorID, from, to, severity, offset, limit)
	if err != nil {
		s.logger.Error("Failed to query alerts",
			zap.String("sensor_id", sensorID),
			zap.Error(err))
		return nil, 0, fmt.Errorf("%w: alert query failed", utils.ErrStore)
	}

	return alerts, total, nil
}

// RuleStatuses returns the current status of every rule matching a sensor
func (s *HistoryService) RuleStatuses(sensorID string) []rules.RuleStatus {
	return s.engine.StatusOf(sensorID)
}
