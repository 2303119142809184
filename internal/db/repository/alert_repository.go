package repository

import (
	"time"

	"github.com/farmpulse/backend/internal/db/models"
	"gorm.io/gorm"
)

// AlertRepository defines operations for the alert log
type AlertRepository interface {
	Repository
	Insert(alert *models.Alert) error
	// List returns alerts newest first, optionally filtered by sensor and
	// severity, with offset/limit paging.
	List(sensorID string, from, to time.Time, severity string, offset, limit int) ([]models.Alert, int64, error)
}

// alertRepository implements AlertRepository
type alertRepository struct {
	BaseRepository
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Insert persists a single alert
func (r *alertRepository) Insert(alert *models.Alert) error {
	err := r.GetDB().Create(alert).Error
	return r.handleError(err)
}

// List retrieves alerts in a time range, newest first
func (r *alertRepository) List(sensorID string, from, to time.Time, severity string, offset, limit int) ([]models.Alert, int64, error) {
	var alerts []models.Alert

	query := r.GetDB().Model(&models.Alert{}).
		Where("time >= ? AND time <= ?", from, to)

	if sensorID != "" {
		query = query.Where("sensor_id = ?", sensorID)
	}
	if severity != "" {
		query = query.Where("severity = ?", severity)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, r.handleError(err)
	}

	err := query.Order("time desc").Offset(offset).Limit(limit).Find(&alerts).Error
	if err != nil {
		return nil, 0, r.handleError(err)
	}

	return alerts, total, nil
}
