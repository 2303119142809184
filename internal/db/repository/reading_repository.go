package repository

import (
	"context"
	"time"

	"github.com/farmpulse/backend/internal/db/models"
	"gorm.io/gorm"
)

// ReadingRepository defines operations for the append-only reading log
type ReadingRepository interface {
	Repository
	// Append durably persists a reading. The reading counts as ingested
	// only once Append returns nil.
	Append(ctx context.Context, reading *models.Reading) error
	// Range returns readings for a sensor and metric within [from, to]
	// inclusive, ascending by time.
	Range(sensorID, metric string, from, to time.Time) ([]models.Reading, error)
	// Latest returns the most recent reading for a sensor and metric.
	Latest(sensorID, metric string) (*models.Reading, error)
}

// readingRepository implements ReadingRepository
type readingRepository struct {
	BaseRepository
}

// NewReadingRepository creates a new reading repository
func NewReadingRepository(db *gorm.DB) ReadingRepository {
	return &readingRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Append persists a single reading within the caller's context deadline
func (r *readingRepository) Append(ctx context.Context, reading *models.Reading) error {
	err := r.GetDB().WithContext(ctx).Create(reading).Error
	return r.handleError(err)
}

// Range retrieves readings in an inclusive time range, ascending by time
func (r *readingRepository) Range(sensorID, metric string, from, to time.Time) ([]models.Reading, error) {
	var readings []models.Reading

	err := r.GetDB().
		Where("sensor_id = ? AND metric = ? AND time >= ? AND time <= ?", sensorID, metric, from, to).
		Order("time asc").
		Find(&readings).Error
	if err != nil {
		return nil, r.handleError(err)
	}

	return readings, nil
}

// Latest retrieves the most recent reading for a sensor and metric
func (r *readingRepository) Latest(sensorID, metric string) (*models.Reading, error) {
	var reading models.Reading
	err := r.GetDB().
		Where("sensor_id = ? AND metric = ?", sensorID, metric).
		Order("time desc").
		Limit(1).
		First(&reading).Error
	if err != nil {
		return nil, r.handleError(err)
	}

	return &reading, nil
}
