package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/farmpulse/backend/internal/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a per-test in-memory database with the schema migrated
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.Reading{}, &models.Rule{}, &models.Alert{}))
	return db
}

func testReading(sensorID string, at time.Time, value float64) *models.Reading {
	return &models.Reading{
		Time:     at,
		SensorID: sensorID,
		Metric:   "air_temperature",
		Value:    value,
		Unit:     "C",
	}
}

func TestAppendAndRangeInclusiveAscending(t *testing.T) {
	repo := NewReadingRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Append(ctx, testReading("s1", base.Add(time.Duration(i)*time.Minute), 20+float64(i))))
	}

	// Both endpoints are part of the result.
	readings, err := repo.Range("s1", "air_temperature", base.Add(time.Minute), base.Add(3*time.Minute))
	require.NoError(t, err)
	require.Len(t, readings, 3)
	assert.Equal(t, 21.0, readings[0].Value)
	assert.Equal(t, 23.0, readings[2].Value)
	assert.True(t, readings[0].Time.Before(readings[1].Time))
	assert.True(t, readings[1].Time.Before(readings[2].Time))
}

func TestRangeFiltersBySensorAndMetric(t *testing.T) {
	repo := NewReadingRepository(newTestDB(t))
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, testReading("s1", at, 20)))
	require.NoError(t, repo.Append(ctx, testReading("s2", at, 30)))
	require.NoError(t, repo.Append(ctx, &models.Reading{
		Time: at, SensorID: "s1", Metric: "air_humidity", Value: 55, Unit: "%",
	}))

	readings, err := repo.Range("s1", "air_temperature", at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 20.0, readings[0].Value)
}

func TestAppendDuplicateKeyIsConflict(t *testing.T) {
	repo := NewReadingRepository(newTestDB(t))
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, testReading("s1", at, 20)))

	err := repo.Append(ctx, testReading("s1", at, 25))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)

	// The first write is untouched.
	latest, err := repo.Latest("s1", "air_temperature")
	require.NoError(t, err)
	assert.Equal(t, 20.0, latest.Value)
}

func TestLatestReturnsMostRecent(t *testing.T) {
	repo := NewReadingRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, testReading("s1", base, 20)))
	require.NoError(t, repo.Append(ctx, testReading("s1", base.Add(time.Minute), 21)))

	latest, err := repo.Latest("s1", "air_temperature")
	require.NoError(t, err)
	assert.Equal(t, 21.0, latest.Value)
}

func TestLatestForUnknownSensorIsNotFound(t *testing.T) {
	repo := NewReadingRepository(newTestDB(t))

	_, err := repo.Latest("missing", "air_temperature")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}
