package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/farmpulse/backend/internal/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAlert(id, sensorID, severity string, at time.Time) *models.Alert {
	return &models.Alert{
		Time:       at,
		AlertID:    id,
		RuleID:     1,
		SensorID:   sensorID,
		Metric:     "air_temperature",
		Severity:   severity,
		Transition: models.TransitionFired,
		Message:    "overheat",
		Value:      38,
	}
}

func TestAlertListNewestFirst(t *testing.T) {
	repo := NewAlertRepository(newTestDB(t))
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		alert := testAlert(fmt.Sprintf("a-%d", i), "s1", models.SeverityWarning, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Insert(alert))
	}

	alerts, total, err := repo.List("", base.Add(-time.Hour), base.Add(time.Hour), "", 0, 50)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, alerts, 3)
	assert.Equal(t, "a-2", alerts[0].AlertID)
	assert.Equal(t, "a-0", alerts[2].AlertID)
}

func TestAlertListFilters(t *testing.T) {
	repo := NewAlertRepository(newTestDB(t))
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(testAlert("a-1", "s1", models.SeverityWarning, at)))
	require.NoError(t, repo.Insert(testAlert("a-2", "s2", models.SeverityCritical, at.Add(time.Minute))))

	alerts, total, err := repo.List("s2", at.Add(-time.Hour), at.Add(time.Hour), "", 0, 50)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, alerts, 1)
	assert.Equal(t, "a-2", alerts[0].AlertID)

	alerts, total, err = repo.List("", at.Add(-time.Hour), at.Add(time.Hour), models.SeverityCritical, 0, 50)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
}

func TestAlertListPaging(t *testing.T) {
	repo := NewAlertRepository(newTestDB(t))
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Insert(testAlert(fmt.Sprintf("a-%d", i), "s1", models.SeverityWarning, base.Add(time.Duration(i)*time.Minute))))
	}

	alerts, total, err := repo.List("", base.Add(-time.Hour), base.Add(time.Hour), "", 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, alerts, 2)
	assert.Equal(t, "a-2", alerts[0].AlertID)
	assert.Equal(t, "a-1", alerts[1].AlertID)
}
