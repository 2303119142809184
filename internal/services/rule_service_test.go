package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/farmpulse/backend/internal/db"
	"github.com/farmpulse/backend/internal/db/models"
	"github.com/farmpulse/backend/internal/rules"
	"github.com/farmpulse/backend/internal/schema"
	"github.com/farmpulse/backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newRuleServiceFixture(t *testing.T) (*RuleService, *rules.Engine) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&models.Rule{}))

	log := &utils.Logger{Logger: zap.NewNop()}
	engine := rules.NewEngine(log)
	svc := NewRuleService(&db.Database{DB: gdb}, engine, log)
	return svc, engine
}

func serviceRule(name string) *models.Rule {
	return &models.Rule{
		Name:       name,
		Metric:     "air_temperature",
		SensorID:   models.WildcardSensor,
		Comparator: models.CompGT,
		Threshold:  35,
		Severity:   models.SeverityWarning,
		ClearAfter: 1,
		Enabled:    true,
	}
}

func TestCreateRuleTakesEffectOnNextReading(t *testing.T) {
	svc, engine := newRuleServiceFixture(t)

	created, err := svc.Create(serviceRule("overheat"))
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	// The engine sees the rule without an explicit reload.
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	alerts := engine.Evaluate(schema.SensorReading{
		SensorID: "s1",
		Metric:   schema.MetricAirTemperature,
		Value:    40,
		Time:     at,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, created.ID, alerts[0].RuleID)
}

func TestCreateInvalidRuleIsRejectedBeforePersistence(t *testing.T) {
	svc, _ := newRuleServiceFixture(t)

	broken := serviceRule("broken")
	broken.Comparator = "between"
	_, err := svc.Create(broken)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfig)

	list, err := svc.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateDuplicateNameConflicts(t *testing.T) {
	svc, _ := newRuleServiceFixture(t)

	_, err := svc.Create(serviceRule("overheat"))
	require.NoError(t, err)

	_, err = svc.Create(serviceRule("overheat"))
	assert.ErrorIs(t, err, utils.ErrAlreadyExists)
}

func TestDeleteRuleStopsEvaluation(t *testing.T) {
	svc, engine := newRuleServiceFixture(t)

	created, err := svc.Create(serviceRule("overheat"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(created.ID))

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	alerts := engine.Evaluate(schema.SensorReading{
		SensorID: "s1",
		Metric:   schema.MetricAirTemperature,
		Value:    40,
		Time:     at,
	})
	assert.Empty(t, alerts)

	assert.ErrorIs(t, svc.Delete(created.ID), utils.ErrNotFound)
}

func TestGetMissingRuleIsNotFound(t *testing.T) {
	svc, _ := newRuleServiceFixture(t)

	_, err := svc.Get(42)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}
