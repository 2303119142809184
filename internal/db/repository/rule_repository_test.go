package repository

import (
	"testing"

	"github.com/farmpulse/backend/internal/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRule(name string, position int) *models.Rule {
	return &models.Rule{
		Name:       name,
		Metric:     "air_temperature",
		SensorID:   models.WildcardSensor,
		Comparator: models.CompGT,
		Threshold:  35,
		Severity:   models.SeverityWarning,
		ClearAfter: 1,
		Enabled:    true,
		Position:   position,
	}
}

func TestRuleCreateAndGet(t *testing.T) {
	repo := NewRuleRepository(newTestDB(t))

	rule := testRule("overheat", 0)
	require.NoError(t, repo.Create(rule))
	require.NotZero(t, rule.ID)

	got, err := repo.GetByID(rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "overheat", got.Name)
	assert.Equal(t, 35.0, got.Threshold)
}

func TestRuleNameMustBeUnique(t *testing.T) {
	repo := NewRuleRepository(newTestDB(t))

	require.NoError(t, repo.Create(testRule("overheat", 0)))

	err := repo.Create(testRule("overheat", 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRuleListOrderedByPosition(t *testing.T) {
	repo := NewRuleRepository(newTestDB(t))

	require.NoError(t, repo.Create(testRule("second", 5)))
	require.NoError(t, repo.Create(testRule("first", 1)))

	rules, err := repo.List()
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "first", rules[0].Name)
	assert.Equal(t, "second", rules[1].Name)
}

func TestRuleUpdate(t *testing.T) {
	repo := NewRuleRepository(newTestDB(t))

	rule := testRule("overheat", 0)
	require.NoError(t, repo.Create(rule))

	rule.Threshold = 40
	require.NoError(t, repo.Update(rule))

	got, err := repo.GetByID(rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, got.Threshold)
}

func TestRuleUpdateMissingIsNotFound(t *testing.T) {
	repo := NewRuleRepository(newTestDB(t))

	rule := testRule("ghost", 0)
	rule.ID = 999
	err := repo.Update(rule)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRuleDelete(t *testing.T) {
	repo := NewRuleRepository(newTestDB(t))

	rule := testRule("overheat", 0)
	require.NoError(t, repo.Create(rule))
	require.NoError(t, repo.Delete(rule.ID))

	_, err := repo.GetByID(rule.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.Delete(rule.ID), ErrNotFound)
}
