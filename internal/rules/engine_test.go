package rules

import (
	"testing"
	"time"

	"github.com/farmpulse/backend/internal/db/models"
	"github.com/farmpulse/backend/internal/schema"
	"github.com/farmpulse/backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(rules ...models.Rule) *Engine {
	e := NewEngine(&utils.Logger{Logger: zap.NewNop()})
	e.Reload(rules)
	return e
}

func reading(sensorID string, metric schema.MetricKind, value float64, at time.Time) schema.SensorReading {
	return schema.SensorReading{
		SensorID: sensorID,
		Metric:   metric,
		Value:    value,
		Unit:     "C",
		Time:     at,
	}
}

func thresholdRule(id uint, name string) models.Rule {
	return models.Rule{
		ID:         id,
		Name:       name,
		Metric:     "air_temperature",
		SensorID:   models.WildcardSensor,
		Comparator: models.CompGT,
		Threshold:  35,
		Severity:   models.SeverityCritical,
		ClearAfter: 1,
		Enabled:    true,
	}
}

func TestFireAndAutoClearSequence(t *testing.T) {
	rule := thresholdRule(1, "overheat")
	rule.DebounceSeconds = 60
	rule.ClearAfter = 3
	e := newTestEngine(rule)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	values := []float64{36, 37, 34, 34, 34}
	var transitions []string

	for i, v := range values {
		alerts := e.Evaluate(reading("s1", schema.MetricAirTemperature, v, base.Add(time.Duration(i)*10*time.Second)))
		for _, a := range alerts {
			transitions = append(transitions, a.Transition)
		}
	}

	// 36 fires; 37 is suppressed while firing; the third passing reading clears.
	require.Equal(t, []string{models.TransitionFired, models.TransitionCleared}, transitions)

	statuses := e.StatusOf("s1")
	require.Len(t, statuses, 1)
	assert.Equal(t, StatusOK, statuses[0].Status)
}

func TestFireTransitionProducesAlertFields(t *testing.T) {
	e := newTestEngine(thresholdRule(1, "overheat"))
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	alerts := e.Evaluate(reading("s1", schema.MetricAirTemperature, 40, at))
	require.Len(t, alerts, 1)

	alert := alerts[0]
	assert.NotEmpty(t, alert.AlertID)
	assert.Equal(t, uint(1), alert.RuleID)
	assert.Equal(t, "s1", alert.SensorID)
	assert.Equal(t, "air_temperature", alert.Metric)
	assert.Equal(t, models.SeverityCritical, alert.Severity)
	assert.Equal(t, models.TransitionFired, alert.Transition)
	assert.Equal(t, 40.0, alert.Value)
	assert.Equal(t, at, alert.Time)
	assert.Contains(t, alert.Message, "overheat")
}

func TestDebounceSuppressesRapidRefire(t *testing.T) {
	rule := thresholdRule(1, "overheat")
	rule.DebounceSeconds = 60
	e := newTestEngine(rule)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Fire, clear immediately (clear_after 1), then breach again within
	// the debounce interval.
	require.Len(t, e.Evaluate(reading("s1", schema.MetricAirTemperature, 38, base)), 1)
	require.Len(t, e.Evaluate(reading("s1", schema.MetricAirTemperature, 30, base.Add(10*time.Second))), 1)

	assert.Empty(t, e.Evaluate(reading("s1", schema.MetricAirTemperature, 38, base.Add(20*time.Second))))

	// Past the debounce window the rule may fire again.
	alerts := e.Evaluate(reading("s1", schema.MetricAirTemperature, 38, base.Add(90*time.Second)))
	require.Len(t, alerts, 1)
	assert.Equal(t, models.TransitionFired, alerts[0].Transition)
}

func TestSensorsDoNotShareState(t *testing.T) {
	e := newTestEngine(thresholdRule(1, "overheat"))
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.Len(t, e.Evaluate(reading("s1", schema.MetricAirTemperature, 40, at)), 1)

	// A different sensor breaching the same rule fires independently.
	alerts := e.Evaluate(reading("s2", schema.MetricAirTemperature, 40, at))
	require.Len(t, alerts, 1)
	assert.Equal(t, "s2", alerts[0].SensorID)
}

func TestRateRuleIndeterminateWithSingleSample(t *testing.T) {
	rule := models.Rule{
		ID:         1,
		Name:       "temp-spiking",
		Metric:     "air_temperature",
		SensorID:   models.WildcardSensor,
		Comparator: models.CompRateGT,
		Threshold:  0.5,
		WindowSize: 3,
		Severity:   models.SeverityWarning,
		ClearAfter: 1,
		Enabled:    true,
	}
	e := newTestEngine(rule)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// One sample is never enough for a slope.
	assert.Empty(t, e.Evaluate(reading("s1", schema.MetricAirTemperature, 20, base)))

	// 10 degrees over 10 seconds is 1 degree per second.
	alerts := e.Evaluate(reading("s1", schema.MetricAirTemperature, 30, base.Add(10*time.Second)))
	require.Len(t, alerts, 1)
	assert.Equal(t, models.TransitionFired, alerts[0].Transition)
}

func TestRateWindowTrimsOldSamples(t *testing.T) {
	rule := models.Rule{
		ID:         1,
		Name:       "temp-spiking",
		Metric:     "air_temperature",
		SensorID:   models.WildcardSensor,
		Comparator: models.CompRateGT,
		Threshold:  0.5,
		WindowSize: 2,
		Severity:   models.SeverityWarning,
		ClearAfter: 1,
		Enabled:    true,
	}
	e := newTestEngine(rule)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Steady values keep the slope at zero.
	e.Evaluate(reading("s1", schema.MetricAirTemperature, 20, base))
	assert.Empty(t, e.Evaluate(reading("s1", schema.MetricAirTemperature, 20, base.Add(10*time.Second))))

	// With a window of 2, only the jump from the previous sample counts.
	alerts := e.Evaluate(reading("s1", schema.MetricAirTemperature, 35, base.Add(20*time.Second)))
	require.Len(t, alerts, 1)
}

func TestExactRuleOverridesWildcardOfSameName(t *testing.T) {
	wildcard := thresholdRule(1, "overheat")
	exact := thresholdRule(2, "overheat")
	exact.SensorID = "s1"
	exact.Threshold = 50
	e := newTestEngine(wildcard, exact)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// 40 breaches the wildcard threshold but not the exact one. The exact
	// rule wins for s1, so nothing fires.
	assert.Empty(t, e.Evaluate(reading("s1", schema.MetricAirTemperature, 40, at)))

	// Other sensors still see the wildcard rule.
	alerts := e.Evaluate(reading("s2", schema.MetricAirTemperature, 40, at))
	require.Len(t, alerts, 1)
	assert.Equal(t, uint(1), alerts[0].RuleID)
}

func TestDisabledRuleNeverMatches(t *testing.T) {
	rule := thresholdRule(1, "overheat")
	rule.Enabled = false
	e := newTestEngine(rule)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Empty(t, e.Evaluate(reading("s1", schema.MetricAirTemperature, 40, at)))
	assert.Empty(t, e.StatusOf("s1"))
}

func TestInvalidRuleIsSkippedNotFatal(t *testing.T) {
	broken := thresholdRule(1, "broken")
	broken.Comparator = "between"
	valid := thresholdRule(2, "overheat")
	e := newTestEngine(broken, valid)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	alerts := e.Evaluate(reading("s1", schema.MetricAirTemperature, 40, at))
	require.Len(t, alerts, 1)
	assert.Equal(t, uint(2), alerts[0].RuleID)
}

func TestReloadPrunesStateForRemovedRules(t *testing.T) {
	rule := thresholdRule(1, "overheat")
	e := newTestEngine(rule)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.Len(t, e.Evaluate(reading("s1", schema.MetricAirTemperature, 40, at)), 1)

	// Remove and re-add the rule; the firing state is gone, so the next
	// breach fires fresh.
	e.Reload(nil)
	e.Reload([]models.Rule{rule})

	alerts := e.Evaluate(reading("s1", schema.MetricAirTemperature, 40, at.Add(time.Minute)))
	require.Len(t, alerts, 1)
	assert.Equal(t, models.TransitionFired, alerts[0].Transition)
}

func TestReloadKeepsStateForSurvivingRules(t *testing.T) {
	rule := thresholdRule(1, "overheat")
	e := newTestEngine(rule)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.Len(t, e.Evaluate(reading("s1", schema.MetricAirTemperature, 40, at)), 1)

	e.Reload([]models.Rule{rule})

	// Still firing after the reload, so a repeat breach stays suppressed.
	assert.Empty(t, e.Evaluate(reading("s1", schema.MetricAirTemperature, 41, at.Add(time.Minute))))
	statuses := e.StatusOf("s1")
	require.Len(t, statuses, 1)
	assert.Equal(t, StatusFiring, statuses[0].Status)
}

func TestEvaluationOrderFollowsRulePosition(t *testing.T) {
	first := thresholdRule(1, "critical-heat")
	first.Position = 0
	second := thresholdRule(2, "warn-heat")
	second.Threshold = 30
	second.Severity = models.SeverityWarning
	second.Position = 1
	e := newTestEngine(first, second)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	alerts := e.Evaluate(reading("s1", schema.MetricAirTemperature, 40, at))
	require.Len(t, alerts, 2)
	assert.Equal(t, uint(1), alerts[0].RuleID)
	assert.Equal(t, uint(2), alerts[1].RuleID)
}

func TestValidateRule(t *testing.T) {
	valid := thresholdRule(1, "overheat")
	require.NoError(t, ValidateRule(&valid))

	cases := []struct {
		name   string
		mutate func(*models.Rule)
	}{
		{"empty name", func(r *models.Rule) { r.Name = "" }},
		{"unknown metric", func(r *models.Rule) { r.Metric = "soil_moisture" }},
		{"empty sensor", func(r *models.Rule) { r.SensorID = "" }},
		{"unknown comparator", func(r *models.Rule) { r.Comparator = "between" }},
		{"rate without window", func(r *models.Rule) { r.Comparator = models.CompRateGT; r.WindowSize = 1 }},
		{"unknown severity", func(r *models.Rule) { r.Severity = "panic" }},
		{"negative debounce", func(r *models.Rule) { r.DebounceSeconds = -1 }},
		{"zero clear_after", func(r *models.Rule) { r.ClearAfter = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := thresholdRule(1, "overheat")
			tc.mutate(&rule)
			err := ValidateRule(&rule)
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrConfig)
		})
	}
}
