package rules

import (
	"fmt"

	"github.com/farmpulse/backend/internal/db/models"
	"github.com/farmpulse/backend/internal/schema"
	"github.com/farmpulse/backend/internal/utils"
)

// validComparators lists the comparators a rule condition may use
var validComparators = map[string]bool{
	models.CompGT:     true,
	models.CompGTE:    true,
	models.CompLT:     true,
	models.CompLTE:    true,
	models.CompRateGT: true,
	models.CompRateLT: true,
}

// validSeverities lists the severities a rule may carry
var validSeverities = map[string]bool{
	models.SeverityInfo:     true,
	models.SeverityWarning:  true,
	models.SeverityCritical: true,
}

// ValidateRule checks a rule definition. A failing rule is rejected at
// write time and skipped at evaluation time; it never mutates RuleState.
func ValidateRule(rule *models.Rule) error {
	if rule.Name == "" {
		return configError("name must not be empty")
	}
	if !schema.KnownMetric(schema.MetricKind(rule.Metric)) {
		return configError(fmt.Sprintf("unknown metric kind %q", rule.Metric))
	}
	if rule.SensorID == "" {
		return configError("sensor_id must be a sensor id or the wildcard *")
	}
	if !validComparators[rule.Comparator] {
		return configError(fmt.Sprintf("unknown comparator %q", rule.Comparator))
	}
	if rule.IsRate() && rule.WindowSize < 2 {
		return configError("rate rules require a window_size of at least 2")
	}
	if !validSeverities[rule.Severity] {
		return configError(fmt.Sprintf("unknown severity %q", rule.Severity))
	}
	if rule.DebounceSeconds < 0 {
		return configError("debounce_seconds must not be negative")
	}
	if rule.ClearAfter < 1 {
		return configError("clear_after must be at least 1")
	}
	return nil
}

func configError(reason string) error {
	return fmt.Errorf("%w: %s", utils.ErrConfig, reason)
}
