package models

import (
	"time"
)

// Comparator values supported by rule conditions
const (
	CompGT     = "gt"
	CompGTE    = "gte"
	CompLT     = "lt"
	CompLTE    = "lte"
	CompRateGT = "rate_gt"
	CompRateLT = "rate_lt"
)

// Severity levels for rules and alerts
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// WildcardSensor matches any sensor in a rule target
const WildcardSensor = "*"

// Rule is a configured alert condition over incoming readings.
// Rules are read-only to the engine at evaluation time; all derived state
// lives inside the engine, keyed by (sensor, rule).
type Rule struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name     string `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	Metric   string `gorm:"type:varchar(50);not null" json:"metric"`
	SensorID string `gorm:"type:varchar(255);not null;default:'*'" json:"sensor_id"`

	// Comparator and Threshold define the condition. Rate comparators
	// evaluate the slope per second over the rolling window.
	Comparator string  `gorm:"type:varchar(20);not null" json:"comparator"`
	Threshold  float64 `gorm:"not null" json:"threshold"`
	// WindowSize is the rolling window capacity for rate conditions.
	WindowSize int `gorm:"default:0" json:"window_size,omitempty"`

	Severity string `gorm:"type:varchar(20);not null;default:'warning'" json:"severity"`

	// DebounceSeconds is the minimum interval between repeated fires for
	// the same sensor and rule.
	DebounceSeconds int `gorm:"not null;default:0" json:"debounce_seconds"`
	// ClearAfter is the number of consecutive passing readings before a
	// firing rule auto-clears.
	ClearAfter int `gorm:"not null;default:1" json:"clear_after"`

	Enabled bool `gorm:"not null;default:true" json:"enabled"`
	// Position fixes evaluation order so emitted alerts are deterministic.
	Position int `gorm:"not null;default:0" json:"position"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name for Rule
func (Rule) TableName() string {
	return "rules"
}

// IsRate reports whether the rule condition is rate-of-change based
func (r *Rule) IsRate() bool {
	return r.Comparator == CompRateGT || r.Comparator == CompRateLT
}

// Matches reports whether the rule targets the given sensor and metric
func (r *Rule) Matches(sensorID, metric string) bool {
	if r.Metric != metric {
		return false
	}
	return r.SensorID == WildcardSensor || r.SensorID == sensorID
}
