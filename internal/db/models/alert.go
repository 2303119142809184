package models

import (
	"time"
)

// Alert transition kinds
const (
	TransitionFired   = "FIRED"
	TransitionCleared = "CLEARED"
)

// Alert is an immutable event recording a rule state transition for a sensor
type Alert struct {
	Time       time.Time `gorm:"type:timestamptz;primaryKey;not null" json:"time"`
	AlertID    string    `gorm:"type:varchar(64);primaryKey;not null" json:"alert_id"`
	RuleID     uint      `gorm:"not null;index" json:"rule_id"`
	SensorID   string    `gorm:"type:varchar(255);not null;index" json:"sensor_id"`
	Metric     string    `gorm:"type:varchar(50);not null" json:"metric"`
	Severity   string    `gorm:"type:varchar(20);not null" json:"severity"`
	Transition string    `gorm:"type:varchar(10);not null" json:"transition"`
	Message    string    `json:"message"`
	Value      float64   `json:"value"`
}

// TableName overrides the table name for Alert
func (Alert) TableName() string {
	return "alerts"
}
