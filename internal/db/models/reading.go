package models

import (
	"time"
)

// Reading represents one persisted sensor measurement. Rows are append-only
// and never updated; (sensor_id, metric, time) is unique.
type Reading struct {
	Time     time.Time         `gorm:"type:timestamptz;primaryKey;not null" json:"time"`
	SensorID string            `gorm:"type:varchar(255);primaryKey;not null" json:"sensor_id"`
	Metric   string            `gorm:"type:varchar(50);primaryKey;not null" json:"metric"`
	Value    float64           `gorm:"not null" json:"value"`
	Unit     string            `gorm:"type:varchar(20)" json:"unit"`
	Meta     map[string]string `gorm:"serializer:json" json:"meta,omitempty"`
}

// TableName overrides the table name for Reading
func (Reading) TableName() string {
	return "readings"
}
