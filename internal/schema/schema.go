package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/farmpulse/backend/internal/utils"
	"github.com/xeipuuv/gojsonschema"
)

// MetricKind identifies the physical quantity a reading measures
type MetricKind string

const (
	MetricAirTemperature   MetricKind = "air_temperature"
	MetricAirHumidity      MetricKind = "air_humidity"
	MetricAirPressure      MetricKind = "air_pressure"
	MetricWaterTemperature MetricKind = "water_temperature"
	MetricWaterPH          MetricKind = "water_ph"
	MetricWaterEC          MetricKind = "water_conductivity"
	MetricWaterLevel       MetricKind = "water_level"
	MetricLightIntensity   MetricKind = "light_intensity"
)

// MetricRange bounds the physically plausible values for a metric kind
type MetricRange struct {
	Min  float64
	Max  float64
	Unit string
}

// metricRanges defines the sane physical range per metric kind. Values
// outside these bounds are rejected, never clamped.
var metricRanges = map[MetricKind]MetricRange{
	MetricAirTemperature:   {Min: -40, Max: 80, Unit: "C"},
	MetricAirHumidity:      {Min: 0, Max: 100, Unit: "%"},
	MetricAirPressure:      {Min: 850, Max: 1100, Unit: "hPa"},
	MetricWaterTemperature: {Min: -5, Max: 60, Unit: "C"},
	MetricWaterPH:          {Min: 0, Max: 14, Unit: "pH"},
	MetricWaterEC:          {Min: 0, Max: 10, Unit: "mS/cm"},
	MetricWaterLevel:       {Min: 0, Max: 1, Unit: ""},
	MetricLightIntensity:   {Min: 0, Max: 200000, Unit: "lux"},
}

// KnownMetric reports whether the metric kind is one of the supported enum values
func KnownMetric(kind MetricKind) bool {
	_, ok := metricRanges[kind]
	return ok
}

// RangeOf returns the physical range for a metric kind
func RangeOf(kind MetricKind) (MetricRange, bool) {
	r, ok := metricRanges[kind]
	return r, ok
}

// MetricKinds returns all supported metric kinds
func MetricKinds() []MetricKind {
	kinds := make([]MetricKind, 0, len(metricRanges))
	for k := range metricRanges {
		kinds = append(kinds, k)
	}
	return kinds
}

// RawReading is the wire shape of an inbound sensor message
type RawReading struct {
	SensorID  string            `json:"sensor_id"`
	Metric    string            `json:"metric"`
	Value     *float64          `json:"value"`
	Unit      string            `json:"unit,omitempty"`
	Timestamp string            `json:"ts,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// SensorReading is an immutable, validated sensor measurement
type SensorReading struct {
	SensorID string            `json:"sensor_id"`
	Metric   MetricKind        `json:"metric"`
	Value    float64           `json:"value"`
	Unit     string            `json:"unit"`
	Time     time.Time         `json:"time"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// rawReadingSchema is the structural contract for inbound messages.
const rawReadingSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "SensorReading",
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"sensor_id": {"type": "string", "minLength": 1},
		"metric": {"type": "string", "minLength": 1},
		"value": {"type": "number"},
		"unit": {"type": "string"},
		"ts": {"type": "string"},
		"meta": {"type": "object", "additionalProperties": {"type": "string"}}
	},
	"required": ["sensor_id", "metric", "value"]
}`

// Validator validates raw sensor messages into SensorReading values.
// Validation is a pure function of the input and the injected clock.
type Validator struct {
	maxSkew  time.Duration
	document *gojsonschema.Schema
	now      func() time.Time
}

// NewValidator creates a validator with the given future clock skew bound
func NewValidator(maxSkew time.Duration) (*Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(rawReadingSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile reading schema: %w", err)
	}

	return &Validator{
		maxSkew:  maxSkew,
		document: compiled,
		now:      time.Now,
	}, nil
}

// WithClock overrides the validator's clock, used by tests and replay
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// ValidateJSON checks the structural shape of a raw JSON message and then
// validates its content
func (v *Validator) ValidateJSON(raw []byte) (SensorReading, error) {
	result, err := v.document.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return SensorReading{}, fmt.Errorf("%w: malformed JSON: %v", utils.ErrValidation, err)
	}
	if !result.Valid() {
		errs := result.Errors()
		first := errs[0]
		return SensorReading{}, fmt.Errorf("%w: field %q: %s", utils.ErrValidation, first.Field(), first.Description())
	}

	var msg RawReading
	if err := json.Unmarshal(raw, &msg); err != nil {
		return SensorReading{}, fmt.Errorf("%w: malformed JSON: %v", utils.ErrValidation, err)
	}

	return v.Validate(msg)
}

// Validate checks field-level constraints and produces an immutable
// SensorReading. The same input always yields the same reading or the same
// rejection reason.
func (v *Validator) Validate(msg RawReading) (SensorReading, error) {
	if msg.SensorID == "" {
		return SensorReading{}, fieldError("sensor_id", "must not be empty")
	}

	kind := MetricKind(msg.Metric)
	bounds, ok := metricRanges[kind]
	if !ok {
		return SensorReading{}, fieldError("metric", fmt.Sprintf("unknown metric kind %q", msg.Metric))
	}

	if msg.Value == nil {
		return SensorReading{}, fieldError("value", "is required")
	}
	value := *msg.Value
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return SensorReading{}, fieldError("value", "must be a finite number")
	}
	if value < bounds.Min || value > bounds.Max {
		return SensorReading{}, fieldError("value",
			fmt.Sprintf("%g out of range [%g, %g] for %s", value, bounds.Min, bounds.Max, kind))
	}

	unit := msg.Unit
	if unit == "" {
		unit = bounds.Unit
	} else if unit != bounds.Unit {
		return SensorReading{}, fieldError("unit",
			fmt.Sprintf("%q does not match expected unit %q for %s", unit, bounds.Unit, kind))
	}

	ts, err := v.resolveTimestamp(msg.Timestamp)
	if err != nil {
		return SensorReading{}, err
	}

	return SensorReading{
		SensorID: msg.SensorID,
		Metric:   kind,
		Value:    value,
		Unit:     unit,
		Time:     ts,
		Meta:     msg.Meta,
	}, nil
}

// resolveTimestamp parses a sender-supplied timestamp. A timestamp further
// than maxSkew into the future is replaced by server time rather than
// rejected, since device clocks are untrusted.
func (v *Validator) resolveTimestamp(raw string) (time.Time, error) {
	now := v.now().UTC()
	if raw == "" {
		return now, nil
	}

	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fieldError("ts", fmt.Sprintf("invalid RFC3339 timestamp %q", raw))
	}

	ts = ts.UTC()
	if ts.After(now.Add(v.maxSkew)) {
		return now, nil
	}
	return ts, nil
}

func fieldError(field, reason string) error {
	return fmt.Errorf("%w: field %q: %s", utils.ErrValidation, field, reason)
}
