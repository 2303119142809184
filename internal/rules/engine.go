package rules

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/farmpulse/backend/internal/db/models"
	"github.com/farmpulse/backend/internal/schema"
	"github.com/farmpulse/backend/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status of a (sensor, rule) pair
type Status string

const (
	StatusOK     Status = "OK"
	StatusFiring Status = "FIRING"
)

// stateShards partitions RuleState so unrelated sensors never contend on
// the same lock.
const stateShards = 32

// RuleStatus is a read-only view of a rule's status for one sensor
type RuleStatus struct {
	Rule     models.Rule `json:"rule"`
	SensorID string      `json:"sensor_id"`
	Status   Status      `json:"status"`
	LastFire time.Time   `json:"last_fire,omitempty"`
}

// stateKey identifies one RuleState partition entry
type stateKey struct {
	sensorID string
	ruleID   uint
}

// sample is one windowed value for rate-of-change conditions
type sample struct {
	at    time.Time
	value float64
}

// ruleState holds the engine-owned evaluation state for one (sensor, rule)
// pair. Access is serialized by the owning shard's mutex; callers only ever
// see emitted alerts or snapshot copies.
type ruleState struct {
	status     Status
	lastFire   time.Time
	passStreak int
	window     []sample
}

type stateShard struct {
	mu     sync.Mutex
	states map[stateKey]*ruleState
}

// Engine evaluates configured rules against incoming readings. Rules are
// swapped atomically by Reload; derived state persists across reloads and
// across sensor reconnects.
type Engine struct {
	logger *utils.Logger

	ruleMu sync.RWMutex
	rules  []models.Rule

	shards [stateShards]*stateShard
}

// NewEngine creates a rule engine with an empty rule set
func NewEngine(logger *utils.Logger) *Engine {
	e := &Engine{
		logger: logger.Named("rule_engine"),
	}
	for i := range e.shards {
		e.shards[i] = &stateShard{states: make(map[stateKey]*ruleState)}
	}
	return e
}

// Reload replaces the active rule set. New rules take effect on the next
// evaluated reading. State for rules that no longer exist is pruned.
func (e *Engine) Reload(rules []models.Rule) {
	active := make(map[uint]bool, len(rules))
	for _, r := range rules {
		active[r.ID] = true
	}

	e.ruleMu.Lock()
	e.rules = rules
	e.ruleMu.Unlock()

	for _, shard := range e.shards {
		shard.mu.Lock()
		for key := range shard.states {
			if !active[key.ruleID] {
				delete(shard.states, key)
			}
		}
		shard.mu.Unlock()
	}

	e.logger.Info("Rule set reloaded", zap.Int("rules", len(rules)))
}

// Evaluate runs every matching rule against the reading and returns the
// alerts emitted by state transitions, in rule configuration order.
func (e *Engine) Evaluate(reading schema.SensorReading) []models.Alert {
	matched := e.match(reading.SensorID, string(reading.Metric))
	if len(matched) == 0 {
		return nil
	}

	var alerts []models.Alert
	for _, rule := range matched {
		if err := ValidateRule(&rule); err != nil {
			// Bad configuration never aborts evaluation of other rules.
			e.logger.Warn("Skipping unresolvable rule",
				zap.Uint("rule_id", rule.ID),
				zap.String("rule", rule.Name),
				zap.Error(err))
			continue
		}

		if alert, ok := e.evaluateRule(rule, reading); ok {
			alerts = append(alerts, alert)
		}
	}

	return alerts
}

// match returns enabled rules targeting the sensor and metric, in stable
// configuration order. An exact-sensor rule overrides a wildcard rule of
// the same name.
func (e *Engine) match(sensorID, metric string) []models.Rule {
	e.ruleMu.RLock()
	defer e.ruleMu.RUnlock()

	exactNames := make(map[string]bool)
	for _, r := range e.rules {
		if r.Enabled && r.Metric == metric && r.SensorID == sensorID {
			exactNames[r.Name] = true
		}
	}

	var matched []models.Rule
	for _, r := range e.rules {
		if !r.Enabled || !r.Matches(sensorID, metric) {
			continue
		}
		if r.SensorID == models.WildcardSensor && exactNames[r.Name] {
			continue
		}
		matched = append(matched, r)
	}
	return matched
}

// evaluateRule updates the (sensor, rule) state and reports an alert if the
// status transitioned.
func (e *Engine) evaluateRule(rule models.Rule, reading schema.SensorReading) (models.Alert, bool) {
	shard := e.shardFor(reading.SensorID, rule.ID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	key := stateKey{sensorID: reading.SensorID, ruleID: rule.ID}
	state, ok := shard.states[key]
	if !ok {
		state = &ruleState{status: StatusOK}
		shard.states[key] = state
	}

	holds, determinate := e.condition(rule, state, reading)
	if !determinate {
		// Too few samples for a rate verdict; neither a fire nor a pass.
		return models.Alert{}, false
	}

	if holds {
		state.passStreak = 0
		if state.status == StatusOK {
			debounce := time.Duration(rule.DebounceSeconds) * time.Second
			if !state.lastFire.IsZero() && reading.Time.Sub(state.lastFire) < debounce {
				return models.Alert{}, false
			}
			state.status = StatusFiring
			state.lastFire = reading.Time
			return e.newAlert(rule, reading, models.TransitionFired), true
		}
		// Already firing: repeat fires are suppressed.
		return models.Alert{}, false
	}

	state.passStreak++
	if state.status == StatusFiring && state.passStreak >= rule.ClearAfter {
		state.status = StatusOK
		state.passStreak = 0
		return e.newAlert(rule, reading, models.TransitionCleared), true
	}
	return models.Alert{}, false
}

// condition recomputes whether the rule condition holds for the reading.
// The second return is false when a rate window has fewer than 2 samples.
func (e *Engine) condition(rule models.Rule, state *ruleState, reading schema.SensorReading) (holds, determinate bool) {
	if rule.IsRate() {
		state.window = append(state.window, sample{at: reading.Time, value: reading.Value})
		if len(state.window) > rule.WindowSize {
			state.window = state.window[len(state.window)-rule.WindowSize:]
		}
		if len(state.window) < 2 {
			return false, false
		}

		oldest := state.window[0]
		newest := state.window[len(state.window)-1]
		elapsed := newest.at.Sub(oldest.at).Seconds()
		if elapsed <= 0 {
			return false, false
		}
		slope := (newest.value - oldest.value) / elapsed

		switch rule.Comparator {
		case models.CompRateGT:
			return slope > rule.Threshold, true
		case models.CompRateLT:
			return slope < rule.Threshold, true
		}
		return false, false
	}

	switch rule.Comparator {
	case models.CompGT:
		return reading.Value > rule.Threshold, true
	case models.CompGTE:
		return reading.Value >= rule.Threshold, true
	case models.CompLT:
		return reading.Value < rule.Threshold, true
	case models.CompLTE:
		return reading.Value <= rule.Threshold, true
	}
	return false, false
}

// newAlert builds an immutable alert for a state transition
func (e *Engine) newAlert(rule models.Rule, reading schema.SensorReading, transition string) models.Alert {
	var message string
	if transition == models.TransitionFired {
		message = fmt.Sprintf("%s: %s is %.2f%s (%s %g)",
			rule.Name, reading.Metric, reading.Value, unitSuffix(reading.Unit),
			comparatorSymbol(rule.Comparator), rule.Threshold)
	} else {
		message = fmt.Sprintf("%s: %s back in range at %.2f%s after %d passing readings",
			rule.Name, reading.Metric, reading.Value, unitSuffix(reading.Unit), rule.ClearAfter)
	}

	return models.Alert{
		Time:       reading.Time,
		AlertID:    uuid.NewString(),
		RuleID:     rule.ID,
		SensorID:   reading.SensorID,
		Metric:     string(reading.Metric),
		Severity:   rule.Severity,
		Transition: transition,
		Message:    message,
		Value:      reading.Value,
	}
}

// StatusOf returns the current status of every rule matching the sensor
func (e *Engine) StatusOf(sensorID string) []RuleStatus {
	e.ruleMu.RLock()
	rules := make([]models.Rule, len(e.rules))
	copy(rules, e.rules)
	e.ruleMu.RUnlock()

	var statuses []RuleStatus
	for _, rule := range rules {
		if !rule.Enabled || (rule.SensorID != models.WildcardSensor && rule.SensorID != sensorID) {
			continue
		}

		status := RuleStatus{Rule: rule, SensorID: sensorID, Status: StatusOK}

		shard := e.shardFor(sensorID, rule.ID)
		shard.mu.Lock()
		if state, ok := shard.states[stateKey{sensorID: sensorID, ruleID: rule.ID}]; ok {
			status.Status = state.status
			status.LastFire = state.lastFire
		}
		shard.mu.Unlock()

		statuses = append(statuses, status)
	}
	return statuses
}

func (e *Engine) shardFor(sensorID string, ruleID uint) *stateShard {
	h := fnv.New32a()
	h.Write([]byte(sensorID))
	fmt.Fprintf(h, "/%d", ruleID)
	return e.shards[h.Sum32()%stateShards]
}

func comparatorSymbol(comparator string) string {
	switch comparator {
	case models.CompGT:
		return ">"
	case models.CompGTE:
		return ">="
	case models.CompLT:
		return "<"
	case models.CompLTE:
		return "<="
	case models.CompRateGT:
		return "rate >"
	case models.CompRateLT:
		return "rate <"
	}
	return "?"
}

func unitSuffix(unit string) string {
	if unit == "" {
		return ""
	}
	return " " + unit
}
