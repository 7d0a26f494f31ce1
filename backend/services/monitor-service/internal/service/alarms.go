package service

import (
	"sync/atomic"

	"pipewatch/backend/services/monitor-service/internal/frame"
	"pipewatch/backend/services/monitor-service/internal/models"
)

// zoneRule is one parameter's operating range. Values below lowBound or
// above highBound raise an alarm; the interior zones never do. Low is
// checked before high, so one reading can violate at most one knife-edge
// per parameter.
type zoneRule struct {
	parameter    string
	code         string
	value        func(r *models.Reading) float64
	lowBound     float64
	lowSeverity  models.Severity
	highBound    float64
	highSeverity models.Severity
}

// thresholdRules are fixed network-wide. Boundaries are exclusive: a value
// exactly on a bound stays in the interior zone.
var thresholdRules = []zoneRule{
	{
		parameter:    "temperature",
		code:         "T12",
		value:        func(r *models.Reading) float64 { return r.Temperature },
		lowBound:     0,
		lowSeverity:  models.SeverityHigh,
		highBound:    120,
		highSeverity: models.SeverityMedium,
	},
	{
		parameter:    "static_pressure",
		code:         "T11",
		value:        func(r *models.Reading) float64 { return r.StaticPressure },
		lowBound:     10,
		lowSeverity:  models.SeverityMedium,
		highBound:    140,
		highSeverity: models.SeverityHigh,
	},
	{
		parameter:    "differential_pressure",
		code:         "T10",
		value:        func(r *models.Reading) float64 { return r.DifferentialPressure },
		lowBound:     0,
		lowSeverity:  models.SeverityMedium,
		highBound:    400,
		highSeverity: models.SeverityHigh,
	},
	{
		parameter:    "battery",
		code:         "T15",
		value:        func(r *models.Reading) float64 { return r.Battery },
		lowBound:     10,
		lowSeverity:  models.SeverityHigh,
		highBound:    14,
		highSeverity: models.SeverityMedium,
	},
	{
		parameter:    "specific_gravity",
		code:         "T114",
		value:        func(r *models.Reading) float64 { return r.SpecificGravity },
		lowBound:     0.58,
		lowSeverity:  models.SeverityHigh,
		highBound:    0.69,
		highSeverity: models.SeverityHigh,
	},
}

// AlarmEngine evaluates readings against the fixed zone thresholds.
// Monitoring can be switched off at runtime without restarting ingestion.
type AlarmEngine struct {
	enabled atomic.Bool
}

// NewAlarmEngine returns an engine with monitoring initially set from config.
func NewAlarmEngine(enabled bool) *AlarmEngine {
	e := &AlarmEngine{}
	e.enabled.Store(enabled)
	return e
}

// SetEnabled toggles alarm monitoring.
func (e *AlarmEngine) SetEnabled(enabled bool) {
	e.enabled.Store(enabled)
}

// Enabled reports whether monitoring is on.
func (e *AlarmEngine) Enabled() bool {
	return e.enabled.Load()
}

// Evaluate returns one unacknowledged AlarmEvent per violated rule for the
// reading, or nil when monitoring is disabled or every evaluated parameter
// sits in a non-alarming zone. Only parameters whose sensor code was present
// on the frame are evaluated; the zero default of an absent sensor must not
// alarm. Repeated violations on later readings are reported again;
// suppression across readings is deliberately not done here.
func (e *AlarmEngine) Evaluate(reading *models.Reading, seen frame.CodeSet) []models.AlarmEvent {
	if !e.enabled.Load() {
		return nil
	}

	var events []models.AlarmEvent
	for _, rule := range thresholdRules {
		if !seen.Has(rule.code) {
			continue
		}
		value := rule.value(reading)
		switch {
		case value < rule.lowBound:
			events = append(events, models.AlarmEvent{
				StationRef:    reading.StationRef,
				StationID:     reading.StationID,
				Parameter:     rule.parameter,
				Value:         value,
				ThresholdKind: models.ThresholdLow,
				Severity:      rule.lowSeverity,
			})
		case value > rule.highBound:
			events = append(events, models.AlarmEvent{
				StationRef:    reading.StationRef,
				StationID:     reading.StationID,
				Parameter:     rule.parameter,
				Value:         value,
				ThresholdKind: models.ThresholdHigh,
				Severity:      rule.highSeverity,
			})
		}
	}
	return events
}
