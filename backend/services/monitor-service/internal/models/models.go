package models

import "time"

// Station represents a field-deployed measurement station.
type Station struct {
	ID        int64     `db:"id" json:"id"`
	StationID string    `db:"station_id" json:"station_id"`
	Name      string    `db:"name" json:"name"`
	Location  string    `db:"location" json:"location"`
	Latitude  float64   `db:"latitude" json:"latitude"`
	Longitude float64   `db:"longitude" json:"longitude"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	LastSeen  time.Time `db:"last_seen" json:"last_seen"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Reading is one persisted, timestamped snapshot of a station's quantities.
// At most one reading exists per (station, timestamp) pair; the readings
// table enforces this with a unique constraint.
type Reading struct {
	ID         int64     `db:"id" json:"id"`
	StationRef int64     `db:"station_ref" json:"station_ref"`
	StationID  string    `db:"station_id" json:"station_id"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp"`

	Temperature          float64 `db:"temperature" json:"temperature"`
	StaticPressure       float64 `db:"static_pressure" json:"static_pressure"`
	DifferentialPressure float64 `db:"differential_pressure" json:"differential_pressure"`
	MaxStaticPressure    float64 `db:"max_static_pressure" json:"max_static_pressure"`
	MinStaticPressure    float64 `db:"min_static_pressure" json:"min_static_pressure"`
	Volume               float64 `db:"volume" json:"volume"`
	TotalVolumeFlow      float64 `db:"total_volume_flow" json:"total_volume_flow"`
	Battery              float64 `db:"battery" json:"battery"`

	LastHourFlowTime       float64 `db:"last_hour_flow_time" json:"last_hour_flow_time"`
	LastHourDiffPressure   float64 `db:"last_hour_diff_pressure" json:"last_hour_diff_pressure"`
	LastHourStaticPressure float64 `db:"last_hour_static_pressure" json:"last_hour_static_pressure"`
	LastHourTemperature    float64 `db:"last_hour_temperature" json:"last_hour_temperature"`
	LastHourVolume         float64 `db:"last_hour_volume" json:"last_hour_volume"`
	LastHourEnergy         float64 `db:"last_hour_energy" json:"last_hour_energy"`
	SpecificGravity        float64 `db:"specific_gravity" json:"specific_gravity"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ThresholdKind tells which knife-edge a value crossed.
type ThresholdKind string

const (
	ThresholdLow  ThresholdKind = "low"
	ThresholdHigh ThresholdKind = "high"
)

// Severity of an alarm, derived from the violated zone.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AlarmEvent records one threshold violation on one reading. Events are
// append-only and always unacknowledged at creation; acknowledgement belongs
// to the dashboard backend.
type AlarmEvent struct {
	ID             int64         `db:"id" json:"id"`
	StationRef     int64         `db:"station_ref" json:"station_ref"`
	StationID      string        `db:"station_id" json:"station_id"`
	Parameter      string        `db:"parameter" json:"parameter"`
	Value          float64       `db:"value" json:"value"`
	ThresholdKind  ThresholdKind `db:"threshold_kind" json:"threshold_kind"`
	Severity       Severity      `db:"severity" json:"severity"`
	IsAcknowledged bool          `db:"is_acknowledged" json:"is_acknowledged"`
	TriggeredAt    time.Time     `db:"triggered_at" json:"triggered_at"`
}
