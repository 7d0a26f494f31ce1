package ws

import (
	"time"

	"pipewatch/backend/services/monitor-service/internal/models"
)

// readingUpdate is pushed to every observer after a reading commits.
type readingUpdate struct {
	Type         string      `json:"type"`
	StationID    string      `json:"station_id"`
	StationRowID int64       `json:"station_row_id"`
	Data         readingData `json:"data"`
}

type readingData struct {
	Temperature          float64 `json:"temperature"`
	StaticPressure       float64 `json:"static_pressure"`
	DifferentialPressure float64 `json:"differential_pressure"`
	MaxStaticPressure    float64 `json:"max_static_pressure"`
	MinStaticPressure    float64 `json:"min_static_pressure"`
	Volume               float64 `json:"volume"`
	TotalVolumeFlow      float64 `json:"total_volume_flow"`
	Battery              float64 `json:"battery"`
	SpecificGravity      float64 `json:"specific_gravity"`
	Timestamp            string  `json:"timestamp"`
}

// alarmMessage is pushed to every observer for each alarm event.
type alarmMessage struct {
	Type         string    `json:"type"`
	StationID    string    `json:"station_id"`
	StationRowID int64     `json:"station_row_id"`
	Alarm        alarmData `json:"alarm"`
}

type alarmData struct {
	Parameter     string  `json:"parameter"`
	Value         float64 `json:"value"`
	ThresholdKind string  `json:"threshold_kind"`
	Severity      string  `json:"severity"`
	Timestamp     string  `json:"timestamp"`
}

func newReadingUpdate(stationID string, stationRowID int64, r *models.Reading) readingUpdate {
	return readingUpdate{
		Type:         "reading_update",
		StationID:    stationID,
		StationRowID: stationRowID,
		Data: readingData{
			Temperature:          r.Temperature,
			StaticPressure:       r.StaticPressure,
			DifferentialPressure: r.DifferentialPressure,
			MaxStaticPressure:    r.MaxStaticPressure,
			MinStaticPressure:    r.MinStaticPressure,
			Volume:               r.Volume,
			TotalVolumeFlow:      r.TotalVolumeFlow,
			Battery:              r.Battery,
			SpecificGravity:      r.SpecificGravity,
			Timestamp:            r.Timestamp.Format(time.RFC3339),
		},
	}
}

func newAlarmMessage(stationID string, stationRowID int64, a *models.AlarmEvent) alarmMessage {
	ts := a.TriggeredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return alarmMessage{
		Type:         "alarm",
		StationID:    stationID,
		StationRowID: stationRowID,
		Alarm: alarmData{
			Parameter:     a.Parameter,
			Value:         a.Value,
			ThresholdKind: string(a.ThresholdKind),
			Severity:      string(a.Severity),
			Timestamp:     ts.Format(time.RFC3339),
		},
	}
}

// pongMessage answers an observer's liveness ping.
var pongMessage = []byte(`{"type":"pong"}`)
