package repository

import (
	"context"
	"database/sql"

	"pipewatch/backend/services/monitor-service/internal/models"
)

// AlarmRepository persists alarm events. The table is append-only from this
// service's point of view; acknowledgement updates belong to the dashboard
// backend.
type AlarmRepository struct {
	db *sql.DB
}

// NewAlarmRepository returns repository.
func NewAlarmRepository(db *sql.DB) *AlarmRepository {
	return &AlarmRepository{db: db}
}

// Insert stores one alarm event.
func (r *AlarmRepository) Insert(ctx context.Context, alarm *models.AlarmEvent) error {
	const query = `
		INSERT INTO alarms (station_ref, station_id, parameter, value, threshold_kind, severity, is_acknowledged, triggered_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW())
		RETURNING id, triggered_at
	`
	return r.db.QueryRowContext(ctx, query,
		alarm.StationRef,
		alarm.StationID,
		alarm.Parameter,
		alarm.Value,
		alarm.ThresholdKind,
		alarm.Severity,
	).Scan(&alarm.ID, &alarm.TriggeredAt)
}
