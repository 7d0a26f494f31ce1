package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"pipewatch/backend/services/monitor-service/internal/models"
)

// ErrDuplicateReading reports that a reading with the same (station,
// timestamp) key already exists. Callers treat it as a skip, not a failure.
var ErrDuplicateReading = errors.New("repository: duplicate reading")

const uniqueViolation = "23505"

// ReadingRepository persists station readings.
type ReadingRepository struct {
	db Querier
}

// NewReadingRepository returns repository.
func NewReadingRepository(db *sql.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *ReadingRepository) WithTx(tx *sql.Tx) *ReadingRepository {
	return &ReadingRepository{db: tx}
}

// Exists reports whether a reading is already stored for the station at the
// given event timestamp.
func (r *ReadingRepository) Exists(ctx context.Context, stationID string, ts time.Time) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM readings WHERE station_id = $1 AND timestamp = $2
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, stationID, ts).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Insert stores one reading row. The readings table carries a unique
// (station_id, timestamp) constraint; a violation surfaces as
// ErrDuplicateReading so concurrent redelivery loses cleanly.
func (r *ReadingRepository) Insert(ctx context.Context, reading *models.Reading) error {
	const query = `
		INSERT INTO readings (
			station_ref, station_id, timestamp,
			temperature, static_pressure, differential_pressure,
			max_static_pressure, min_static_pressure,
			volume, total_volume_flow, battery,
			last_hour_flow_time, last_hour_diff_pressure, last_hour_static_pressure,
			last_hour_temperature, last_hour_volume, last_hour_energy,
			specific_gravity, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW())
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		reading.StationRef,
		reading.StationID,
		reading.Timestamp,
		reading.Temperature,
		reading.StaticPressure,
		reading.DifferentialPressure,
		reading.MaxStaticPressure,
		reading.MinStaticPressure,
		reading.Volume,
		reading.TotalVolumeFlow,
		reading.Battery,
		reading.LastHourFlowTime,
		reading.LastHourDiffPressure,
		reading.LastHourStaticPressure,
		reading.LastHourTemperature,
		reading.LastHourVolume,
		reading.LastHourEnergy,
		reading.SpecificGravity,
	).Scan(&reading.ID, &reading.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateReading
	}
	return err
}
