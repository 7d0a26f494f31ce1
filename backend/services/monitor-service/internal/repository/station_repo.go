package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pipewatch/backend/services/monitor-service/internal/models"
)

// StationRepository manages measurement station persistence.
type StationRepository struct {
	db Querier
}

// NewStationRepository returns repository.
func NewStationRepository(db *sql.DB) *StationRepository {
	return &StationRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *StationRepository) WithTx(tx *sql.Tx) *StationRepository {
	return &StationRepository{db: tx}
}

// stationUpsertQuery must keep reactivating on conflict: a frame from an
// inactive station flips it back to active in the same statement that
// refreshes last_seen.
const stationUpsertQuery = `
	INSERT INTO stations (station_id, name, location, latitude, longitude, is_active, last_seen, created_at, updated_at)
	VALUES ($1, $2, 'Unknown', 0, 0, TRUE, NOW(), NOW(), NOW())
	ON CONFLICT (station_id) DO UPDATE SET
		last_seen = NOW(),
		is_active = TRUE,
		updated_at = NOW()
	RETURNING id, station_id, name, location, latitude, longitude, is_active, last_seen, created_at, updated_at
`

// Resolve returns the station for the given identifier, creating it on first
// contact. The single upsert statement keeps create-vs-update atomic per
// identifier, so back-to-back frames from a brand-new station cannot race
// into duplicate rows. Every call refreshes last_seen and flips the station
// back to active.
func (r *StationRepository) Resolve(ctx context.Context, stationID string) (*models.Station, error) {
	station := &models.Station{}
	err := r.db.QueryRowContext(ctx, stationUpsertQuery, stationID, fmt.Sprintf("Station %s", stationID)).Scan(
		&station.ID,
		&station.StationID,
		&station.Name,
		&station.Location,
		&station.Latitude,
		&station.Longitude,
		&station.IsActive,
		&station.LastSeen,
		&station.CreatedAt,
		&station.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return station, nil
}

// ListStaleActive returns active stations whose last contact is older than cutoff.
func (r *StationRepository) ListStaleActive(ctx context.Context, cutoff time.Time) ([]models.Station, error) {
	const query = `
		SELECT id, station_id, name, location, latitude, longitude, is_active, last_seen, created_at, updated_at
		FROM stations
		WHERE is_active = TRUE AND last_seen < $1
		ORDER BY last_seen
	`
	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		var station models.Station
		if err := rows.Scan(
			&station.ID,
			&station.StationID,
			&station.Name,
			&station.Location,
			&station.Latitude,
			&station.Longitude,
			&station.IsActive,
			&station.LastSeen,
			&station.CreatedAt,
			&station.UpdatedAt,
		); err != nil {
			return nil, err
		}
		stations = append(stations, station)
	}
	return stations, rows.Err()
}

// MarkInactive demotes a station to offline.
func (r *StationRepository) MarkInactive(ctx context.Context, id int64) error {
	const query = `
		UPDATE stations
		SET is_active = FALSE,
		    updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
