package repository

import (
	"context"
	"database/sql"
	"fmt"

	"pipewatch/backend/services/monitor-service/internal/models"
)

// Querier is the query surface shared by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// FrameStore persists one accepted frame. The station upsert, the dedup
// lookup, and the reading insert run in a single transaction, so a rejected
// frame never refreshes the station's last contact: only a frame that
// actually commits a reading counts as contact.
type FrameStore struct {
	db       *sql.DB
	stations *StationRepository
	readings *ReadingRepository
}

// NewFrameStore returns the transactional frame writer.
func NewFrameStore(db *sql.DB, stations *StationRepository, readings *ReadingRepository) *FrameStore {
	return &FrameStore{db: db, stations: stations, readings: readings}
}

// Persist resolves the station, checks for a duplicate, and inserts the
// reading atomically. On ErrDuplicateReading the whole transaction rolls
// back, including the station upsert. The reading's StationRef and StationID
// are filled in from the resolved row.
func (s *FrameStore) Persist(ctx context.Context, stationID string, reading *models.Reading) (*models.Station, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin frame tx: %w", err)
	}
	defer tx.Rollback()

	station, err := s.stations.WithTx(tx).Resolve(ctx, stationID)
	if err != nil {
		return nil, fmt.Errorf("resolve station %s: %w", stationID, err)
	}

	readings := s.readings.WithTx(tx)
	duplicate, err := readings.Exists(ctx, station.StationID, reading.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}
	if duplicate {
		return nil, ErrDuplicateReading
	}

	reading.StationRef = station.ID
	reading.StationID = station.StationID
	if err := readings.Insert(ctx, reading); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit frame tx: %w", err)
	}
	return station, nil
}
