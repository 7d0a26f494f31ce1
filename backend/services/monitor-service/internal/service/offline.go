package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pipewatch/backend/services/monitor-service/internal/metrics"
	"pipewatch/backend/services/monitor-service/internal/models"
)

// StationSweeper is the registry surface the offline sweep needs.
type StationSweeper interface {
	ListStaleActive(ctx context.Context, cutoff time.Time) ([]models.Station, error)
	MarkInactive(ctx context.Context, id int64) error
}

// OfflineNotifier delivers offline-station notifications.
type OfflineNotifier interface {
	NotifyOffline(station *models.Station)
}

// OfflineMonitor periodically demotes silent stations to offline. It is the
// only path from active to inactive; frame arrival through the registry
// upsert is the only path back.
type OfflineMonitor struct {
	stations  StationSweeper
	notifier  OfflineNotifier
	interval  time.Duration
	staleness time.Duration
	logger    *zap.Logger
}

// NewOfflineMonitor builds the sweep.
func NewOfflineMonitor(stations StationSweeper, notifier OfflineNotifier, interval, staleness time.Duration, logger *zap.Logger) *OfflineMonitor {
	if interval <= 0 {
		interval = 90 * time.Minute
	}
	if staleness <= 0 {
		staleness = 90 * time.Minute
	}
	return &OfflineMonitor{
		stations:  stations,
		notifier:  notifier,
		interval:  interval,
		staleness: staleness,
		logger:    logger,
	}
}

// Run loops on the sweep interval until ctx is cancelled.
func (m *OfflineMonitor) Run(ctx context.Context) {
	m.logger.Info("offline monitor started",
		zap.Duration("interval", m.interval),
		zap.Duration("staleness", m.staleness))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("offline monitor stopped")
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// sweep demotes every active station whose last contact predates the
// staleness cutoff. Failures are isolated per station so one bad row never
// blocks the rest of the pass.
func (m *OfflineMonitor) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-m.staleness)

	stale, err := m.stations.ListStaleActive(ctx, cutoff)
	if err != nil {
		m.logger.Error("failed to list stale stations", zap.Error(err))
		return
	}

	for i := range stale {
		station := stale[i]
		if err := m.stations.MarkInactive(ctx, station.ID); err != nil {
			m.logger.Error("failed to mark station offline",
				zap.String("station_id", station.StationID),
				zap.Error(err))
			continue
		}

		metrics.OfflineTransitions.Inc()
		m.logger.Warn("station marked offline",
			zap.String("station_id", station.StationID),
			zap.Time("last_seen", station.LastSeen))

		m.notifier.NotifyOffline(&station)
	}
}
