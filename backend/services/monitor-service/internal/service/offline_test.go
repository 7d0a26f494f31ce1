package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pipewatch/backend/services/monitor-service/internal/models"
)

type fakeSweeper struct {
	mu        sync.Mutex
	stale     []models.Station
	listErr   error
	markErr   map[int64]error
	inactive  []int64
	listCalls int
}

func (f *fakeSweeper) ListStaleActive(_ context.Context, _ time.Time) ([]models.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Station, len(f.stale))
	copy(out, f.stale)
	return out, nil
}

func (f *fakeSweeper) MarkInactive(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.markErr[id]; err != nil {
		return err
	}
	f.inactive = append(f.inactive, id)
	return nil
}

type fakeOfflineNotifier struct {
	mu       sync.Mutex
	notified []string
}

func (f *fakeOfflineNotifier) NotifyOffline(station *models.Station) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, station.StationID)
}

func TestSweepMarksStaleStationsOffline(t *testing.T) {
	sweeper := &fakeSweeper{
		stale: []models.Station{
			{ID: 1, StationID: "ST-1", LastSeen: time.Now().Add(-2 * time.Hour)},
			{ID: 2, StationID: "ST-2", LastSeen: time.Now().Add(-3 * time.Hour)},
		},
	}
	notifier := &fakeOfflineNotifier{}
	monitor := NewOfflineMonitor(sweeper, notifier, time.Hour, 90*time.Minute, zap.NewNop())

	monitor.sweep(context.Background())

	assert.ElementsMatch(t, []int64{1, 2}, sweeper.inactive)
	assert.ElementsMatch(t, []string{"ST-1", "ST-2"}, notifier.notified)
}

func TestSweepIsolatesPerStationFailures(t *testing.T) {
	sweeper := &fakeSweeper{
		stale: []models.Station{
			{ID: 1, StationID: "ST-1"},
			{ID: 2, StationID: "ST-2"},
			{ID: 3, StationID: "ST-3"},
		},
		markErr: map[int64]error{2: errors.New("row locked")},
	}
	notifier := &fakeOfflineNotifier{}
	monitor := NewOfflineMonitor(sweeper, notifier, time.Hour, 90*time.Minute, zap.NewNop())

	monitor.sweep(context.Background())

	assert.ElementsMatch(t, []int64{1, 3}, sweeper.inactive)
	// ST-2 failed to transition, so it must not be announced as offline.
	assert.ElementsMatch(t, []string{"ST-1", "ST-3"}, notifier.notified)
}

func TestSweepListFailureSkipsPass(t *testing.T) {
	sweeper := &fakeSweeper{listErr: errors.New("db down")}
	notifier := &fakeOfflineNotifier{}
	monitor := NewOfflineMonitor(sweeper, notifier, time.Hour, 90*time.Minute, zap.NewNop())

	monitor.sweep(context.Background())

	assert.Empty(t, sweeper.inactive)
	assert.Empty(t, notifier.notified)
}

func TestNewOfflineMonitorDefaults(t *testing.T) {
	monitor := NewOfflineMonitor(&fakeSweeper{}, &fakeOfflineNotifier{}, 0, 0, zap.NewNop())

	require.NotNil(t, monitor)
	assert.Equal(t, 90*time.Minute, monitor.interval)
	assert.Equal(t, 90*time.Minute, monitor.staleness)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	sweeper := &fakeSweeper{}
	monitor := NewOfflineMonitor(sweeper, &fakeOfflineNotifier{}, 10*time.Millisecond, 90*time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(done)
	}()

	// Let at least one tick fire, then stop.
	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}

	sweeper.mu.Lock()
	calls := sweeper.listCalls
	sweeper.mu.Unlock()
	assert.GreaterOrEqual(t, calls, 1)
}
