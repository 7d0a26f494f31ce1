package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"pipewatch/backend/services/monitor-service/internal/frame"
	"pipewatch/backend/services/monitor-service/internal/metrics"
	"pipewatch/backend/services/monitor-service/internal/models"
	"pipewatch/backend/services/monitor-service/internal/repository"
)

// FrameStore commits one accepted frame: station resolution, dedup, and the
// reading insert succeed or fail together. A rejected frame must not count
// as station contact, so ErrDuplicateReading implies nothing was written.
type FrameStore interface {
	Persist(ctx context.Context, stationID string, reading *models.Reading) (*models.Station, error)
}

// AlarmStore persists alarm events.
type AlarmStore interface {
	Insert(ctx context.Context, alarm *models.AlarmEvent) error
}

// Broadcaster fans events out to live observers.
type Broadcaster interface {
	BroadcastReading(stationID string, stationRowID int64, reading *models.Reading)
	BroadcastAlarm(stationID string, stationRowID int64, alarm *models.AlarmEvent)
}

// AlarmNotifier delivers out-of-band notifications for top-severity alarms.
type AlarmNotifier interface {
	NotifyAlarm(station *models.Station, alarm *models.AlarmEvent)
}

// LatestCache keeps the most recent reading per station for the dashboard.
type LatestCache interface {
	StoreLatest(ctx context.Context, reading *models.Reading) error
}

const cacheWriteTimeout = 3 * time.Second

// IngestService runs the frame pipeline: decode, resolve station, dedup,
// persist, evaluate thresholds, broadcast. One call handles exactly one
// frame; failures never leak to the transport layer.
type IngestService struct {
	decoder     *frame.Decoder
	store       FrameStore
	alarms      AlarmStore
	engine      *AlarmEngine
	broadcaster Broadcaster
	notifier    AlarmNotifier
	cache       LatestCache
	logger      *zap.Logger
}

// NewIngestService wires the pipeline. cache may be nil when redis is not
// configured.
func NewIngestService(
	decoder *frame.Decoder,
	store FrameStore,
	alarms AlarmStore,
	engine *AlarmEngine,
	broadcaster Broadcaster,
	notifier AlarmNotifier,
	cache LatestCache,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		decoder:     decoder,
		store:       store,
		alarms:      alarms,
		engine:      engine,
		broadcaster: broadcaster,
		notifier:    notifier,
		cache:       cache,
		logger:      logger,
	}
}

// HandleFrame processes one raw frame end to end.
func (s *IngestService) HandleFrame(ctx context.Context, topic string, payload []byte, arrival time.Time) {
	metrics.FramesReceived.Inc()

	decoded, err := s.decoder.Decode(topic, payload, arrival)
	if err != nil {
		switch {
		case errors.Is(err, frame.ErrMissingStation):
			metrics.FramesDiscarded.WithLabelValues("missing_station").Inc()
			s.logger.Warn("frame without station identifier, skipping", zap.String("topic", topic))
		default:
			metrics.FramesDiscarded.WithLabelValues("malformed").Inc()
			s.logger.Warn("malformed frame, skipping", zap.String("topic", topic), zap.Error(err))
		}
		return
	}

	reading := buildReading(decoded)
	station, err := s.store.Persist(ctx, decoded.StationID, reading)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateReading) {
			// Covers both the dedup lookup and a lost redelivery race on the
			// unique constraint; either way nothing was committed.
			metrics.FramesDiscarded.WithLabelValues("duplicate").Inc()
			s.logger.Info("duplicate reading, skipping",
				zap.String("station_id", decoded.StationID),
				zap.Time("timestamp", decoded.Timestamp))
			return
		}
		metrics.FramesDiscarded.WithLabelValues("persistence").Inc()
		s.logger.Error("failed to persist frame",
			zap.String("station_id", decoded.StationID),
			zap.Error(err))
		return
	}
	metrics.ReadingsPersisted.Inc()

	events := s.engine.Evaluate(reading, decoded.Seen)
	for i := range events {
		if err := s.alarms.Insert(ctx, &events[i]); err != nil {
			// The reading is already committed; a failed alarm write must
			// not take the frame down with it.
			s.logger.Error("failed to persist alarm",
				zap.String("station_id", station.StationID),
				zap.String("parameter", events[i].Parameter),
				zap.Error(err))
		}
		metrics.AlarmsRaised.WithLabelValues(events[i].Parameter, string(events[i].Severity)).Inc()
	}

	s.logger.Info("reading stored",
		zap.String("station_id", station.StationID),
		zap.Time("timestamp", reading.Timestamp),
		zap.Float64("temperature", reading.Temperature),
		zap.Float64("static_pressure", reading.StaticPressure),
		zap.Int("alarms", len(events)))

	s.broadcaster.BroadcastReading(station.StationID, station.ID, reading)
	for i := range events {
		s.broadcaster.BroadcastAlarm(station.StationID, station.ID, &events[i])
		if events[i].Severity == models.SeverityHigh {
			s.notifier.NotifyAlarm(station, &events[i])
		}
	}

	if s.cache != nil {
		go func(r models.Reading) {
			cacheCtx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
			defer cancel()
			if err := s.cache.StoreLatest(cacheCtx, &r); err != nil {
				s.logger.Warn("failed to cache latest reading",
					zap.String("station_id", r.StationID),
					zap.Error(err))
			}
		}(*reading)
	}
}

// buildReading maps decoded quantities onto a row. StationRef and StationID
// are filled in by the store once the station row is resolved.
func buildReading(decoded *frame.Decoded) *models.Reading {
	return &models.Reading{
		Timestamp: decoded.Timestamp,

		Temperature:          decoded.Values.Temperature,
		StaticPressure:       decoded.Values.StaticPressure,
		DifferentialPressure: decoded.Values.DifferentialPressure,
		MaxStaticPressure:    decoded.Values.MaxStaticPressure,
		MinStaticPressure:    decoded.Values.MinStaticPressure,
		Volume:               decoded.Values.Volume,
		TotalVolumeFlow:      decoded.Values.TotalVolumeFlow,
		Battery:              decoded.Values.Battery,

		LastHourFlowTime:       decoded.Values.LastHourFlowTime,
		LastHourDiffPressure:   decoded.Values.LastHourDiffPressure,
		LastHourStaticPressure: decoded.Values.LastHourStaticPressure,
		LastHourTemperature:    decoded.Values.LastHourTemperature,
		LastHourVolume:         decoded.Values.LastHourVolume,
		LastHourEnergy:         decoded.Values.LastHourEnergy,
		SpecificGravity:        decoded.Values.SpecificGravity,
	}
}
