package app

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pipewatch/backend/libs/db"
	libredis "pipewatch/backend/libs/redis"
	"pipewatch/backend/services/monitor-service/internal/config"
	"pipewatch/backend/services/monitor-service/internal/frame"
	httpserver "pipewatch/backend/services/monitor-service/internal/http"
	"pipewatch/backend/services/monitor-service/internal/mqtt"
	"pipewatch/backend/services/monitor-service/internal/notify"
	"pipewatch/backend/services/monitor-service/internal/pipeline"
	redisstore "pipewatch/backend/services/monitor-service/internal/redis"
	"pipewatch/backend/services/monitor-service/internal/repository"
	"pipewatch/backend/services/monitor-service/internal/service"
	"pipewatch/backend/services/monitor-service/internal/ws"
)

// App wires all dependencies for the monitor service.
type App struct {
	server     *httpserver.Server
	subscriber *mqtt.Subscriber
	dispatcher *pipeline.Dispatcher
	monitor    *service.OfflineMonitor
	hub        *ws.Hub
	db         *sql.DB
	redis      *goredis.Client
	logger     *zap.Logger
}

// New builds the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.NewPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	stationRepo := repository.NewStationRepository(sqlDB)
	readingRepo := repository.NewReadingRepository(sqlDB)
	alarmRepo := repository.NewAlarmRepository(sqlDB)
	frameStore := repository.NewFrameStore(sqlDB, stationRepo, readingRepo)

	var (
		redisClient *goredis.Client
		latestCache service.LatestCache
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = libredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		latestCache = redisstore.NewLatestStore(redisClient, cfg.LatestTTL())
	}

	notifier := notify.NewEmailNotifier(
		notify.SMTPSettings{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		},
		cfg.Alarms.Recipients,
		cfg.Offline.Recipients,
		logger,
	)

	hub := ws.NewHub(logger)
	wsServer := ws.NewServer(hub, cfg.WriteTimeout(), cfg.PingInterval(), logger)

	engine := service.NewAlarmEngine(cfg.Alarms.Enabled)
	decoder := frame.NewDecoder(logger)
	ingest := service.NewIngestService(decoder, frameStore, alarmRepo, engine, hub, notifier, latestCache, logger)

	dispatcher := pipeline.NewDispatcher(
		cfg.Pipeline.Workers,
		cfg.Pipeline.QueueSize,
		cfg.FrameTimeout(),
		ingest.HandleFrame,
		logger,
	)

	subscriber := mqtt.NewSubscriber(
		mqtt.Settings{
			Broker:   cfg.MQTT.Broker,
			Port:     cfg.MQTT.Port,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
		},
		func(topic string, payload []byte) {
			dispatcher.Submit(topic, payload)
		},
		logger,
	)

	monitor := service.NewOfflineMonitor(stationRepo, notifier, cfg.SweepInterval(), cfg.Staleness(), logger)

	routes := httpserver.Routes{
		Observers: http.HandlerFunc(wsServer.HandleWS),
		Health: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}),
		Metrics: promhttp.Handler(),
	}
	server := httpserver.NewServer(cfg.HTTPAddress(), httpserver.NewRouter(routes), logger)

	return &App{
		server:     server,
		subscriber: subscriber,
		dispatcher: dispatcher,
		monitor:    monitor,
		hub:        hub,
		db:         sqlDB,
		redis:      redisClient,
		logger:     logger,
	}, nil
}

// Run starts the pipeline, transport, sweep, and HTTP server, then blocks
// until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	a.dispatcher.Start()

	connectCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	err := a.subscriber.Connect(connectCtx)
	cancel()
	if err != nil {
		return err
	}

	go a.monitor.Run(ctx)

	err = a.server.Run(ctx)

	// Stop intake first, then drain the queue so accepted frames finish,
	// then drop the observers nothing will broadcast to anymore.
	a.subscriber.Disconnect()
	a.dispatcher.Stop()
	a.hub.CloseAll()

	return err
}

// Close releases resources.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
