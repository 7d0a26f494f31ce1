package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "pipewatch/backend/libs/config"
)

// Config defines monitor service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Alarms    AlarmsConfig    `yaml:"alarms"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Offline   OfflineConfig   `yaml:"offline"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// HTTPConfig holds the listener settings.
type HTTPConfig struct {
	Port string `yaml:"port" env:"MONITOR_HTTP_PORT"`
}

// DatabaseConfig holds the postgres connection settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"MONITOR_POSTGRES_DSN"`
}

// RedisConfig holds the optional latest-reading cache settings. An empty
// addr disables the cache.
type RedisConfig struct {
	Addr             string `yaml:"addr" env:"MONITOR_REDIS_ADDR"`
	Password         string `yaml:"password" env:"MONITOR_REDIS_PASSWORD"`
	DB               int    `yaml:"db" env:"MONITOR_REDIS_DB"`
	LatestTTLMinutes int    `yaml:"latestTtlMinutes" env:"MONITOR_REDIS_LATEST_TTL"`
}

// MQTTConfig holds the broker connection settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker" env:"MONITOR_MQTT_BROKER"`
	Port     int    `yaml:"port" env:"MONITOR_MQTT_PORT"`
	ClientID string `yaml:"clientId" env:"MONITOR_MQTT_CLIENT_ID"`
	Topic    string `yaml:"topic" env:"MONITOR_MQTT_TOPIC"`
}

// PipelineConfig sizes the frame dispatcher.
type PipelineConfig struct {
	Workers             int `yaml:"workers" env:"MONITOR_PIPELINE_WORKERS"`
	QueueSize           int `yaml:"queueSize" env:"MONITOR_PIPELINE_QUEUE_SIZE"`
	FrameTimeoutSeconds int `yaml:"frameTimeoutSeconds" env:"MONITOR_PIPELINE_FRAME_TIMEOUT"`
}

// AlarmsConfig controls threshold monitoring and notification recipients.
type AlarmsConfig struct {
	Enabled    bool     `yaml:"enabled" env:"MONITOR_ALARMS_ENABLED"`
	Recipients []string `yaml:"recipients" env:"ALARM_EMAIL_RECIPIENTS"`
}

// SMTPConfig holds the outbound mail settings.
type SMTPConfig struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     int    `yaml:"port" env:"SMTP_PORT"`
	Username string `yaml:"username" env:"SMTP_USER"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" env:"SMTP_FROM"`
}

// OfflineConfig controls the offline sweep.
type OfflineConfig struct {
	SweepIntervalMinutes int      `yaml:"sweepIntervalMinutes" env:"MONITOR_OFFLINE_SWEEP_INTERVAL"`
	StalenessMinutes     int      `yaml:"stalenessMinutes" env:"MONITOR_OFFLINE_STALENESS"`
	Recipients           []string `yaml:"recipients" env:"OFFLINE_EMAIL_RECIPIENTS"`
}

// WebSocketConfig controls observer connections.
type WebSocketConfig struct {
	PingIntervalSeconds int `yaml:"pingIntervalSeconds" env:"MONITOR_WS_PING_INTERVAL"`
	WriteTimeoutSeconds int `yaml:"writeTimeoutSeconds" env:"MONITOR_WS_WRITE_TIMEOUT"`
}

// Load uses the shared config loader and validates required fields.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{Port: "8090"},
		MQTT: MQTTConfig{
			Port:     1883,
			ClientID: "pipewatch-monitor",
			Topic:    "stations/telemetry/#",
		},
		Pipeline: PipelineConfig{
			Workers:             4,
			QueueSize:           256,
			FrameTimeoutSeconds: 30,
		},
		Alarms: AlarmsConfig{Enabled: true},
		SMTP:   SMTPConfig{Port: 587},
		Offline: OfflineConfig{
			SweepIntervalMinutes: 90,
			StalenessMinutes:     90,
		},
		WebSocket: WebSocketConfig{
			PingIntervalSeconds: 30,
			WriteTimeoutSeconds: 15,
		},
	}

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database DSN is required")
	}
	if strings.TrimSpace(cfg.MQTT.Broker) == "" {
		return nil, errors.New("config: mqtt broker is required")
	}

	return cfg, nil
}

// HTTPAddress returns :port style address.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8090"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// LatestTTL returns the cache entry lifetime.
func (c *Config) LatestTTL() time.Duration {
	if c.Redis.LatestTTLMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(c.Redis.LatestTTLMinutes) * time.Minute
}

// FrameTimeout returns the per-frame processing deadline.
func (c *Config) FrameTimeout() time.Duration {
	if c.Pipeline.FrameTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Pipeline.FrameTimeoutSeconds) * time.Second
}

// SweepInterval returns how often the offline sweep runs.
func (c *Config) SweepInterval() time.Duration {
	if c.Offline.SweepIntervalMinutes <= 0 {
		return 90 * time.Minute
	}
	return time.Duration(c.Offline.SweepIntervalMinutes) * time.Minute
}

// Staleness returns the silent-station cutoff.
func (c *Config) Staleness() time.Duration {
	if c.Offline.StalenessMinutes <= 0 {
		return 90 * time.Minute
	}
	return time.Duration(c.Offline.StalenessMinutes) * time.Minute
}

// PingInterval returns websocket ping interval.
func (c *Config) PingInterval() time.Duration {
	if c.WebSocket.PingIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.WebSocket.PingIntervalSeconds) * time.Second
}

// WriteTimeout returns websocket write timeout.
func (c *Config) WriteTimeout() time.Duration {
	if c.WebSocket.WriteTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.WebSocket.WriteTimeoutSeconds) * time.Second
}
