package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/accesswatch/accesswatch-backend/internal/service/detection"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Kafka     KafkaConfig     `koanf:"kafka"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Detection DetectionConfig `koanf:"detection"`
	Response  ResponseConfig  `koanf:"response"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
	GroupID string   `koanf:"group_id"`
	Enabled bool     `koanf:"enabled"`
}

type IngestConfig struct {
	RatePerSecond       int    `koanf:"rate_per_second"`
	PseudonymizerSecret string `koanf:"pseudonymizer_secret"`
	PseudonymizeUsers   bool   `koanf:"pseudonymize_users"`
}

type TelemetryConfig struct {
	OTLPEndpoint   string `koanf:"otlp_endpoint"`
	TracingEnabled bool   `koanf:"tracing_enabled"`
	MetricsEnabled bool   `koanf:"metrics_enabled"`
}

// DetectionConfig mirrors detection.Config for the config file; see
// ToDetection.
type DetectionConfig struct {
	HighSeverityThreshold   float64 `koanf:"high_severity_threshold"`
	MediumSeverityThreshold float64 `koanf:"medium_severity_threshold"`
	MinimumAlertThreshold   float64 `koanf:"minimum_alert_threshold"`

	ProfileLookbackDays       int `koanf:"profile_lookback_days"`
	MinimumAccessesForProfile int `koanf:"minimum_accesses_for_profile"`

	UnusualLocationThreshold float64 `koanf:"unusual_location_threshold"`
	IPChangeThreshold        float64 `koanf:"ip_change_threshold"`
	UnknownDeviceThreshold   float64 `koanf:"unknown_device_threshold"`
	AtypicalTimeThreshold    float64 `koanf:"atypical_time_threshold"`
	WeakAuthThreshold        float64 `koanf:"weak_auth_threshold"`

	FailedAttemptsCount         int `koanf:"failed_attempts_count"`
	FailedAttemptsWindowMinutes int `koanf:"failed_attempts_window_minutes"`

	SweepInterval time.Duration `koanf:"sweep_interval"`
	BatchSize     int           `koanf:"batch_size"`
	Simulation    bool          `koanf:"simulation"`

	Weights WeightsConfig `koanf:"weights"`
}

type WeightsConfig struct {
	UnusualLocation float64 `koanf:"unusual_location"`
	IPChange        float64 `koanf:"ip_change"`
	UnknownDevice   float64 `koanf:"unknown_device"`
	AtypicalTime    float64 `koanf:"atypical_time"`
	WeakAuth        float64 `koanf:"weak_auth"`
	FailedAttempts  float64 `koanf:"failed_attempts"`
}

type ResponseConfig struct {
	SweepInterval time.Duration `koanf:"sweep_interval"`
	Enabled       bool          `koanf:"enabled"`
}

// ToDetection converts the file representation to the engine's config.
func (d DetectionConfig) ToDetection() *detection.Config {
	return &detection.Config{
		HighSeverityThreshold:   d.HighSeverityThreshold,
		MediumSeverityThreshold: d.MediumSeverityThreshold,
		MinimumAlertThreshold:   d.MinimumAlertThreshold,

		ProfileLookbackDays:       d.ProfileLookbackDays,
		MinimumAccessesForProfile: d.MinimumAccessesForProfile,

		UnusualLocationThreshold: d.UnusualLocationThreshold,
		IPChangeThreshold:        d.IPChangeThreshold,
		UnknownDeviceThreshold:   d.UnknownDeviceThreshold,
		AtypicalTimeThreshold:    d.AtypicalTimeThreshold,
		WeakAuthThreshold:        d.WeakAuthThreshold,

		FailedAttemptsCount:         d.FailedAttemptsCount,
		FailedAttemptsWindowMinutes: d.FailedAttemptsWindowMinutes,

		Weights: detection.Weights{
			UnusualLocation: d.Weights.UnusualLocation,
			IPChange:        d.Weights.IPChange,
			UnknownDevice:   d.Weights.UnknownDevice,
			AtypicalTime:    d.Weights.AtypicalTime,
			WeakAuth:        d.Weights.WeakAuth,
			FailedAttempts:  d.Weights.FailedAttempts,
		},
	}
}

func Load() (*Config, error) {
	k := koanf.New(".")

	engine := detection.DefaultConfig()
	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB: 0,
		},
		Kafka: KafkaConfig{
			Topic:   "signin-events",
			GroupID: "accesswatch",
		},
		Ingest: IngestConfig{
			RatePerSecond:     200,
			PseudonymizeUsers: false,
		},
		Detection: DetectionConfig{
			HighSeverityThreshold:   engine.HighSeverityThreshold,
			MediumSeverityThreshold: engine.MediumSeverityThreshold,
			MinimumAlertThreshold:   engine.MinimumAlertThreshold,

			ProfileLookbackDays:       engine.ProfileLookbackDays,
			MinimumAccessesForProfile: engine.MinimumAccessesForProfile,

			UnusualLocationThreshold: engine.UnusualLocationThreshold,
			IPChangeThreshold:        engine.IPChangeThreshold,
			UnknownDeviceThreshold:   engine.UnknownDeviceThreshold,
			AtypicalTimeThreshold:    engine.AtypicalTimeThreshold,
			WeakAuthThreshold:        engine.WeakAuthThreshold,

			FailedAttemptsCount:         engine.FailedAttemptsCount,
			FailedAttemptsWindowMinutes: engine.FailedAttemptsWindowMinutes,

			SweepInterval: time.Minute,
			BatchSize:     100,

			Weights: WeightsConfig{
				UnusualLocation: engine.Weights.UnusualLocation,
				IPChange:        engine.Weights.IPChange,
				UnknownDevice:   engine.Weights.UnknownDevice,
				AtypicalTime:    engine.Weights.AtypicalTime,
				WeakAuth:        engine.Weights.WeakAuth,
				FailedAttempts:  engine.Weights.FailedAttempts,
			},
		},
		Response: ResponseConfig{
			SweepInterval: time.Minute,
			Enabled:       true,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional.
	_ = k.Load(file.Provider("configs/config.yaml"), yaml.Parser())

	if err := k.Load(env.Provider("ACCESSWATCH_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "ACCESSWATCH_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
