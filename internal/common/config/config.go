// internal/common/config/config.go
package config

import (
	"fmt"
	"time"

	"lifelink-workers/internal/matching"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Matching      MatchingConfig          `mapstructure:"matching"`
	Scheduler     SchedulerConfig         `mapstructure:"scheduler"`
	Integrations  IntegrationConfig       `mapstructure:"integrations"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Server        ServerConfig            `mapstructure:"server"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	Plaintext      bool   `mapstructure:"plaintext"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses   []string `mapstructure:"addresses"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	URL         string   `mapstructure:"url"`
	DonorIndex  string   `mapstructure:"donor_index"`
	BulkWorkers int      `mapstructure:"bulk_workers"`
}

// GetAddresses merges the address list with the single URL field.
func (e ElasticsearchConfig) GetAddresses() []string {
	if len(e.Addresses) > 0 {
		return e.Addresses
	}
	if e.URL != "" {
		return []string{e.URL}
	}
	return nil
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Matching ---

// MatchingConfig seeds the ranking settings before the database copy of
// system_settings and ai_config is loaded.
type MatchingConfig struct {
	CooldownDays       int              `mapstructure:"cooldown_days"`
	RecencyCapDays     int              `mapstructure:"recency_cap_days"`
	MissingHistoryDays int              `mapstructure:"missing_history_days"`
	DistanceCapKm      float64          `mapstructure:"distance_cap_km"`
	PenaltyDistanceKm  float64          `mapstructure:"penalty_distance_km"`
	EmergencyRadiusKm  float64          `mapstructure:"emergency_radius_km"`
	DefaultLimit       int              `mapstructure:"default_limit"`
	StrongThreshold    float64          `mapstructure:"strong_threshold"`
	Weights            matching.Weights `mapstructure:"weights"`
	CandidateSource    string           `mapstructure:"candidate_source"`   // postgres | elasticsearch
	RequestCacheTTL    int              `mapstructure:"request_cache_ttl"`  // seconds
	SettingsCacheTTL   int              `mapstructure:"settings_cache_ttl"` // seconds
	SlowRankingMs      int              `mapstructure:"slow_ranking_ms"`
}

// ToSettings converts the configured values into a ranking snapshot.
// Score caps that have no configuration key keep their defaults.
func (m MatchingConfig) ToSettings() matching.Settings {
	s := matching.DefaultSettings()
	s.CooldownDays = m.CooldownDays
	s.RecencyCapDays = m.RecencyCapDays
	s.MissingHistoryDays = m.MissingHistoryDays
	s.DistanceCapKm = m.DistanceCapKm
	s.PenaltyDistanceKm = m.PenaltyDistanceKm
	s.DefaultLimit = m.DefaultLimit
	s.StrongThreshold = m.StrongThreshold
	s.EmergencyRadiusKm = m.EmergencyRadiusKm
	s.Weights = m.Weights
	return s
}

type SchedulerConfig struct {
	Enabled                 bool   `mapstructure:"enabled"`
	AvailabilityRefreshCron string `mapstructure:"availability_refresh_cron"`
	IndexSyncCron           string `mapstructure:"index_sync_cron"`
	JobTimeout              int    `mapstructure:"job_timeout"` // milliseconds
}

// IntegrationConfig holds settings for external delivery services.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SNS    struct {
			Enabled            bool   `mapstructure:"enabled"`
			DefaultSMSSenderID string `mapstructure:"default_sms_sender_id"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// NotificationConfig holds settings for the notify-matched-donors worker.
type NotificationConfig struct {
	SMS struct {
		Enabled      bool   `mapstructure:"enabled"`
		StrongOnly   bool   `mapstructure:"strong_only"`
		MessageTitle string `mapstructure:"message_title"`
		CountryCode  string `mapstructure:"country_code"` // prefix for numbers stored without one
	} `mapstructure:"sms"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Seconds converts a seconds value from config into a time.Duration.
func Seconds(s int) time.Duration {
	return time.Duration(s) * time.Second
}
