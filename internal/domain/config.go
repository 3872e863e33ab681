package domain

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete Railwatch configuration.
type Config struct {
	// Server settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Tier determines which backends are used
	Tier Tier `yaml:"tier" json:"tier"`

	Dataset DatasetConfig `yaml:"dataset" json:"dataset"`
	Model   ModelConfig   `yaml:"model" json:"model"`

	// Component configurations
	Repository RepositoryConfig `yaml:"repository" json:"repository"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	EventBus   EventBusConfig   `yaml:"eventBus" json:"eventBus"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" json:"scheduler"`

	// Observability
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `yaml:"host" json:"host"`
	Port         int    `yaml:"port" json:"port"`
	ReadTimeout  int    `yaml:"readTimeout" json:"readTimeout"`   // seconds
	WriteTimeout int    `yaml:"writeTimeout" json:"writeTimeout"` // seconds

	// AllowedOrigins lists dashboard origins for CORS. Empty allows any.
	AllowedOrigins []string `yaml:"allowedOrigins" json:"allowedOrigins"`
}

// DatasetConfig says where the incident table is loaded from.
type DatasetConfig struct {
	// Source is "csv" or "repository"
	Source    string `yaml:"source" json:"source"`
	CSVPath   string `yaml:"csvPath" json:"csvPath"`
	Delimiter string `yaml:"delimiter" json:"delimiter"`
}

// ModelConfig locates the classifier artifact.
type ModelConfig struct {
	ArtifactPath string `yaml:"artifactPath" json:"artifactPath"`
}

// SchedulerConfig holds cron schedules for background jobs. An empty
// schedule disables the job.
type SchedulerConfig struct {
	RetentionSchedule string `yaml:"retentionSchedule" json:"retentionSchedule"`
	RetentionDays     int    `yaml:"retentionDays" json:"retentionDays"`
	WarmSchedule      string `yaml:"warmSchedule" json:"warmSchedule"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	ServiceName string `yaml:"serviceName" json:"serviceName"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite, an in-process cache and channels
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL, Redis and NATS
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Dataset: DatasetConfig{
			Source:    "csv",
			CSVPath:   "./data/02_data_for_ML.csv",
			Delimiter: ";",
		},
		Model: ModelConfig{
			ArtifactPath: "./artifacts/evacuation_rf.json",
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./railwatch.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 512,
			LocalTTL:     5 * time.Minute,
			ReportTTL:    30 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Scheduler: SchedulerConfig{
			RetentionSchedule: "0 3 * * *",
			RetentionDays:     90,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "railwatch",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Dataset.Source = "repository"
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "railwatch",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   128,
		LocalTTL:       time.Minute,
		ReportTTL:      time.Hour,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Scheduler.WarmSchedule = "*/30 * * * *"
	cfg.Tracing.Enabled = true
	return cfg
}

// LoadConfig builds the configuration: tier defaults, then the YAML file at
// path (if it exists), then environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if os.Getenv("RAILWATCH_TIER") == string(TierPro) {
		cfg = ProConfig()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	envOverride(&cfg.Server.Host, "RAILWATCH_HOST")
	envOverrideInt(&cfg.Server.Port, "RAILWATCH_PORT")
	if v := os.Getenv("RAILWATCH_CORS_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	envOverride(&cfg.Dataset.Source, "RAILWATCH_DATASET_SOURCE")
	envOverride(&cfg.Dataset.CSVPath, "RAILWATCH_DATASET_CSV")
	envOverride(&cfg.Model.ArtifactPath, "RAILWATCH_MODEL_ARTIFACT")
	envOverride(&cfg.Repository.Driver, "RAILWATCH_DB_DRIVER")
	envOverride(&cfg.Repository.SQLitePath, "RAILWATCH_SQLITE_PATH")
	envOverride(&cfg.Repository.PostgresHost, "RAILWATCH_PG_HOST")
	envOverrideInt(&cfg.Repository.PostgresPort, "RAILWATCH_PG_PORT")
	envOverride(&cfg.Repository.PostgresUser, "RAILWATCH_PG_USER")
	envOverride(&cfg.Repository.PostgresPassword, "RAILWATCH_PG_PASSWORD")
	envOverride(&cfg.Repository.PostgresDB, "RAILWATCH_PG_DB")
	envOverride(&cfg.Cache.Type, "RAILWATCH_CACHE")
	envOverride(&cfg.Cache.RedisAddr, "RAILWATCH_REDIS_ADDR")
	envOverride(&cfg.Cache.RedisPassword, "RAILWATCH_REDIS_PASSWORD")
	envOverride(&cfg.EventBus.Type, "RAILWATCH_BUS")
	envOverride(&cfg.EventBus.NATSUrl, "RAILWATCH_NATS_URL")
	envOverride(&cfg.EventBus.NATSToken, "RAILWATCH_NATS_TOKEN")
	envOverride(&cfg.Scheduler.RetentionSchedule, "RAILWATCH_RETENTION_SCHEDULE")
	envOverrideInt(&cfg.Scheduler.RetentionDays, "RAILWATCH_RETENTION_DAYS")
	envOverride(&cfg.Scheduler.WarmSchedule, "RAILWATCH_WARM_SCHEDULE")
	envOverride(&cfg.Logging.Level, "RAILWATCH_LOG_LEVEL")

	if os.Getenv("RAILWATCH_DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
