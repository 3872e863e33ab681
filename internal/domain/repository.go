package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Incident dataset operations. ReplaceIncidents swaps the whole table;
	// ListIncidents returns rows in their original order.
	ReplaceIncidents(ctx context.Context, incidents []Incident) error
	ListIncidents(ctx context.Context) ([]IncidentRow, error)
	CountIncidents(ctx context.Context) (int64, error)

	// Prediction log operations
	SavePredictionLog(ctx context.Context, log *PredictionLog) error
	GetPredictionLog(ctx context.Context, id string) (*PredictionLog, error)
	ListPredictionLogs(ctx context.Context, limit int) ([]*PredictionLog, error)
	DeletePredictionLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `yaml:"driver" json:"driver"`

	// SQLite specific
	SQLitePath string `yaml:"sqlitePath" json:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `yaml:"postgresHost" json:"postgresHost"`
	PostgresPort     int    `yaml:"postgresPort" json:"postgresPort"`
	PostgresUser     string `yaml:"postgresUser" json:"postgresUser"`
	PostgresPassword string `yaml:"postgresPassword" json:"-"`
	PostgresDB       string `yaml:"postgresDB" json:"postgresDB"`
	PostgresSSLMode  string `yaml:"postgresSSLMode" json:"postgresSSLMode"`

	// Connection pool settings
	MaxOpenConns    int           `yaml:"maxOpenConns" json:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns" json:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" json:"connMaxLifetime"`
}
