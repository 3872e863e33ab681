package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// Keys are scoped by namespace, normally the dataset fingerprint, so a
// reloaded dataset never reads reports computed for another one.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, namespace string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, namespace string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, namespace string, key string) error

	// GetReport retrieves a memoized report for a selection key.
	GetReport(ctx context.Context, namespace string, selectionKey string) (*Report, error)

	// SetReport memoizes a report for a selection key.
	SetReport(ctx context.Context, namespace string, selectionKey string, report *Report, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `yaml:"type" json:"type"`

	// Local LRU cache settings (Community tier)
	LocalMaxSize int           `yaml:"localMaxSize" json:"localMaxSize"`
	LocalTTL     time.Duration `yaml:"localTTL" json:"localTTL"`

	// ReportTTL is how long a computed report stays memoized
	ReportTTL time.Duration `yaml:"reportTTL" json:"reportTTL"`

	// Redis settings (Pro tier)
	RedisAddr     string `yaml:"redisAddr" json:"redisAddr"`
	RedisPassword string `yaml:"redisPassword" json:"-"`
	RedisDB       int    `yaml:"redisDB" json:"redisDB"`

	// Two-phase settings
	EnableTwoPhase bool `yaml:"enableTwoPhase" json:"enableTwoPhase"` // If true, check local first, then Redis
}
