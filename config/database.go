package config

import (
	"strings"
	"time"
)

// StoreBackend selects the JobStore implementation.
type StoreBackend string

const (
	// StoreBackendMemory keeps jobs in process memory. Jobs are lost on restart.
	StoreBackendMemory StoreBackend = "memory"
	// StoreBackendRedis keeps jobs in Redis so several processes can share them.
	StoreBackendRedis StoreBackend = "redis"
)

// StoreConfig selects and tunes the job store.
type StoreConfig struct {
	Backend StoreBackend `env:"JOB_STORE" envDefault:"memory"`

	// KeyPrefix namespaces every Redis key written by the job store and research cache.
	KeyPrefix string `env:"JOB_STORE_KEY_PREFIX" envDefault:"marketlens"`

	// OpTimeout bounds a single store round trip.
	OpTimeout time.Duration `env:"JOB_STORE_OP_TIMEOUT" envDefault:"3s"`
}

// Sanitize applies guardrails to store configuration values.
func (s *StoreConfig) Sanitize() {
	switch StoreBackend(strings.ToLower(strings.TrimSpace(string(s.Backend)))) {
	case StoreBackendRedis:
		s.Backend = StoreBackendRedis
	default:
		s.Backend = StoreBackendMemory
	}
	s.KeyPrefix = strings.Trim(strings.TrimSpace(s.KeyPrefix), ":")
	if s.KeyPrefix == "" {
		s.KeyPrefix = "marketlens"
	}
	if s.OpTimeout <= 0 {
		s.OpTimeout = 3 * time.Second
	}
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:""`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
}
