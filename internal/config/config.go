package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration, loaded from the environment.
type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Cache   CacheConfig
	Warming WarmingConfig
}

type ServerConfig struct {
	Host string
	Port string
	Mode string // "debug" or "release"
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
}

// CacheConfig configures the cache subsystem.
type CacheConfig struct {
	L1MaxSize         int
	L1CleanupInterval time.Duration
	L2KeyPrefix       string
	L2Timeout         time.Duration
	// PolicyFile optionally points at a YAML TTL policy table that
	// overrides the built-in defaults.
	PolicyFile string
}

// WarmingConfig configures the background warming scheduler.
type WarmingConfig struct {
	Enabled  bool
	Interval time.Duration
	Delay    time.Duration
	// ActiveIDs is a static seed list of entity IDs to keep warm; the
	// domain layer usually supplies a dynamic source instead.
	ActiveIDs []string
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("PORT", "8080"),
			Mode: getEnv("GIN_MODE", "release"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			PoolSize: getIntEnv("REDIS_POOL_SIZE", 10),
		},
		Cache: CacheConfig{
			L1MaxSize:         getIntEnv("CACHE_L1_MAX_SIZE", 1000),
			L1CleanupInterval: getDurationEnv("CACHE_L1_CLEANUP_INTERVAL", time.Minute),
			L2KeyPrefix:       getEnv("CACHE_L2_KEY_PREFIX", "leafwise:"),
			L2Timeout:         getDurationEnv("CACHE_L2_TIMEOUT", 2*time.Second),
			PolicyFile:        getEnv("CACHE_TTL_POLICY_FILE", ""),
		},
		Warming: WarmingConfig{
			Enabled:   getBoolEnv("WARMING_ENABLED", true),
			Interval:  getDurationEnv("WARMING_INTERVAL", 5*time.Minute),
			Delay:     getDurationEnv("WARMING_DELAY", 100*time.Millisecond),
			ActiveIDs: getEnvSlice("WARMING_ACTIVE_IDS", nil),
		},
	}
}

// Addr returns the host:port the server listens on.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// Addr returns the host:port of the Redis server.
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// ttlPolicyFile is the YAML shape of an on-disk TTL policy table:
//
//	ttl_seconds:
//	  care_plan: 3600
//	  environmental_data: 900
type ttlPolicyFile struct {
	TTLSeconds map[string]int `yaml:"ttl_seconds"`
}

// TTLPolicy loads the TTL policy table from the configured file. A
// missing PolicyFile yields (nil, nil), meaning "use built-in defaults".
func (c CacheConfig) TTLPolicy() (map[string]time.Duration, error) {
	if c.PolicyFile == "" {
		return nil, nil
	}

	data, err := os.ReadFile(c.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("read ttl policy file: %w", err)
	}

	var file ttlPolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse ttl policy file: %w", err)
	}
	if len(file.TTLSeconds) == 0 {
		return nil, fmt.Errorf("ttl policy file %s defines no ttl_seconds", c.PolicyFile)
	}

	ttls := make(map[string]time.Duration, len(file.TTLSeconds))
	for typ, seconds := range file.TTLSeconds {
		if seconds <= 0 {
			return nil, fmt.Errorf("ttl policy for %q must be positive, got %d", typ, seconds)
		}
		ttls[typ] = time.Duration(seconds) * time.Second
	}
	return ttls, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
