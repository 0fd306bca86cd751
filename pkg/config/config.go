// Package config holds global settings for the PhishGuard gateway.
// All settings can be configured via environment variables or
// programmatically.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds global settings for the PhishGuard gateway.
type Config struct {
	// === Core Settings ===
	ListenAddr      string // HTTP listen address (default: ":8843")
	CalibrationPath string // Optional calibration table YAML; empty uses built-in defaults

	// === External Verdict Oracle ===
	OracleBaseURL  string        // Verdict service base URL; empty disables remote lookups
	OracleTimeout  time.Duration // Per-attempt timeout (default: 2s)
	OracleCacheTTL time.Duration // TTL for cached definitive verdicts (default: 10m)

	// === Shared Verdict Cache ===
	RedisAddr string // Redis address for the fleet-wide verdict cache; empty disables it

	// === ML Classifier ===
	EnableML  bool   // Load the ensemble artifact at startup (default: true)
	ModelPath string // Artifact path; empty probes PHISHGUARD_MODEL_PATH then the default location

	// === Behavior Stream ===
	EnableBehavior bool // Accept runtime observation events (default: true)
}

// NewDefaultConfig creates a Config with sensible defaults, each
// overridable via environment variables.
func NewDefaultConfig() *Config {
	cfg := &Config{
		ListenAddr:      GetEnv("PHISHGUARD_LISTEN_ADDR", ":8843"),
		CalibrationPath: GetEnv("PHISHGUARD_CALIBRATION", ""),

		OracleBaseURL:  GetEnv("PHISHGUARD_ORACLE_URL", ""),
		OracleTimeout:  time.Duration(GetEnvInt("PHISHGUARD_ORACLE_TIMEOUT_MS", 2000)) * time.Millisecond,
		OracleCacheTTL: time.Duration(GetEnvInt("PHISHGUARD_ORACLE_CACHE_TTL_S", 600)) * time.Second,

		RedisAddr: GetEnv("PHISHGUARD_REDIS_ADDR", ""),

		EnableML:  GetEnvBool("PHISHGUARD_ENABLE_ML", true),
		ModelPath: GetEnv("PHISHGUARD_MODEL_PATH", ""),

		EnableBehavior: GetEnvBool("PHISHGUARD_ENABLE_BEHAVIOR", true),
	}

	return cfg
}

// Validate checks the configuration for values that would misbehave at
// runtime. Missing optional backends log a warning but allow startup.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.OracleTimeout <= 0 {
		return fmt.Errorf("oracle timeout must be positive, got %s", c.OracleTimeout)
	}
	if c.OracleCacheTTL <= 0 {
		return fmt.Errorf("oracle cache TTL must be positive, got %s", c.OracleCacheTTL)
	}
	if c.OracleBaseURL == "" {
		log.Printf("[WARN] PHISHGUARD_ORACLE_URL not set; running on local fusion only")
	}
	if c.RedisAddr == "" {
		log.Printf("[STARTUP] shared verdict cache disabled (PHISHGUARD_REDIS_ADDR not set)")
	}
	return nil
}

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

// GetEnvSlice returns a comma-separated list from an environment variable or a default value.
func GetEnvSlice(key string, defaultValue []string) []string {
	if v := os.Getenv(key); v != "" {
		var parts []string
		for _, p := range strings.Split(v, ",") {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}
