// Package config provides centralized default values for AdStack
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Tenant Capacity
	MaxTenants int

	// Database Pool
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	DBConnMaxIdleMinutes     int
	SlowQueryThreshold       time.Duration

	// Hot Period Cache
	HotCacheTTL      time.Duration
	CurrentDayTTL    time.Duration
	RefreshCooldown  time.Duration
	CoalesceCeiling  time.Duration
	MapSweepInterval time.Duration

	// Upstream Fetch
	UpstreamTimeout    time.Duration
	UpstreamMaxRetries int

	// Archival & Retention
	ArchivalCheckInterval time.Duration
	RetentionMonths       int
	RetentionWeeks        int

	// Cleanup Intervals
	CleanupInterval       time.Duration
	CleanupVerbose        bool
	DBPoolCleanupInterval time.Duration
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Tenant Capacity
	MaxTenants = getEnvInt("MAX_TENANTS", 5)

	// Database Pool
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	DBConnMaxIdleMinutes = getEnvInt("DB_CONN_MAX_IDLE_MINUTES", 3)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 250*time.Millisecond)

	// Hot Period Cache
	HotCacheTTL = time.Duration(getEnvInt("HOT_CACHE_TTL_HOURS", 4)) * time.Hour
	CurrentDayTTL = time.Duration(getEnvInt("CURRENT_DAY_TTL_MINUTES", 30)) * time.Minute
	RefreshCooldown = time.Duration(getEnvInt("REFRESH_COOLDOWN_MINUTES", 3)) * time.Minute
	CoalesceCeiling = time.Duration(getEnvInt("COALESCE_CEILING_SECONDS", 30)) * time.Second
	MapSweepInterval = time.Duration(getEnvInt("MAP_SWEEP_INTERVAL_MINUTES", 5)) * time.Minute

	// Upstream Fetch
	UpstreamTimeout = time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 20)) * time.Second
	UpstreamMaxRetries = getEnvInt("UPSTREAM_MAX_RETRIES", 2)

	// Archival & Retention
	ArchivalCheckInterval = time.Duration(getEnvInt("ARCHIVAL_CHECK_INTERVAL_HOURS", 1)) * time.Hour
	RetentionMonths = getEnvInt("RETENTION_MONTHS", 24)
	RetentionWeeks = getEnvInt("RETENTION_WEEKS", 104)

	// Cleanup Intervals
	CleanupInterval = time.Duration(getEnvInt("CACHE_CLEANUP_INTERVAL_MINUTES", 30)) * time.Minute
	CleanupVerbose = getEnvString("CACHE_CLEANUP_VERBOSE", "true") == "true"
	DBPoolCleanupInterval = time.Duration(getEnvInt("DB_POOL_CLEANUP_INTERVAL_MINUTES", 5)) * time.Minute
}
