/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	BaseURL     string // Public base URL (e.g., https://interviews.example.com)
	DBBackend   DatabaseBackend
	DBDSN       string

	JWTSigningKey string

	// Timezone is the single civil zone used for every slot date/time
	// comparison. Mixing zones per call site is exactly the bug this
	// setting exists to prevent.
	Timezone string

	// MeetingBaseURL is the conferencing handler's join URL base; the
	// scheduler only mints references under it.
	MeetingBaseURL string

	// Scheduling thresholds. These feed lifecycle.Policy; transition logic
	// never hard-codes them.
	BookingLeadMinutes         int
	NoShowGraceMinutes         int
	MinAttendanceMinutes       int
	ManualDurationMinutes      int
	JoinWindowBeforeMinutes    int
	ManualCompleteDelayMinutes int

	// Slot generation policy.
	SlotWindowDays       int
	SlotDayStartHour     int
	SlotDayEndHour       int
	SlotIncrementMinutes int

	// Redis cache for bookable-slot lists (optional).
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheEnabled  bool

	// NATS event bridge for external consumers (mailer etc.; optional).
	NATSURL string

	// Tracing configuration.
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("TALENTGRID_ENV", "development"),
		HTTPBind:    getEnv("TALENTGRID_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("TALENTGRID_HTTP_PORT", 8080),
		BaseURL:     getEnv("TALENTGRID_BASE_URL", ""),
		DBBackend:   DatabaseBackend(getEnv("TALENTGRID_DB_BACKEND", string(DatabasePostgres))),
		DBDSN:       getEnv("TALENTGRID_DB_DSN", ""),

		JWTSigningKey: getEnv("TALENTGRID_JWT_SIGNING_KEY", ""),

		Timezone:       getEnv("TALENTGRID_TIMEZONE", "UTC"),
		MeetingBaseURL: getEnv("TALENTGRID_MEETING_BASE_URL", "https://meet.jit.si"),

		BookingLeadMinutes:         getEnvInt("TALENTGRID_BOOKING_LEAD_MINUTES", 5),
		NoShowGraceMinutes:         getEnvInt("TALENTGRID_NO_SHOW_GRACE_MINUTES", 10),
		MinAttendanceMinutes:       getEnvInt("TALENTGRID_MIN_ATTENDANCE_MINUTES", 5),
		ManualDurationMinutes:      getEnvInt("TALENTGRID_MANUAL_DURATION_MINUTES", 30),
		JoinWindowBeforeMinutes:    getEnvInt("TALENTGRID_JOIN_WINDOW_BEFORE_MINUTES", 40),
		ManualCompleteDelayMinutes: getEnvInt("TALENTGRID_MANUAL_COMPLETE_DELAY_MINUTES", 5),

		SlotWindowDays:       getEnvInt("TALENTGRID_SLOT_WINDOW_DAYS", 7),
		SlotDayStartHour:     getEnvInt("TALENTGRID_SLOT_DAY_START_HOUR", 9),
		SlotDayEndHour:       getEnvInt("TALENTGRID_SLOT_DAY_END_HOUR", 17),
		SlotIncrementMinutes: getEnvInt("TALENTGRID_SLOT_INCREMENT_MINUTES", 30),

		RedisAddr:     getEnv("TALENTGRID_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("TALENTGRID_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("TALENTGRID_REDIS_DB", 0),
		CacheEnabled:  getEnvBool("TALENTGRID_CACHE_ENABLED", false),

		NATSURL: getEnv("TALENTGRID_NATS_URL", ""),

		TracingEnabled:    getEnvBool("TALENTGRID_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("TALENTGRID_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("TALENTGRID_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("TALENTGRID_DB_DSN must be provided")
	}
	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("TALENTGRID_JWT_SIGNING_KEY must be provided")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TALENTGRID_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	if cfg.SlotDayEndHour <= cfg.SlotDayStartHour {
		return nil, fmt.Errorf("TALENTGRID_SLOT_DAY_END_HOUR must be after TALENTGRID_SLOT_DAY_START_HOUR")
	}
	if cfg.SlotIncrementMinutes <= 0 || cfg.SlotIncrementMinutes > 60 {
		return nil, fmt.Errorf("TALENTGRID_SLOT_INCREMENT_MINUTES must be in (0, 60]")
	}

	return cfg, nil
}

// Location returns the configured civil zone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
