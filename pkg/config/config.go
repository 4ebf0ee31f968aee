package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	// StoreDriver selects the queue backend: "postgres" or "memory"
	StoreDriver string

	// Suggestion advisor
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	SuggestionTimeout time.Duration

	// Sweep
	SweepSpec string
	Retention time.Duration

	// Deadline policy
	WorkingHoursOnly bool
	WorkStartHour    int
	WorkEndHour      int
	Timezone         string
	AtRiskFraction   float64
	BaseHours        map[string]float64
	VIPOverrides     map[string]float64

	// Queue store tuning
	MaxPageSize     int
	DefaultPageSize int
	StatsTTL        time.Duration
	WaitOnConflict  bool

	// Gmail metadata pull
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRefreshToken string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		StoreDriver: getEnv("STORE_DRIVER", "memory"),

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		SuggestionTimeout: getDuration("SUGGESTION_TIMEOUT", 3*time.Second),

		SweepSpec: getEnv("SWEEP_SCHEDULE", "@hourly"),
		Retention: getDuration("RETENTION_WINDOW", 30*24*time.Hour),

		WorkingHoursOnly: getBool("WORKING_HOURS_ONLY", false),
		WorkStartHour:    getInt("WORK_START_HOUR", 9),
		WorkEndHour:      getInt("WORK_END_HOUR", 17),
		Timezone:         getEnv("TIMEZONE", "UTC"),
		AtRiskFraction:   getFloat("AT_RISK_FRACTION", 0.25),
		BaseHours: map[string]float64{
			"critical": getFloat("SLA_CRITICAL_HOURS", 4),
			"high":     getFloat("SLA_HIGH_HOURS", 24),
			"medium":   getFloat("SLA_MEDIUM_HOURS", 72),
		},
		VIPOverrides: getHourOverrides("SLA_VIP_OVERRIDES"),

		MaxPageSize:     getInt("MAX_PAGE_SIZE", 100),
		DefaultPageSize: getInt("DEFAULT_PAGE_SIZE", 50),
		StatsTTL:        getDuration("STATS_TTL", 5*time.Minute),
		WaitOnConflict:  getBool("WAIT_ON_CONFLICT", false),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getHourOverrides parses "alice@corp.com=2,bob@corp.com=1.5" into a
// per-sender hour map.
func getHourOverrides(key string) map[string]float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	overrides := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		hours, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			continue
		}
		overrides[strings.ToLower(parts[0])] = hours
	}
	return overrides
}
