package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Database
	DBDriver    string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	DatabaseURL string
	SQLitePath  string

	// Redis
	EnableCache bool
	RedisURL    string

	// JWT
	JWTSecret string

	// Server
	Port        string
	Environment string
	LogLevel    string

	// CORS
	CORSOrigins []string

	// Rate Limiting
	RateLimitRequests   int
	RateLimitWindow     int
	RateLimitBurst      int
	QuizSubmitPerMinute int

	// Messaging
	AMQPURL      string
	AMQPExchange string

	// Progression
	WatchCompletionThreshold int

	// Background jobs
	SchedulerWorkers       int
	SchedulerQueueSize     int
	IntegrityAuditInterval time.Duration

	// Features
	EnableMetrics bool
}

func New() *Config {
	c := &Config{
		// Database
		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "videopath"),
		DBPassword: getEnv("DB_PASSWORD", "videopath"),
		DBName:     getEnv("DB_NAME", "videopath"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "videopath.db"),

		// Redis
		EnableCache: getEnvAsBool("ENABLE_CACHE", true),
		RedisURL:    getEnv("REDIS_URL", "localhost:6379"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "change-this-secret-in-production"),

		// Server
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "debug"),

		// CORS
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080")),

		// Rate Limiting
		RateLimitRequests:   getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:     getEnvAsInt("RATE_LIMIT_WINDOW", 60),
		RateLimitBurst:      getEnvAsInt("RATE_LIMIT_BURST", 0),
		QuizSubmitPerMinute: getEnvAsInt("QUIZ_SUBMIT_PER_MINUTE", 10),

		// Messaging
		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "videopath.progress"),

		// Progression
		WatchCompletionThreshold: getEnvAsInt("WATCH_COMPLETION_THRESHOLD", 90),

		// Background jobs
		SchedulerWorkers:       getEnvAsInt("SCHEDULER_WORKERS", 2),
		SchedulerQueueSize:     getEnvAsInt("SCHEDULER_QUEUE_SIZE", 32),
		IntegrityAuditInterval: time.Duration(getEnvAsInt("INTEGRITY_AUDIT_INTERVAL_MINUTES", 60)) * time.Minute,

		// Features
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}

	if c.WatchCompletionThreshold <= 0 || c.WatchCompletionThreshold > 100 {
		c.WatchCompletionThreshold = 90
	}

	// Build DSN
	c.DatabaseURL = getEnv("DATABASE_URL", fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	))

	return c
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UsesSQLite reports whether the configured driver is the embedded SQLite one.
func (c *Config) UsesSQLite() bool {
	return c.DBDriver == "sqlite"
}
