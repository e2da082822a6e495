package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	External  ExternalAPIConfig
	Scheduler SchedulerConfig
	Jobs      JobsConfig
	Reporting ReportingConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type ExternalAPIConfig struct {
	BaseURL string
	APIKey  string
	Timeout int
}

type SchedulerConfig struct {
	Workers         int
	TickInterval    time.Duration
	MaxHistory      int
	ShutdownTimeout time.Duration
	Timezone        string
}

type JobsConfig struct {
	ProcessInterval time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
	DataEndpoint    string
	RetentionDays   int
}

type ReportingConfig struct {
	OutputDir     string
	DefaultFormat string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "databot"),
			Password: getEnv("DB_PASSWORD", "databot123"),
			DBName:   getEnv("DB_NAME", "databot_core"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		External: ExternalAPIConfig{
			BaseURL: getEnv("EXTERNAL_API_URL", ""),
			APIKey:  getEnv("EXTERNAL_API_KEY", ""),
			Timeout: getEnvAsInt("EXTERNAL_API_TIMEOUT", 30),
		},
		Scheduler: SchedulerConfig{
			Workers:         getEnvAsInt("SCHEDULER_WORKERS", 4),
			TickInterval:    getEnvAsDuration("SCHEDULER_TICK_INTERVAL", time.Second),
			MaxHistory:      getEnvAsInt("SCHEDULER_MAX_HISTORY", 100),
			ShutdownTimeout: getEnvAsDuration("SCHEDULER_SHUTDOWN_TIMEOUT", 5*time.Second),
			Timezone:        getEnv("SCHEDULER_TIMEZONE", ""),
		},
		Jobs: JobsConfig{
			ProcessInterval: getEnvAsDuration("PROCESS_INTERVAL", time.Hour),
			RetryAttempts:   getEnvAsInt("RETRY_ATTEMPTS", 3),
			RetryDelay:      getEnvAsDuration("RETRY_DELAY", 5*time.Minute),
			DataEndpoint:    getEnv("DATA_ENDPOINT", "/data"),
			RetentionDays:   getEnvAsInt("RETENTION_DAYS", 90),
		},
		Reporting: ReportingConfig{
			OutputDir:     getEnv("REPORT_OUTPUT_DIR", "./reports"),
			DefaultFormat: getEnv("REPORT_FORMAT", "csv"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func (c *Config) DatabaseURL() string {
	// If DATABASE_URL is set, use it directly
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		return databaseURL
	}

	// Otherwise, construct from individual components
	return "postgres://" + c.Database.User + ":" + c.Database.Password +
		"@" + c.Database.Host + ":" + c.Database.Port +
		"/" + c.Database.DBName + "?sslmode=" + c.Database.SSLMode
}

// TimezoneLocation resolves the configured scheduler timezone, falling
// back to the local zone when unset or invalid.
func (c *Config) TimezoneLocation() *time.Location {
	if c.Scheduler.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
