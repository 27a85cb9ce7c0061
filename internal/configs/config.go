package configs

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// RabbitMQConfig holds the RabbitMQ settings.
type RabbitMQConfig struct {
	URL string
}

// DBconfig holds the database settings.
type DBconfig struct {
	URL string
}

// RESTconfig holds the ops HTTP server settings.
type RESTconfig struct {
	Port string
}

type StdoutLogConfig struct {
	Level string // defaults to debug
}

type FluentBitConfig struct {
	Host    string
	Port    int
	Enabled bool
	Level   string // defaults to info
}

// ScrapeConfig holds the run tuning knobs. Targets may stay empty when
// runs arrive only through the task queue.
type ScrapeConfig struct {
	TargetURLs   []string
	Quota        int
	MaxPages     int
	Concurrency  int
	FetchDetails bool
	RequestDelay time.Duration
	RunOnStart   bool
}

// AppConfig holds the whole application configuration.
type AppConfig struct {
	AppName      string
	Database     DBconfig
	RabbitMQ     RabbitMQConfig
	Rest         RESTconfig
	FluentBit    FluentBitConfig
	StdoutLogger StdoutLogConfig
	Scrape       ScrapeConfig
}

// LoadConfig reads the configuration from environment variables, loading
// a .env file first when one is present.
func LoadConfig(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath[0])
	} else {
		err = godotenv.Load()
	}

	if err != nil {
		log.Printf("Info: Could not load .env file (path: %v): %v. Proceeding with process environment.\n", envPath, err)
	}

	cfg := &AppConfig{}

	cfg.AppName = os.Getenv("APP_NAME")
	if cfg.AppName == "" {
		cfg.AppName = "estate-parser-service"
	}

	cfg.Database.URL = os.Getenv("DATABASE_URL")
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL environment variable is required")
	}

	cfg.Rest.Port = getEnvAsString("HTTP_PORT", "8080")

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}

		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
	}

	cfg.StdoutLogger.Level = getEnvAsString("STDOUT_LOG_LEVEL", "debug")

	cfg.Scrape.TargetURLs = splitAndTrim(getEnvAsString("SCRAPE_TARGET_URLS", ""))
	cfg.Scrape.Quota = getEnvAsInt("SCRAPE_QUOTA", 100)
	cfg.Scrape.MaxPages = getEnvAsInt("SCRAPE_MAX_PAGES", 5)
	cfg.Scrape.Concurrency = getEnvAsInt("SCRAPE_CONCURRENCY", 4)
	cfg.Scrape.FetchDetails = getEnvAsBool("SCRAPE_FETCH_DETAILS", false)
	cfg.Scrape.RequestDelay = time.Duration(getEnvAsInt("SCRAPE_REQUEST_DELAY_MS", 2000)) * time.Millisecond
	cfg.Scrape.RunOnStart = getEnvAsBool("RUN_ON_START", false)

	if cfg.Scrape.RunOnStart && len(cfg.Scrape.TargetURLs) == 0 {
		return nil, fmt.Errorf("RUN_ON_START is true but SCRAPE_TARGET_URLS is empty")
	}

	return cfg, nil
}

// splitAndTrim turns a comma-separated list into clean entries, dropping
// empty ones.
func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnvAsString reads an environment variable or returns the default.
func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as int or returns the default.
// Logs a warning when the variable exists but does not parse.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

// getEnvAsBool reads an environment variable as bool or returns the default.
func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}
