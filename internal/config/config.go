// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// BrightDataConfig holds credentials for the Bright Data datasets API
type BrightDataConfig struct {
	APIKey    string
	DatasetID string
}

// DataForSEOConfig holds credentials for the DataForSEO LLM scraper API
type DataForSEOConfig struct {
	Login    string
	Password string
}

// MailgunConfig holds the email-service credentials and template names
type MailgunConfig struct {
	APIKey            string
	Domain            string
	FromAddress       string
	SubmittedTemplate string
	SucceededTemplate string
	FailedTemplate    string
}

// SchedulerConfig controls the nightly re-run scheduler
type SchedulerConfig struct {
	CronSchedule  string
	TestingMode   bool
	TestUserID    string
	TestProjectID string
}

type Config struct {
	Port               string
	Environment        string
	InngestEventKey    string
	InngestSigningKey  string
	AnthropicAPIKey    string
	DefaultOpenAIModel string
	AppURL             string
	UnsubscribeURL     string
	DatabaseURL        string
	Database           DatabaseConfig
	BrightData         BrightDataConfig
	DataForSEO         DataForSEOConfig
	Mailgun            MailgunConfig
	Scheduler          SchedulerConfig
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

func Load() *Config {
	config := &Config{
		Port:               getEnv("PORT", "8000"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		InngestEventKey:    os.Getenv("INNGEST_EVENT_KEY"),
		InngestSigningKey:  os.Getenv("INNGEST_SIGNING_KEY"),
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		DefaultOpenAIModel: getEnv("DEFAULT_OPENAI_MODEL", "gpt-4o-mini"),
		AppURL:             os.Getenv("APP_URL"),
		UnsubscribeURL:     os.Getenv("UNSUBSCRIBE_URL"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
	}

	dbConfig, err := parseDatabaseConfig()
	if err != nil {
		// If DATABASE_URL parsing fails, try individual env vars as fallback
		dbConfig = DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "pulse"),
			SSLMode:         getEnv("DB_SSLMODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 300),
		}
	}
	config.Database = dbConfig

	config.BrightData = BrightDataConfig{
		APIKey:    os.Getenv("BRIGHTDATA_API_KEY"),
		DatasetID: os.Getenv("BRIGHTDATA_DATASET_ID"),
	}
	config.DataForSEO = DataForSEOConfig{
		Login:    os.Getenv("DATAFORSEO_LOGIN"),
		Password: os.Getenv("DATAFORSEO_PASSWORD"),
	}
	config.Mailgun = MailgunConfig{
		APIKey:            os.Getenv("MAILGUN_API_KEY"),
		Domain:            os.Getenv("MAILGUN_DOMAIN"),
		FromAddress:       getEnv("MAILGUN_FROM", "Pulse <notifications@mail.promptpulse.io>"),
		SubmittedTemplate: getEnv("MAILGUN_TEMPLATE_SUBMITTED", "batch-submitted"),
		SucceededTemplate: getEnv("MAILGUN_TEMPLATE_SUCCEEDED", "batch-succeeded"),
		FailedTemplate:    getEnv("MAILGUN_TEMPLATE_FAILED", "batch-failed"),
	}
	config.Scheduler = SchedulerConfig{
		CronSchedule:  getEnv("NIGHTLY_CRON_SCHEDULE", "0 4 * * *"),
		TestingMode:   getEnvBool("TESTING_MODE", false),
		TestUserID:    os.Getenv("TEST_USER_ID"),
		TestProjectID: os.Getenv("TEST_PROJECT_ID"),
	}

	return config
}

func parseDatabaseConfig() (DatabaseConfig, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return DatabaseConfig{}, fmt.Errorf("DATABASE_URL not set")
	}

	parsedURL, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	config := DatabaseConfig{
		Host:            parsedURL.Hostname(),
		Port:            5432, // default
		User:            parsedURL.User.Username(),
		Name:            parsedURL.Path[1:], // remove leading slash
		SSLMode:         getEnv("DB_SSLMODE", "require"),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 25),
		ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 300),
	}

	if password, ok := parsedURL.User.Password(); ok {
		config.Password = password
	}

	if parsedURL.Port() != "" {
		if port, err := strconv.Atoi(parsedURL.Port()); err == nil {
			config.Port = port
		}
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
