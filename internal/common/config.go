package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Raster   RasterConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Dispatch DispatchConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// RasterConfig holds rasterization configuration
type RasterConfig struct {
	Pdftoppm string
	DPI      int
}

// OCRConfig holds digit-OCR fallback configuration
type OCRConfig struct {
	TessdataDir string
}

// LLMConfig holds extraction-service configuration
type LLMConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// DispatchConfig holds directory/dispatch API configuration
type DispatchConfig struct {
	BaseURL           string
	BearerToken       string
	Timeout           time.Duration
	TenantID          int
	AllowCreate       bool
	DefaultPayerIK    string
	DefaultApproachMn int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Raster: RasterConfig{
			Pdftoppm: getEnv("PDFTOPPM_BIN", "pdftoppm"),
			DPI:      getEnvAsInt("RASTER_DPI", 250),
		},
		OCR: OCRConfig{
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
		},
		LLM: LLMConfig{
			Model:       getEnv("OPENAI_MODEL", "gpt-4o"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", ""),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 120*time.Second),
		},
		Dispatch: DispatchConfig{
			BaseURL:           getEnv("DISPATCH_BASE_URL", "https://abc-drive.dispolive.de/"),
			BearerToken:       getEnv("DISPATCH_BEARER_TOKEN", ""),
			Timeout:           getEnvAsDuration("DISPATCH_TIMEOUT", 10*time.Second),
			TenantID:          getEnvAsInt("DISPATCH_TENANT_ID", 0),
			AllowCreate:       getEnvAsBool("DISPATCH_ALLOW_CREATE_INSTITUTION", false),
			DefaultPayerIK:    getEnv("DISPATCH_DEFAULT_PAYER_IK", ""),
			DefaultApproachMn: getEnvAsInt("DISPATCH_APPROACH_MINUTES", 5),
		},
	}
}

// ValidatePipeline validates the configuration the extraction pipeline needs.
// The extraction API key is checked before any network call is attempted.
func (c *Config) ValidatePipeline() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrConfiguration)
	}
	return nil
}

// ValidateDispatch validates the configuration the payload builder needs.
func (c *Config) ValidateDispatch() error {
	if c.Dispatch.BearerToken == "" {
		return NewAppError("CONFIG_ERROR", "DISPATCH_BEARER_TOKEN is required", ErrConfiguration)
	}
	return nil
}

// ValidateDatabase validates the store configuration.
func (c *Config) ValidateDatabase() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrConfiguration)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
