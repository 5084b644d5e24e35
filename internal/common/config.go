package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all engine configuration
type Config struct {
	OCR       OCRConfig
	Remote    RemoteConfig
	Engine    EngineConfig
	Templates TemplateConfig
}

// OCRConfig holds recognition-related configuration
type OCRConfig struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Language  string // tesseract language pack, default "fra"
	DPI       int    // rasterization DPI for scanned pages, default 300
	MaxPages  int    // 0 = no limit
	Workers   int    // recognition worker pool size, default 3
	TessdataD string
}

// RemoteConfig holds the remote vision-extraction collaborator configuration
type RemoteConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// EngineConfig holds pipeline thresholds
type EngineConfig struct {
	AcceptThreshold    float64 // automatic acceptance, default 0.75
	PlausibleThreshold float64 // correction-form color coding only, default 0.60
}

// TemplateConfig holds the supplier template store configuration
type TemplateConfig struct {
	DBPath string // sqlite file; empty disables template lookups
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		OCR: OCRConfig{
			Pdftoppm:  getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Language:  getEnv("TESSERACT_LANG", "fra"),
			DPI:       getEnvAsInt("OCR_DPI", 300),
			MaxPages:  getEnvAsInt("OCR_MAX_PAGES", 0),
			Workers:   getEnvAsInt("OCR_WORKERS", 3),
			TessdataD: getEnv("TESSDATA_PREFIX", ""),
		},
		Remote: RemoteConfig{
			BaseURL:     getEnv("REMOTE_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      getEnv("REMOTE_API_KEY", ""),
			Model:       getEnv("REMOTE_MODEL", "gpt-4o-mini"),
			Temperature: getEnvAsFloat32("REMOTE_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("REMOTE_TIMEOUT", 45*time.Second),
		},
		Engine: EngineConfig{
			AcceptThreshold:    getEnvAsFloat64("ACCEPT_THRESHOLD", 0.75),
			PlausibleThreshold: getEnvAsFloat64("PLAUSIBLE_THRESHOLD", 0.60),
		},
		Templates: TemplateConfig{
			DBPath: getEnv("TEMPLATE_DB_PATH", ""),
		},
	}
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

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Engine.AcceptThreshold <= 0 || c.Engine.AcceptThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "ACCEPT_THRESHOLD must be in (0,1]", ErrInvalidInput)
	}
	if c.OCR.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}
