package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Hyllesen/scamvenge-telegram-bot/internal/analyzer"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/matcher"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/ocr"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/strategy"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	EngineTesseract = "tesseract"
	EngineVision    = "vision"

	LockMemory = "memory"
	LockRedis  = "redis"

	MetricHeight = "height"
	MetricArea   = "area"
)

// Config holds every runtime setting. Heuristic thresholds live here rather
// than in the code that uses them so tests and deployments can tune them.
type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	MaxRequestBodySize int64

	// Screenshot heuristics
	QualifyingKeywords  []string
	UIKeywords          []string
	MinTokenLength      int
	SizeMetric          string
	SimilarityThreshold int
	IgnorePunctuation   bool

	// Store
	DatabaseDriver string
	DatabaseDSN    string
	StoreTimeout   time.Duration

	// OCR
	OCREngine    string
	OCRLanguage  string
	CropTopRatio float64
	MinOCRWidth  int

	// Critical-section lock
	LockBackend   string
	RedisAddr     string
	RedisPassword string
	LockTTL       time.Duration

	// Azure Blob image source, enabled when both are set
	AzureAccountName string
	AzureAccountKey  string

	// Intake
	WatchDir     string
	WatchWorkers int
	TestMode     bool

	LogLevel  string
	LogFormat string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether Azure Blob credentials were supplied.
func (c *Config) AzureEnabled() bool {
	return c.AzureAccountName != "" && c.AzureAccountKey != ""
}

// ExtractionOptions projects the screenshot heuristics.
func (c *Config) ExtractionOptions() (analyzer.Options, error) {
	size, err := strategy.ForMetric(c.SizeMetric)
	if err != nil {
		return analyzer.Options{}, err
	}
	return analyzer.DefaultOptions().
		WithKeywords(c.QualifyingKeywords...).
		WithUIKeywords(c.UIKeywords...).
		WithMinTokenLength(c.MinTokenLength).
		WithSizeStrategy(size), nil
}

// MatchOptions projects the duplicate matcher settings.
func (c *Config) MatchOptions() matcher.Options {
	return matcher.DefaultOptions().
		WithThreshold(c.SimilarityThreshold).
		WithIgnorePunctuation(c.IgnorePunctuation)
}

// PreprocessOptions projects the OCR image preparation settings.
func (c *Config) PreprocessOptions() ocr.PreprocessOptions {
	opts := ocr.DefaultPreprocessOptions()
	opts.CropTopRatio = c.CropTopRatio
	opts.MinWidth = c.MinOCRWidth
	return opts
}

func LoadFromEnv() (*Config, error) {
	// Set defaults
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB

		QualifyingKeywords:  parseListOrDefault("QUALIFYING_KEYWORDS", []string{"following", "sold", "items"}),
		UIKeywords:          parseListOrDefault("UI_KEYWORDS", []string{"follow", "message", "share", "more"}),
		MinTokenLength:      int(parseIntOrDefault("MIN_TOKEN_LENGTH", 2)),
		SizeMetric:          strings.ToLower(getEnvOrDefault("SIZE_METRIC", MetricHeight)),
		SimilarityThreshold: int(parseIntOrDefault("SIMILARITY_THRESHOLD", 90)),
		IgnorePunctuation:   parseBoolOrDefault("IGNORE_PUNCTUATION", false),

		DatabaseDriver: strings.ToLower(getEnvOrDefault("DATABASE_DRIVER", DriverSQLite)),
		DatabaseDSN:    getEnvOrDefault("DATABASE_DSN", "./data/stores.db"),
		StoreTimeout:   parseDurationOrDefault("STORE_TIMEOUT", 5*time.Second),

		OCREngine:    strings.ToLower(getEnvOrDefault("OCR_ENGINE", EngineTesseract)),
		OCRLanguage:  getEnvOrDefault("OCR_LANGUAGE", "eng"),
		CropTopRatio: parseFloatOrDefault("CROP_TOP_RATIO", 0),
		MinOCRWidth:  int(parseIntOrDefault("MIN_OCR_WIDTH", 1000)),

		LockBackend:   strings.ToLower(getEnvOrDefault("LOCK_BACKEND", LockMemory)),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		LockTTL:       parseDurationOrDefault("LOCK_TTL", 15*time.Second),

		AzureAccountName: os.Getenv("AZURE_ACCOUNT_NAME"),
		AzureAccountKey:  os.Getenv("AZURE_ACCOUNT_KEY"),

		WatchDir:     getEnvOrDefault("WATCH_DIR", "./temp"),
		WatchWorkers: int(parseIntOrDefault("WATCH_WORKERS", 2)),
		TestMode:     parseBoolOrDefault("TEST_MODE", false),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.StoreTimeout <= 0 || c.LockTTL <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, store=%s, lock=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.StoreTimeout, c.LockTTL)
	}
	// Registration makes two store calls while holding the lock.
	if c.LockTTL <= 2*c.StoreTimeout {
		return fmt.Errorf("LOCK_TTL must exceed twice STORE_TIMEOUT (got lock=%s, store=%s)", c.LockTTL, c.StoreTimeout)
	}
	if len(c.QualifyingKeywords) == 0 {
		return fmt.Errorf("QUALIFYING_KEYWORDS must not be empty")
	}
	if c.MinTokenLength < 1 {
		return fmt.Errorf("MIN_TOKEN_LENGTH must be >= 1 (got %d)", c.MinTokenLength)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 100 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be within 0..100 (got %d)", c.SimilarityThreshold)
	}
	if c.CropTopRatio < 0 || c.CropTopRatio >= 1 {
		return fmt.Errorf("CROP_TOP_RATIO must be within [0,1) (got %g)", c.CropTopRatio)
	}
	if c.WatchWorkers < 1 {
		return fmt.Errorf("WATCH_WORKERS must be >= 1 (got %d)", c.WatchWorkers)
	}
	if err := oneOf("SIZE_METRIC", c.SizeMetric, MetricHeight, MetricArea); err != nil {
		return err
	}
	if err := oneOf("DATABASE_DRIVER", c.DatabaseDriver, DriverSQLite, DriverPostgres); err != nil {
		return err
	}
	if err := oneOf("OCR_ENGINE", c.OCREngine, EngineTesseract, EngineVision); err != nil {
		return err
	}
	if err := oneOf("LOCK_BACKEND", c.LockBackend, LockMemory, LockRedis); err != nil {
		return err
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("DATABASE_DSN must not be empty")
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %q (allowed: %s)", key, value, strings.Join(allowed, ", "))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}

// parseListOrDefault reads a comma-separated list, dropping blanks.
func parseListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
