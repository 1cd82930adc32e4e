package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultDatastoreURL is the IATI Datastore activity search endpoint.
const DefaultDatastoreURL = "https://api.iatistandard.org/datastore/activity/select"

// Duplicate handling for activities that share an identifier within one run.
const (
	DuplicateKeepFirst = "first"
	DuplicateKeepLast  = "last"
)

// Config holds all application configuration.
type Config struct {
	// Harvest
	APIKey          string        `json:"api_key"`
	DatastoreURL    string        `json:"datastore_url" validate:"required,url"`
	OutputDir       string        `json:"output_dir" validate:"required"`
	PageSize        int           `json:"page_size" validate:"min=1,max=1000"`
	PageDelay       time.Duration `json:"page_delay" validate:"min=0"`
	HTTPTimeout     time.Duration `json:"http_timeout" validate:"gt=0"`
	MaxPages        int           `json:"max_pages" validate:"min=0"`
	DuplicatePolicy string        `json:"duplicate_policy" validate:"oneof=first last"`
	CleanOutput     bool          `json:"clean_output"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format" validate:"oneof=pretty json auto"`

	// Optional stores. Empty URLs disable the matching store.
	DatabaseURL string `json:"database_url"`
	MaxDBConns  int32  `json:"max_db_conns" validate:"min=1"`
	RedisURL    string `json:"redis_url"`
	// KafkaBrokers enables publishing included activities to KafkaTopic.
	KafkaBrokers []string `json:"kafka_brokers"`
	KafkaTopic   string   `json:"kafka_topic" validate:"required"`
	// MetricsPushURL is a Prometheus Pushgateway receiving harvest metrics.
	MetricsPushURL string `json:"metrics_push_url" validate:"omitempty,url"`

	// Read API
	ServerPort string `json:"server_port" validate:"required,numeric"`
	GinMode    string `json:"gin_mode" validate:"oneof=debug release test"`
	// AllowedOrigins controls HTTP CORS for the read API.
	// Empty slice means all origins are permitted.
	AllowedOrigins []string `json:"allowed_origins"`
	// RequestsPerMinute is the per-IP budget for the read API.
	RequestsPerMinute int `json:"requests_per_minute" validate:"min=1"`
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		APIKey:          strings.TrimSpace(os.Getenv("API_KEY")),
		DatastoreURL:    getEnv("DATASTORE_URL", DefaultDatastoreURL),
		OutputDir:       getEnv("OUTPUT_DIR", "./out"),
		PageSize:        getEnvInt("PAGE_SIZE", 1000),
		PageDelay:       time.Duration(getEnvInt("PAGE_DELAY_MS", 1000)) * time.Millisecond,
		HTTPTimeout:     time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 60)) * time.Second,
		MaxPages:        getEnvInt("MAX_PAGES", 0),
		DuplicatePolicy: strings.ToLower(getEnv("DUPLICATE_POLICY", DuplicateKeepLast)),
		CleanOutput:     getEnvBool("CLEAN_OUTPUT", false),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "pretty"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		MaxDBConns:  int32(getEnvInt("MAX_DB_CONNS", 4)),
		RedisURL:    getEnv("REDIS_URL", ""),

		KafkaBrokers:   parseList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "iati.activities"),
		MetricsPushURL: getEnv("METRICS_PUSHGATEWAY_URL", ""),

		ServerPort:        getEnv("SERVER_PORT", "8080"),
		GinMode:           getEnv("GIN_MODE", "release"),
		AllowedOrigins:    parseList(getEnv("ALLOWED_ORIGINS", "")),
		RequestsPerMinute: getEnvInt("REQUESTS_PER_MINUTE", 120),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// parseList splits a comma-separated string into a trimmed slice.
// Returns nil if the input is empty; for origins that means allow-all.
func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
