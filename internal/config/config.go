package config

import (
	"os"
	"strconv"
	"strings"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
// PublicBaseURL, when set, replaces the endpoint URL in public links
// (e.g. a CDN or reverse proxy in front of the bucket). PublicRead grants
// anonymous reads under PublicPrefix at startup.
type MinIOConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
	PublicRead    bool
	PublicPrefix  string
}

// CardConfig holds the card document pipeline settings.
type CardConfig struct {
	// RegistryFile is an optional YAML file describing templates and layouts.
	// The built-in tier table is used when empty.
	RegistryFile string
	// TemplateDir is the directory template image paths are resolved against.
	TemplateDir string
	// PathPrefix is prepended to every stored card document key.
	PathPrefix string
	// PrefixPolicy decides what happens to card types without a tier: "strict" or "fallback".
	PrefixPolicy string
	// MaxAllocationAttempts caps card number draws before giving up.
	MaxAllocationAttempts int
	// VerifyURLBase enables the verification QR code when the layout asks for one.
	VerifyURLBase string
}

// AuthConfig holds bearer token settings. An empty JWTSecret disables the guard.
type AuthConfig struct {
	JWTSecret    string
	RequiredRole string
}

// NATSConfig holds event bus settings. An empty URL disables publishing.
type NATSConfig struct {
	URL     string
	Token   string
	Subject string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost        string
	Port           string
	AutoMigrate    bool
	RateLimit      int
	AllowedOrigins string
	Database       DatabaseConfig
	MinIO          MinIOConfig
	Card           CardConfig
	Auth           AuthConfig
	NATS           NATSConfig
	Log            LogConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:        getEnv("APP_HOST", "localhost:3007"),
		Port:           getEnv("PORT", "3007"),
		AutoMigrate:    getEnvBool("DB_AUTO_MIGRATE", true),
		RateLimit:      getEnvInt("RATE_LIMIT", 120),
		AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:      getEnv("MINIO_ENDPOINT", ""),
			AccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:     getEnv("MINIO_SECRET_KEY", ""),
			Bucket:        getEnv("MINIO_BUCKET", "elite-cards"),
			UseSSL:        getEnvBool("MINIO_USE_SSL", false),
			PublicBaseURL: strings.TrimRight(getEnv("MINIO_PUBLIC_BASE_URL", ""), "/"),
			PublicRead:    getEnvBool("MINIO_PUBLIC_READ", false),
			PublicPrefix:  getEnv("MINIO_PUBLIC_PREFIX", getEnv("CARD_PATH_PREFIX", "cards/")),
		},
		Card: CardConfig{
			RegistryFile:          getEnv("CARD_REGISTRY_FILE", ""),
			TemplateDir:           getEnv("CARD_TEMPLATE_DIR", "templates"),
			PathPrefix:            getEnv("CARD_PATH_PREFIX", "cards/"),
			PrefixPolicy:          getEnv("CARD_PREFIX_POLICY", "fallback"),
			MaxAllocationAttempts: getEnvInt("CARD_MAX_ALLOCATION_ATTEMPTS", 50),
			VerifyURLBase:         getEnv("CARD_VERIFY_URL_BASE", ""),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("SECRET_KEY", ""),
			RequiredRole: getEnv("AUTH_REQUIRED_ROLE", "financial"),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", ""),
			Token:   getEnv("NATS_TOKEN", ""),
			Subject: getEnv("NATS_CARD_SUBJECT", "card.generated"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
