package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"storefront/internal/logging"
)

var AppEnv Config

type Config struct {
	MongoURI        string
	DBName          string
	Port            string
	JWTSecret       string
	SessionTTL      time.Duration
	IdentitySecret  string
	IdentityIssuer  string
	EmailAPIURL     string
	EmailAPIKey     string
	EmailFrom       string
	FallbackEmail   string
	SiteURL         string
	UploadDir       string
	UploadBaseURL   string
	StaticDir       string
	CORSOrigins     []string
	LogLevel        string
	LogFormat       string
	StrictStatus    bool
	UseTransactions bool
	RateLimitRPS    int
	RateLimitBurst  int
	MaxUploadImages int
}

func Load() {
	if err := godotenv.Load(); err != nil {
		logging.Component("config").WithError(err).Info(".env not loaded")
	}
	AppEnv = FromEnv()
}

// FromEnv reads the configuration without touching .env files.
func FromEnv() Config {
	return Config{
		MongoURI:        getEnvOrDefault("MONGO_URI", ""),
		DBName:          getEnvOrDefault("DB_NAME", "storefront"),
		Port:            getEnvOrDefault("PORT", "8080"),
		JWTSecret:       getEnvOrDefault("JWT_SECRET", ""),
		SessionTTL:      getDurationEnv("SESSION_TTL", 720, time.Minute),
		IdentitySecret:  getEnvOrDefault("IDENTITY_SECRET", ""),
		IdentityIssuer:  getEnvOrDefault("IDENTITY_ISSUER", ""),
		EmailAPIURL:     getEnvOrDefault("EMAIL_API_URL", "https://api.resend.com/emails"),
		EmailAPIKey:     getEnvOrDefault("EMAIL_API_KEY", ""),
		EmailFrom:       getEnvOrDefault("EMAIL_FROM", "Storefront <no-reply@localhost>"),
		FallbackEmail:   getEnvOrDefault("FALLBACK_NOTIFY_EMAIL", "orders@localhost"),
		SiteURL:         strings.TrimSuffix(getEnvOrDefault("SITE_URL", "http://localhost:3000"), "/"),
		UploadDir:       getEnvOrDefault("UPLOAD_DIR", "./public/uploads"),
		UploadBaseURL:   strings.TrimSuffix(getEnvOrDefault("UPLOAD_BASE_URL", "/uploads"), "/"),
		StaticDir:       getEnvOrDefault("STATIC_DIR", "./out"),
		CORSOrigins:     getListEnv("CORS_ORIGINS", []string{"*"}),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       getEnvOrDefault("LOG_FORMAT", "json"),
		StrictStatus:    getBoolEnv("STRICT_RESERVATION_STATUS", true),
		UseTransactions: getBoolEnv("MONGO_TRANSACTIONS", true),
		RateLimitRPS:    getIntEnv("RATE_LIMIT_RPS", 2),
		RateLimitBurst:  getIntEnv("RATE_LIMIT_BURST", 5),
		MaxUploadImages: getIntEnv("MAX_UPLOAD_IMAGES", 8),
	}
}

// Validate reports every required value that is missing.
func (c Config) Validate() error {
	var errs []error
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IdentitySecret == "" {
		errs = append(errs, errors.New("IDENTITY_SECRET is required"))
	}
	return errors.Join(errs...)
}
