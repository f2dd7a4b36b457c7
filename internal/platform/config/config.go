package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr               string
	DatabaseURL        string
	JWTSecret          string
	Environment        string
	FrontendDir        string
	TemplateDir        string
	GeneratedDir       string
	MigrationsDir      string
	SeedAdminEmail     string
	SeedAdminPassword  string
	EmailFrom          string
	EmailEnabled       bool
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPassword       string
	SMTPUseTLS         bool
	RunMigrations      bool
	RunSeed            bool
	MaxBodyBytes       int64
	RateLimitPerMinute int
	MetricsEnabled     bool

	ESign ESignConfig
}

// ESignConfig holds the signing provider credentials. PrivateKey is the
// PEM-encoded RSA key used for the JWT grant; leave it empty to allow
// only the authorization-code flow.
type ESignConfig struct {
	BaseURL        string
	OAuthBaseURL   string
	IntegrationKey string
	Secret         string
	UserID         string
	PrivateKey     string
	RedirectURI    string
	HTTPTimeout    time.Duration
	SessionTTL     time.Duration
	SessionLimit   int
}

func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:               getEnv("APP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		Environment:        getEnv("APP_ENV", "development"),
		FrontendDir:        getEnv("FRONTEND_DIR", "frontend/dist"),
		TemplateDir:        getEnv("TEMPLATE_DIR", "storage/templates"),
		GeneratedDir:       getEnv("GENERATED_DIR", "storage/generated"),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", "migrations"),
		SeedAdminEmail:     getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword:  getEnv("SEED_ADMIN_PASSWORD", ""),
		EmailFrom:          getEnv("EMAIL_FROM", "no-reply@example.com"),
		EmailEnabled:       getEnvBool("EMAIL_ENABLED", false),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnvInt("SMTP_PORT", 587),
		SMTPUser:           getEnv("SMTP_USER", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:         getEnvBool("SMTP_USE_TLS", true),
		RunMigrations:      getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:            getEnvBool("RUN_SEED", true),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 10485760)),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		ESign: ESignConfig{
			BaseURL:        getEnv("ESIGN_BASE_URL", "https://demo.docusign.net"),
			OAuthBaseURL:   getEnv("ESIGN_OAUTH_BASE_URL", "https://account-d.docusign.com"),
			IntegrationKey: getEnv("ESIGN_INTEGRATION_KEY", ""),
			Secret:         getEnv("ESIGN_SECRET", ""),
			UserID:         getEnv("ESIGN_USER_ID", ""),
			PrivateKey:     getEnv("ESIGN_PRIVATE_KEY", ""),
			RedirectURI:    getEnv("ESIGN_REDIRECT_URI", ""),
			HTTPTimeout:    getEnvDuration("ESIGN_HTTP_TIMEOUT", 30*time.Second),
			SessionTTL:     getEnvDuration("ESIGN_SESSION_TTL", 8*time.Hour),
			SessionLimit:   getEnvInt("ESIGN_SESSION_LIMIT", 256),
		},
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be changed or RUN_SEED disabled in production")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	if c.ESign.PrivateKey != "" && c.ESign.UserID == "" {
		return fmt.Errorf("ESIGN_USER_ID is required when ESIGN_PRIVATE_KEY is set")
	}
	return nil
}
