package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Server     ServerConfig
	OAuth      OAuthConfig
	Gemini     GeminiConfig
	Board      BoardConfig
	Log        LogConfig
	SelfHosted bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds JWT authentication settings.
type JWTConfig struct {
	Secret     string //nolint:gosec // G117: JWT signing secret config
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	WebDir       string
}

// OAuthConfig holds Google sign-in settings. Sign-in is disabled when
// ClientID is empty.
type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string //nolint:gosec // G117: OAuth client secret config
	GoogleRedirectURL  string
	SuccessURL         string
}

// GeminiConfig holds document analysis settings.
type GeminiConfig struct {
	APIKey            string //nolint:gosec // G117: API key config
	BaseURL           string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// BoardConfig holds board persistence timings.
type BoardConfig struct {
	SettleWindow time.Duration
	QuietPeriod  time.Duration
	WriteTimeout time.Duration
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("CAREBOARD_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("CAREBOARD_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("CAREBOARD_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	accessTTL, err := getEnvDuration("CAREBOARD_JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	refreshTTL, err := getEnvDuration("CAREBOARD_JWT_REFRESH_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("CAREBOARD_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	// Analysis requests upload whole documents and wait on the model.
	writeTimeout, err := getEnvDuration("CAREBOARD_SERVER_WRITE_TIMEOUT", 90*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	geminiTimeout, err := getEnvDuration("CAREBOARD_GEMINI_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	geminiRPS, err := getEnvFloat("CAREBOARD_GEMINI_RPS", 1)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	geminiBurst, err := getEnvInt("CAREBOARD_GEMINI_BURST", 3)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	settle, err := getEnvDuration("CAREBOARD_BOARD_SETTLE", time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	debounce, err := getEnvDuration("CAREBOARD_BOARD_DEBOUNCE", time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	boardWriteTimeout, err := getEnvDuration("CAREBOARD_BOARD_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	selfHosted, err := getEnvBool("CAREBOARD_SELF_HOSTED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("CAREBOARD_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("CAREBOARD_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("CAREBOARD_DB_USER", "careboard"),
			Password: getEnv("CAREBOARD_DB_PASSWORD", ""),
			DBName:   getEnv("CAREBOARD_DB_NAME", "careboard_dev"),
			SSLMode:  getEnv("CAREBOARD_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("CAREBOARD_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("CAREBOARD_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:     getEnv("CAREBOARD_JWT_SECRET", ""),
			AccessTTL:  accessTTL,
			RefreshTTL: refreshTTL,
		},
		Server: ServerConfig{
			Addr:         getEnv("CAREBOARD_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
			WebDir:       getEnv("CAREBOARD_WEB_DIR", ""),
		},
		OAuth: OAuthConfig{
			GoogleClientID:     getEnv("CAREBOARD_OAUTH_GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("CAREBOARD_OAUTH_GOOGLE_CLIENT_SECRET", ""),
			GoogleRedirectURL:  getEnv("CAREBOARD_OAUTH_GOOGLE_REDIRECT_URL", "http://localhost:8080/api/v1/auth/oauth/google/callback"),
			SuccessURL:         getEnv("CAREBOARD_OAUTH_SUCCESS_URL", "/"),
		},
		Gemini: GeminiConfig{
			APIKey:            getEnv("CAREBOARD_GEMINI_API_KEY", ""),
			BaseURL:           getEnv("CAREBOARD_GEMINI_BASE_URL", ""),
			Model:             getEnv("CAREBOARD_GEMINI_MODEL", ""),
			Timeout:           geminiTimeout,
			RequestsPerSecond: geminiRPS,
			Burst:             geminiBurst,
		},
		Board: BoardConfig{
			SettleWindow: settle,
			QuietPeriod:  debounce,
			WriteTimeout: boardWriteTimeout,
		},
		Log: LogConfig{
			Level:  getEnv("CAREBOARD_LOG_LEVEL", "info"),
			Format: getEnv("CAREBOARD_LOG_FORMAT", "json"),
		},
		SelfHosted: selfHosted,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("CAREBOARD_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("CAREBOARD_JWT_SECRET must be at least 32 characters")
	}

	// DB SSL mode warning for non-self-hosted deployments.
	if c.Database.SSLMode == "disable" && !c.SelfHosted {
		log.Warn().Msg("CAREBOARD_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}
	if c.Gemini.APIKey == "" {
		log.Warn().Msg("CAREBOARD_GEMINI_API_KEY is not set; document analysis is disabled")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("CAREBOARD_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("CAREBOARD_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("CAREBOARD_JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}
	if c.JWT.RefreshTTL <= 0 {
		return fmt.Errorf("CAREBOARD_JWT_REFRESH_TTL must be positive, got %s", c.JWT.RefreshTTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("CAREBOARD_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("CAREBOARD_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Gemini.Timeout <= 0 {
		return fmt.Errorf("CAREBOARD_GEMINI_TIMEOUT must be positive, got %s", c.Gemini.Timeout)
	}
	if c.Gemini.RequestsPerSecond < 0 {
		return fmt.Errorf("CAREBOARD_GEMINI_RPS must be >= 0, got %g", c.Gemini.RequestsPerSecond)
	}
	if c.Gemini.Burst < 1 {
		return fmt.Errorf("CAREBOARD_GEMINI_BURST must be >= 1, got %d", c.Gemini.Burst)
	}
	if c.Board.SettleWindow <= 0 {
		return fmt.Errorf("CAREBOARD_BOARD_SETTLE must be positive, got %s", c.Board.SettleWindow)
	}
	if c.Board.QuietPeriod <= 0 {
		return fmt.Errorf("CAREBOARD_BOARD_DEBOUNCE must be positive, got %s", c.Board.QuietPeriod)
	}
	if c.Board.WriteTimeout <= 0 {
		return fmt.Errorf("CAREBOARD_BOARD_WRITE_TIMEOUT must be positive, got %s", c.Board.WriteTimeout)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// OAuthEnabled reports whether Google sign-in is configured.
func (c *OAuthConfig) OAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
