package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Polling  PollingConfig
	Monitor  MonitorConfig
	Analysis AnalysisConfig
	Alerts   AlertsConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AWS      AWSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// BackendConfig points at the recorder backend (status, tasks, recordings).
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// PollingConfig controls the status and task refresh loops.
type PollingConfig struct {
	Interval time.Duration
}

// MonitorConfig controls per-stream sessions.
type MonitorConfig struct {
	TranscriptInterval time.Duration
	AnalysisInterval   time.Duration
	AnalysisTimeout    time.Duration
}

// AnalysisConfig holds LLM credentials. An empty APIKey selects the demo analyzer.
type AnalysisConfig struct {
	APIKey        string
	Model         string
	BaseURL       string // optional, for OpenAI-compatible endpoints
	RatePerMinute int
}

// AlertsConfig controls when an analysis is archived as a risk alert.
type AlertsConfig struct {
	RiskThreshold int
}

// DatabaseConfig holds PostgreSQL connection settings. Empty URL disables the alert archive.
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis connection settings. Empty Addr disables the event bridge and job queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AWSConfig holds AWS credentials and S3 bucket names. Empty Region disables S3.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ReportsBucket        string
	RecordingsBucket     string
	PresignExpireMinutes int
}

// Enabled reports whether an archive database is configured.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// Enabled reports whether S3 is configured.
func (c AWSConfig) Enabled() bool { return c.Region != "" }

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	apiKey := getEnv("OPENAI_API_KEY", "")
	if apiKey == "" {
		apiKey = getEnv("API_KEY", "")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 60),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(getEnv("BACKEND_BASE_URL", "http://127.0.0.1:8000/api"), "/"),
			Timeout: getEnvDuration("BACKEND_TIMEOUT", 5*time.Second),
		},
		Polling: PollingConfig{
			Interval: getEnvDuration("POLL_INTERVAL", 5*time.Second),
		},
		Monitor: MonitorConfig{
			TranscriptInterval: getEnvDuration("TRANSCRIPT_INTERVAL", 2*time.Second),
			AnalysisInterval:   getEnvDuration("ANALYSIS_INTERVAL", 15*time.Second),
			AnalysisTimeout:    getEnvDuration("ANALYSIS_TIMEOUT", 30*time.Second),
		},
		Analysis: AnalysisConfig{
			APIKey:        apiKey,
			Model:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL:       getEnv("OPENAI_BASE_URL", ""),
			RatePerMinute: getEnvInt("ANALYSIS_RATE_PER_MIN", 20),
		},
		Alerts: AlertsConfig{
			RiskThreshold: getEnvInt("RISK_ALERT_THRESHOLD", 70),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ReportsBucket:        getEnv("AWS_S3_REPORTS_BUCKET", "finstream-session-reports"),
			RecordingsBucket:     getEnv("AWS_S3_RECORDINGS_BUCKET", "finstream-recordings"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Polling.Interval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.Monitor.TranscriptInterval <= 0 || c.Monitor.AnalysisInterval <= 0 {
		return fmt.Errorf("TRANSCRIPT_INTERVAL and ANALYSIS_INTERVAL must be positive")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL is required")
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("5s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
