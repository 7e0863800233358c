package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Host        string
	APIPort     string
	Environment string
	LogLevel    string

	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	DatabaseURL       string
	DBConnectAttempts int
	DBConnectBackoff  time.Duration
	DBAcquireTimeout  time.Duration
	DBMaxOpenConns    int

	UploadDir          string
	MaxUploadSize      int64
	CanonicalLawDomain string

	AdminSessionTTL    time.Duration
	UploaderSessionTTL time.Duration

	CORSOrigins    []string
	TrustedProxies []string

	RetentionMonths       int
	LoginMaxAttempts      int
	SubmissionMaxAttempts int

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int
	MaxConnections    int

	JanitorEnabled  bool
	JanitorInterval time.Duration
	DraftMaxAge     time.Duration

	NATSURL     string
	NATSSubject string

	AdminUsername string
	AdminPassword string
	AdminEmail    string

	WorkerMetricsPort string
}

// IsProduction gates Secure cookies, HSTS and the strict CORS allow-list.
func (c Config) IsProduction() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "production", "prod":
		return true
	default:
		return false
	}
}

func (c Config) ListenAddr() string {
	return c.Host + ":" + c.APIPort
}

// Load reads the environment. When CONFIG_FILE names a YAML file its keys act as
// defaults and environment variables still win.
func Load() Config {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFileDefaults(path); err != nil {
			slog.Warn("config_file_ignored", "path", path, "error", err)
		}
	}

	dataPath := mustEnv("DATA_PATH", "./data")

	return Config{
		Host:        mustEnv("HOST", "0.0.0.0"),
		APIPort:     mustEnv("PORT", "8000"),
		Environment: mustEnv("ENVIRONMENT", "development"),
		LogLevel:    mustEnv("LOG_LEVEL", "info"),

		LogFile:       mustEnv("LOG_FILE", ""),
		LogMaxSizeMB:  mustEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: mustEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: mustEnvInt("LOG_MAX_AGE_DAYS", 14),

		DatabaseURL:       databaseURL(),
		DBConnectAttempts: mustEnvInt("DB_CONNECT_ATTEMPTS", 5),
		DBConnectBackoff:  mustEnvDuration("DB_CONNECT_BACKOFF", 2*time.Second),
		DBAcquireTimeout:  mustEnvDuration("DB_ACQUIRE_TIMEOUT", 5*time.Second),
		DBMaxOpenConns:    mustEnvInt("DB_MAX_OPEN_CONNS", 20),

		UploadDir:          mustEnv("UPLOAD_DIR", filepath.Join(dataPath, "uploads")),
		MaxUploadSize:      int64(mustEnvInt("MAX_UPLOAD_SIZE", 50*1024*1024)),
		CanonicalLawDomain: mustEnv("CANONICAL_LAW_DOMAIN", "wetten.overheid.nl"),

		AdminSessionTTL:    time.Duration(mustEnvInt("ADMIN_SESSION_HOURS", 8)) * time.Hour,
		UploaderSessionTTL: time.Duration(mustEnvInt("UPLOADER_SESSION_HOURS", 4)) * time.Hour,

		CORSOrigins:    mustEnvList("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		TrustedProxies: mustEnvList("TRUSTED_PROXIES", nil),

		RetentionMonths:       mustEnvInt("RETENTION_MONTHS", 12),
		LoginMaxAttempts:      mustEnvInt("LOGIN_MAX_ATTEMPTS", 10),
		SubmissionMaxAttempts: mustEnvInt("SUBMISSION_MAX_ATTEMPTS", 20),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:    mustEnvInt("API_MAX_INFLIGHT", 64),
		MaxConnections:    mustEnvInt("MAX_CONNECTIONS", 512),

		JanitorEnabled:  mustEnvBool("JANITOR_ENABLED", true),
		JanitorInterval: mustEnvDuration("JANITOR_INTERVAL", time.Hour),
		DraftMaxAge:     mustEnvDuration("DRAFT_MAX_AGE", time.Hour),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "submission.forwarded"),

		AdminUsername: mustEnv("ADMIN_USERNAME", ""),
		AdminPassword: mustEnv("ADMIN_PASSWORD", ""),
		AdminEmail:    mustEnv("ADMIN_EMAIL", ""),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

// databaseURL prefers DATABASE_URL, then DATABASE_SERVER_FULL, then the split
// DATABASE_SERVER_* variables.
func databaseURL() string {
	if v := mustEnv("DATABASE_URL", ""); v != "" {
		return v
	}
	if v := mustEnv("DATABASE_SERVER_FULL", ""); v != "" {
		return v
	}
	host := mustEnv("DATABASE_SERVER_HOST", "localhost")
	port := mustEnv("DATABASE_SERVER_PORT", "5432")
	user := mustEnv("DATABASE_SERVER_USER", "postgres")
	password := mustEnv("DATABASE_PASSWORD", "postgres")
	db := mustEnv("DATABASE_DB", "regelrecht_upload")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     host + ":" + port,
		Path:     "/" + db,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// applyFileDefaults sets every key from the YAML file that is not already in the environment.
func applyFileDefaults(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	for key, value := range values {
		envKey := strings.ToUpper(strings.TrimSpace(key))
		if envKey == "" {
			continue
		}
		if _, set := os.LookupEnv(envKey); set {
			continue
		}
		if err := os.Setenv(envKey, yamlScalar(value)); err != nil {
			return fmt.Errorf("apply %s: %w", envKey, err)
		}
	}
	return nil
}

func yamlScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
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

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go durations ("90m") or a bare number of seconds.
func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// mustEnvList splits a comma separated value, dropping empty entries.
func mustEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
