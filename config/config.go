package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Version    string
	Database   DatabaseConfig
	Dirs       DirConfig
	Dates      DateConfig
	API        APIConfig
	Processing ProcessingConfig
	Zoom       ZoomConfig
	AWS        AWSConfig

	// FileExtensions maps a lowercased file_type to the extension used on disk.
	FileExtensions map[string]string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string
}

// DirConfig holds local filesystem layout settings.
type DirConfig struct {
	BaseDir string // recordings land under {BaseDir}_{version}/{data_type}/{user_email}/
}

// DateConfig holds the backup window and the completeness audit window.
type DateConfig struct {
	StartDate time.Time
	AuditFrom time.Time
	AuditTo   time.Time
}

// APIConfig holds Zoom API tuning: page sizes, retry budget, and sleep durations.
type APIConfig struct {
	PageSizeRecordings int
	PageSizePhone      int
	PageSizeUsers      int
	Retries            int
	RateLimitDelay     time.Duration // pacing before every request
	RetryDelay         time.Duration // between failed attempts
	RateLimitSleep     time.Duration // after a 429
	TokenRefreshSleep  time.Duration // after a 401-triggered refresh
	DownloadRetryDelay time.Duration
	RequestTimeout     time.Duration
	DownloadTimeout    time.Duration
	TokenRefreshBuffer time.Duration // refresh this long before the token actually expires
}

// ProcessingConfig holds discovery walk settings.
type ProcessingConfig struct {
	MonthsPerRange int
	BackupWebinars bool
}

// ZoomConfig holds Server-to-Server OAuth credentials.
type ZoomConfig struct {
	AccountID    string
	ClientID     string
	ClientSecret string
}

// AWSConfig holds the optional S3 mirror settings. Empty MirrorBucket disables mirroring.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	MirrorBucket    string
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return c.URL
}

// RootDir returns the effective backup root: base dir suffixed with the schema version.
func (c *Config) RootDir() string {
	return c.Dirs.BaseDir + "_" + c.Version
}

// versionRe constrains the version tag since it is spliced into table names.
var versionRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	startDate, err := parseDate(getEnv("START_DATE", "2020-01-01"))
	if err != nil {
		return nil, fmt.Errorf("parse START_DATE: %w", err)
	}
	auditFrom, err := parseDate(getEnv("AUDIT_WINDOW_FROM", "2020-11-01"))
	if err != nil {
		return nil, fmt.Errorf("parse AUDIT_WINDOW_FROM: %w", err)
	}
	auditTo, err := parseDate(getEnv("AUDIT_WINDOW_TO", "2021-01-01"))
	if err != nil {
		return nil, fmt.Errorf("parse AUDIT_WINDOW_TO: %w", err)
	}

	cfg := &Config{
		Version: getEnv("BACKUP_VERSION", "v4"),
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "postgres://localhost:5432/zoom_backup?sslmode=disable"),
		},
		Dirs: DirConfig{
			BaseDir: getEnv("BASE_DIR", "./zoom_backup"),
		},
		Dates: DateConfig{
			StartDate: startDate,
			AuditFrom: auditFrom,
			AuditTo:   auditTo,
		},
		API: APIConfig{
			PageSizeRecordings: getEnvInt("PAGE_SIZE_RECORDINGS", 300),
			PageSizePhone:      getEnvInt("PAGE_SIZE_PHONE", 100),
			PageSizeUsers:      getEnvInt("PAGE_SIZE_USERS", 300),
			Retries:            getEnvInt("API_RETRIES", 3),
			RateLimitDelay:     getEnvDuration("RATE_LIMIT_DELAY_MS", 100, time.Millisecond),
			RetryDelay:         getEnvDuration("RETRY_DELAY_SEC", 5, time.Second),
			RateLimitSleep:     getEnvDuration("RATE_LIMIT_SLEEP_SEC", 60, time.Second),
			TokenRefreshSleep:  getEnvDuration("TOKEN_REFRESH_SLEEP_SEC", 2, time.Second),
			DownloadRetryDelay: getEnvDuration("DOWNLOAD_RETRY_DELAY_SEC", 60, time.Second),
			RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT_SEC", 30, time.Second),
			DownloadTimeout:    getEnvDuration("DOWNLOAD_TIMEOUT_SEC", 600, time.Second),
			TokenRefreshBuffer: getEnvDuration("TOKEN_REFRESH_BUFFER_SEC", 300, time.Second),
		},
		Processing: ProcessingConfig{
			MonthsPerRange: getEnvInt("MONTHS_PER_RANGE", 3),
			BackupWebinars: getEnvBool("BACKUP_WEBINARS", true),
		},
		Zoom: ZoomConfig{
			AccountID:    os.Getenv("ZOOM_ACCOUNT_ID"),
			ClientID:     os.Getenv("ZOOM_CLIENT_ID"),
			ClientSecret: os.Getenv("ZOOM_CLIENT_SECRET"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			MirrorBucket:    getEnv("AWS_S3_MIRROR_BUCKET", ""),
		},
		FileExtensions: extensionMap(getEnv("FILE_EXTENSIONS", "")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !versionRe.MatchString(c.Version) {
		return fmt.Errorf("BACKUP_VERSION %q must be lowercase alphanumeric/underscore", c.Version)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Zoom.AccountID == "" || c.Zoom.ClientID == "" || c.Zoom.ClientSecret == "" {
		return fmt.Errorf("missing Zoom credentials: ZOOM_ACCOUNT_ID, ZOOM_CLIENT_ID and ZOOM_CLIENT_SECRET are required")
	}
	if c.Processing.MonthsPerRange < 1 {
		return fmt.Errorf("MONTHS_PER_RANGE must be at least 1")
	}
	if c.API.Retries < 1 {
		return fmt.Errorf("API_RETRIES must be at least 1")
	}
	if c.Dates.AuditTo.Before(c.Dates.AuditFrom) {
		return fmt.Errorf("AUDIT_WINDOW_TO must not precede AUDIT_WINDOW_FROM")
	}
	return nil
}

// defaultExtensions maps Zoom file_type values to on-disk extensions.
var defaultExtensions = map[string]string{
	"mp4":        "mp4",
	"m4a":        "m4a",
	"timeline":   "json",
	"transcript": "vtt",
	"chat":       "txt",
	"cc":         "vtt",
	"csv":        "csv",
	"summary":    "json",
}

// extensionMap merges FILE_EXTENSIONS overrides ("type:ext,type:ext") over the defaults.
func extensionMap(overrides string) map[string]string {
	m := make(map[string]string, len(defaultExtensions))
	for k, v := range defaultExtensions {
		m[k] = v
	}
	for _, pair := range strings.Split(overrides, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		val := strings.ToLower(strings.TrimSpace(parts[1]))
		if key != "" && val != "" {
			m[key] = val
		}
	}
	return m
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback int, unit time.Duration) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * unit
}
