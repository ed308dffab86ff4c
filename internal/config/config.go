// SPDX-License-Identifier: MIT

// Package config loads application configuration with the precedence
// ENV > config file > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// AppConfig holds the full application configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	// Server
	ListenAddr    string `yaml:"listenAddr"`
	MetricsListen string `yaml:"metricsListen"` // empty disables the metrics listener

	// Storage
	DataDir string `yaml:"dataDir"`
	DBPath  string `yaml:"dbPath"`

	// Redis (OTP store, presence, pub/sub channel layer)
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`

	// Auth
	JWTSecret  string        `yaml:"jwtSecret"`
	AccessTTL  time.Duration `yaml:"accessTTL"`
	RefreshTTL time.Duration `yaml:"refreshTTL"`
	BcryptCost int           `yaml:"bcryptCost"`

	// Registration OTP
	OTPTTL    time.Duration `yaml:"otpTTL"`
	OTPDigits int           `yaml:"otpDigits"`

	// Mail
	MailDriver   string `yaml:"mailDriver"` // "log" or "smtp"
	SMTPHost     string `yaml:"smtpHost"`
	SMTPPort     int    `yaml:"smtpPort"`
	SMTPUsername string `yaml:"smtpUsername"`
	SMTPPassword string `yaml:"smtpPassword"`
	MailFrom     string `yaml:"mailFrom"`

	// Chat behaviour
	HistoryLimit     int `yaml:"historyLimit"`     // messages replayed on socket connect
	BroadcastWorkers int `yaml:"broadcastWorkers"` // fanout worker pool size

	// HTTP protection
	AllowedOrigins  []string `yaml:"allowedOrigins"`
	RateLimitRPM    int      `yaml:"rateLimitRPM"`    // global per-IP requests per minute
	AuthRateLimitPM int      `yaml:"authRateLimitPM"` // per-IP limit on login/OTP endpoints

	// Logging
	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`
}

// defaultBroadcastWorkers mirrors the conventional worker sizing for the
// application server this service replaces: 2*CPU+1.
func defaultBroadcastWorkers() int {
	return runtime.NumCPU()*2 + 1
}

// Defaults returns the built-in configuration defaults.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr:       ":8001",
		MetricsListen:    "",
		DataDir:          "/var/lib/parley",
		DBPath:           "", // derived from DataDir when empty
		RedisAddr:        "localhost:6379",
		RedisDB:          0,
		AccessTTL:        15 * time.Minute,
		RefreshTTL:       7 * 24 * time.Hour,
		BcryptCost:       12,
		OTPTTL:           5 * time.Minute,
		OTPDigits:        6,
		MailDriver:       "log",
		SMTPPort:         587,
		MailFrom:         "no-reply@parley.local",
		HistoryLimit:     50,
		BroadcastWorkers: defaultBroadcastWorkers(),
		RateLimitRPM:     600,
		AuthRateLimitPM:  10,
		LogLevel:         "info",
		LogService:       "parley",
	}
}

// FromEnv overlays environment variables onto cfg. ENV always wins.
func FromEnv(cfg AppConfig) AppConfig {
	cfg.ListenAddr = ParseString("PARLEY_LISTEN", cfg.ListenAddr)
	cfg.MetricsListen = ParseString("PARLEY_METRICS_LISTEN", cfg.MetricsListen)
	cfg.DataDir = ParseString("PARLEY_DATA", cfg.DataDir)
	cfg.DBPath = ParseString("PARLEY_DB_PATH", cfg.DBPath)
	cfg.RedisAddr = ParseString("PARLEY_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = ParseString("PARLEY_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = ParseInt("PARLEY_REDIS_DB", cfg.RedisDB)
	cfg.JWTSecret = ParseString("PARLEY_JWT_SECRET", cfg.JWTSecret)
	cfg.AccessTTL = ParseDuration("PARLEY_ACCESS_TTL", cfg.AccessTTL)
	cfg.RefreshTTL = ParseDuration("PARLEY_REFRESH_TTL", cfg.RefreshTTL)
	cfg.BcryptCost = ParseInt("PARLEY_BCRYPT_COST", cfg.BcryptCost)
	cfg.OTPTTL = ParseDuration("PARLEY_OTP_TTL", cfg.OTPTTL)
	cfg.OTPDigits = ParseInt("PARLEY_OTP_DIGITS", cfg.OTPDigits)
	cfg.MailDriver = ParseString("PARLEY_MAIL_DRIVER", cfg.MailDriver)
	cfg.SMTPHost = ParseString("PARLEY_SMTP_HOST", cfg.SMTPHost)
	cfg.SMTPPort = ParseInt("PARLEY_SMTP_PORT", cfg.SMTPPort)
	cfg.SMTPUsername = ParseString("PARLEY_SMTP_USERNAME", cfg.SMTPUsername)
	cfg.SMTPPassword = ParseString("PARLEY_SMTP_PASSWORD", cfg.SMTPPassword)
	cfg.MailFrom = ParseString("PARLEY_MAIL_FROM", cfg.MailFrom)
	cfg.HistoryLimit = ParseInt("PARLEY_HISTORY_LIMIT", cfg.HistoryLimit)
	cfg.BroadcastWorkers = ParseInt("PARLEY_BROADCAST_WORKERS", cfg.BroadcastWorkers)
	cfg.AllowedOrigins = ParseStringSlice("PARLEY_ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.RateLimitRPM = ParseInt("PARLEY_RATE_LIMIT_RPM", cfg.RateLimitRPM)
	cfg.AuthRateLimitPM = ParseInt("PARLEY_AUTH_RATE_LIMIT_PM", cfg.AuthRateLimitPM)
	cfg.LogLevel = ParseString("PARLEY_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString("PARLEY_LOG_SERVICE", cfg.LogService)
	return cfg
}

// Load builds the effective configuration: defaults, then the optional YAML
// file at path, then environment overrides.
func Load(path, version string) (AppConfig, error) {
	cfg := Defaults()

	if path != "" {
		fileCfg, err := loadFile(path)
		if err != nil {
			return AppConfig{}, fmt.Errorf("config file %s: %w", path, err)
		}
		cfg = mergeFile(cfg, fileCfg)
	}

	cfg = FromEnv(cfg)
	cfg.Version = version

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "parley.db")
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate performs a fail-fast configuration check at startup.
func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("PARLEY_JWT_SECRET must be set")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("PARLEY_JWT_SECRET must be at least 32 bytes (got %d)", len(c.JWTSecret))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.RefreshTTL <= c.AccessTTL {
		return fmt.Errorf("refresh TTL (%s) must exceed access TTL (%s)", c.RefreshTTL, c.AccessTTL)
	}
	if c.OTPTTL <= 0 {
		return fmt.Errorf("OTP TTL must be positive")
	}
	if c.OTPDigits < 4 || c.OTPDigits > 10 {
		return fmt.Errorf("OTP digits must be between 4 and 10 (got %d)", c.OTPDigits)
	}
	if c.MailDriver != "log" && c.MailDriver != "smtp" {
		return fmt.Errorf("mail driver must be \"log\" or \"smtp\" (got %q)", c.MailDriver)
	}
	if c.MailDriver == "smtp" && strings.TrimSpace(c.SMTPHost) == "" {
		return fmt.Errorf("PARLEY_SMTP_HOST must be set when mail driver is smtp")
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history limit must not be negative")
	}
	if c.BroadcastWorkers < 1 {
		return fmt.Errorf("broadcast workers must be at least 1")
	}
	if info, err := os.Stat(c.DataDir); err == nil && !info.IsDir() {
		return fmt.Errorf("data dir %s exists but is not a directory", c.DataDir)
	}
	return nil
}
