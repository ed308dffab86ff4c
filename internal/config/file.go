// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/parleyhq/parley/internal/log"
)

// LoadDotenv loads a .env file into the process environment if present.
// Existing environment variables are never overwritten.
func LoadDotenv(path string) {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return
	}
	logger := log.WithComponent("config")
	if err := godotenv.Load(path); err != nil {
		logger.Warn().
			Err(err).
			Str("path", path).
			Msg("failed to load dotenv file")
		return
	}
	logger.Info().
		Str("path", path).
		Msg("loaded environment from dotenv file")
}

// fileConfig mirrors AppConfig for YAML decoding. Pointer fields distinguish
// "absent" from zero values so the file only overrides what it sets.
type fileConfig struct {
	ListenAddr       *string        `yaml:"listenAddr"`
	MetricsListen    *string        `yaml:"metricsListen"`
	DataDir          *string        `yaml:"dataDir"`
	DBPath           *string        `yaml:"dbPath"`
	RedisAddr        *string        `yaml:"redisAddr"`
	RedisPassword    *string        `yaml:"redisPassword"`
	RedisDB          *int           `yaml:"redisDB"`
	JWTSecret        *string        `yaml:"jwtSecret"`
	AccessTTL        *time.Duration `yaml:"accessTTL"`
	RefreshTTL       *time.Duration `yaml:"refreshTTL"`
	BcryptCost       *int           `yaml:"bcryptCost"`
	OTPTTL           *time.Duration `yaml:"otpTTL"`
	OTPDigits        *int           `yaml:"otpDigits"`
	MailDriver       *string        `yaml:"mailDriver"`
	SMTPHost         *string        `yaml:"smtpHost"`
	SMTPPort         *int           `yaml:"smtpPort"`
	SMTPUsername     *string        `yaml:"smtpUsername"`
	SMTPPassword     *string        `yaml:"smtpPassword"`
	MailFrom         *string        `yaml:"mailFrom"`
	HistoryLimit     *int           `yaml:"historyLimit"`
	BroadcastWorkers *int           `yaml:"broadcastWorkers"`
	AllowedOrigins   []string       `yaml:"allowedOrigins"`
	RateLimitRPM     *int           `yaml:"rateLimitRPM"`
	AuthRateLimitPM  *int           `yaml:"authRateLimitPM"`
	LogLevel         *string        `yaml:"logLevel"`
	LogService       *string        `yaml:"logService"`
}

func loadFile(path string) (fileConfig, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return fileConfig{}, err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("parse yaml: %w", err)
	}
	return fc, nil
}

func mergeFile(cfg AppConfig, fc fileConfig) AppConfig {
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setDur := func(dst *time.Duration, src *time.Duration) {
		if src != nil {
			*dst = *src
		}
	}

	setStr(&cfg.ListenAddr, fc.ListenAddr)
	setStr(&cfg.MetricsListen, fc.MetricsListen)
	setStr(&cfg.DataDir, fc.DataDir)
	setStr(&cfg.DBPath, fc.DBPath)
	setStr(&cfg.RedisAddr, fc.RedisAddr)
	setStr(&cfg.RedisPassword, fc.RedisPassword)
	setInt(&cfg.RedisDB, fc.RedisDB)
	setStr(&cfg.JWTSecret, fc.JWTSecret)
	setDur(&cfg.AccessTTL, fc.AccessTTL)
	setDur(&cfg.RefreshTTL, fc.RefreshTTL)
	setInt(&cfg.BcryptCost, fc.BcryptCost)
	setDur(&cfg.OTPTTL, fc.OTPTTL)
	setInt(&cfg.OTPDigits, fc.OTPDigits)
	setStr(&cfg.MailDriver, fc.MailDriver)
	setStr(&cfg.SMTPHost, fc.SMTPHost)
	setInt(&cfg.SMTPPort, fc.SMTPPort)
	setStr(&cfg.SMTPUsername, fc.SMTPUsername)
	setStr(&cfg.SMTPPassword, fc.SMTPPassword)
	setStr(&cfg.MailFrom, fc.MailFrom)
	setInt(&cfg.HistoryLimit, fc.HistoryLimit)
	setInt(&cfg.BroadcastWorkers, fc.BroadcastWorkers)
	if len(fc.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = fc.AllowedOrigins
	}
	setInt(&cfg.RateLimitRPM, fc.RateLimitRPM)
	setInt(&cfg.AuthRateLimitPM, fc.AuthRateLimitPM)
	setStr(&cfg.LogLevel, fc.LogLevel)
	setStr(&cfg.LogService, fc.LogService)
	return cfg
}
