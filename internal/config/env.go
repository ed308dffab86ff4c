// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/parleyhq/parley/internal/log"
)

// sensitive reports whether a key's value must never be logged.
func sensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "secret") || strings.Contains(k, "password")
}

func logEnv(key, value string) {
	logger := log.WithComponent("config")
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if sensitive(key) {
		ev.Bool("sensitive", true)
	} else {
		ev.Str("value", value)
	}
	ev.Msg("using environment variable")
}

func logBadEnv(key, value, kind string) {
	logger := log.WithComponent("config")
	logger.Warn().
		Str("key", key).
		Str("value", value).
		Msgf("invalid %s in environment variable, using default", kind)
}

// ParseString reads key from the environment, falling back to defaultValue
// when unset or empty.
func ParseString(key, defaultValue string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	logEnv(key, v)
	return v
}

// ParseInt reads an integer from the environment, falling back to
// defaultValue when unset, empty or unparseable.
func ParseInt(key string, defaultValue int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logBadEnv(key, v, "integer")
		return defaultValue
	}
	logEnv(key, v)
	return i
}

// ParseDuration reads a Go duration (e.g. "5s", "2m") from the environment,
// falling back to defaultValue when unset, empty or unparseable.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logBadEnv(key, v, "duration")
		return defaultValue
	}
	logEnv(key, v)
	return d
}

// ParseBool reads a boolean from the environment. Accepts true/false, 1/0
// and yes/no, case-insensitive.
func ParseBool(key string, defaultValue bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	logBadEnv(key, v, "boolean")
	return defaultValue
}

// ParseStringSlice reads a comma-separated list from the environment.
// Blank entries are dropped; an effectively empty value keeps the default.
func ParseStringSlice(key string, defaultValue []string) []string {
	raw := ParseString(key, "")
	if strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
