// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zaptv/zaptv/internal/log"
)

// ParseString reads key from the environment or returns defaultValue. The
// chosen source is logged; values of sensitive keys are not.
func ParseString(key, defaultValue string) string {
	logger := log.WithComponent("config")
	if value, exists := os.LookupEnv(key); exists {
		if value == "" {
			logDefault(logger, key)
			return defaultValue
		}
		sensitive := strings.Contains(strings.ToLower(key), "password") ||
			strings.Contains(strings.ToLower(key), "token")
		ev := logger.Debug().Str("key", key).Str("source", "environment")
		if sensitive {
			ev.Bool("sensitive", true).Msg("using environment variable")
		} else {
			ev.Str("value", value).Msg("using environment variable")
		}
		return value
	}
	logDefault(logger, key)
	return defaultValue
}

// ParseInt reads an integer from the environment, falling back to
// defaultValue on absence or parse failure.
func ParseInt(key string, defaultValue int) int {
	logger := log.WithComponent("config")
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			logger.Debug().Str("key", key).Int("value", i).
				Str("source", "environment").Msg("using environment variable")
			return i
		}
		logger.Warn().Str("key", key).Str("value", v).Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	logDefault(logger, key)
	return defaultValue
}

// ParseBool reads a boolean ("true"/"false"/"1"/"0") from the environment.
func ParseBool(key string, defaultValue bool) bool {
	logger := log.WithComponent("config")
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			logger.Debug().Str("key", key).Bool("value", b).
				Str("source", "environment").Msg("using environment variable")
			return b
		}
		logger.Warn().Str("key", key).Str("value", v).Bool("default", defaultValue).
			Msg("invalid boolean in environment variable, using default")
		return defaultValue
	}
	logDefault(logger, key)
	return defaultValue
}

// ParseDuration reads a Go duration ("10s", "5m") from the environment.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := log.WithComponent("config")
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			logger.Debug().Str("key", key).Dur("value", d).
				Str("source", "environment").Msg("using environment variable")
			return d
		}
		logger.Warn().Str("key", key).Str("value", v).Dur("default", defaultValue).
			Msg("invalid duration in environment variable, using default")
		return defaultValue
	}
	logDefault(logger, key)
	return defaultValue
}

func logDefault(logger zerolog.Logger, key string) {
	logger.Debug().Str("key", key).Str("source", "default").Msg("using default value")
}
