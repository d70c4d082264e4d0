// Package environ reads configuration defaults from environment variables.
// Unset or unparsable variables fall back to the given default.
package environ

import (
	"os"
	"strconv"
	"time"

	"k8s.io/kube-openapi/pkg/validation/strfmt"
)

func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func GetInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}

	return fallback
}

func GetBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}

	return fallback
}

// GetDuration accepts Go durations as well as day/week units such as "1d".
func GetDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if t, err := strfmt.ParseDuration(value); err == nil {
			return t
		}
	}
	return fallback
}
