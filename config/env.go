package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvString returns the trimmed value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer. A set but malformed value is an error.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s=%q: %w", key, raw, err)
	}
	return value, true, nil
}
