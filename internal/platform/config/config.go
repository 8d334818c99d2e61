// Package config builds process configuration from the environment so main
// stays lean.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"authsentinel/pkg/domainerrors"
)

// Detector thresholds, overridable via environment. Defaults match spec §4.3.
const (
	DefaultWindow               = 60 * time.Second
	DefaultBruteForceMin        = 5
	DefaultSprayMinUsers        = 5
	DefaultSprayMinFails        = 8
)

// Config captures process-level configuration.
type Config struct {
	Addr        string
	MappingPath string
	RunsDir     string

	Window        time.Duration
	BruteForceMin int
	SprayMinUsers int
	SprayMinFails int
}

// FromEnv builds a Config from environment variables, falling back to
// spec-mandated defaults for anything unset. A malformed override is a
// config_invalid error; the caller (main) treats it as fatal.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:          envOr("AUTHSENTINEL_ADDR", ":8080"),
		MappingPath:   envOr("AUTHSENTINEL_MAPPING_PATH", "config/field_mappings.yaml"),
		RunsDir:       envOr("AUTHSENTINEL_RUNS_DIR", "runs"),
		Window:        DefaultWindow,
		BruteForceMin: DefaultBruteForceMin,
		SprayMinUsers: DefaultSprayMinUsers,
		SprayMinFails: DefaultSprayMinFails,
	}

	if v, ok := os.LookupEnv("WINDOW_SECONDS"); ok {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return Config{}, domainerrors.New(domainerrors.CodeInvalid, fmt.Sprintf("WINDOW_SECONDS must be a positive integer, got %q", v))
		}
		cfg.Window = time.Duration(secs) * time.Second
	}

	if v, ok := os.LookupEnv("BRUTE_FORCE_FAILURE_THRESHOLD"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, domainerrors.New(domainerrors.CodeInvalid, fmt.Sprintf("BRUTE_FORCE_FAILURE_THRESHOLD must be a positive integer, got %q", v))
		}
		cfg.BruteForceMin = n
	}

	if v, ok := os.LookupEnv("CRED_ABUSE_DISTINCT_USER_THRESHOLD"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, domainerrors.New(domainerrors.CodeInvalid, fmt.Sprintf("CRED_ABUSE_DISTINCT_USER_THRESHOLD must be a positive integer, got %q", v))
		}
		cfg.SprayMinUsers = n
	}

	if v, ok := os.LookupEnv("CRED_ABUSE_FAILURE_THRESHOLD"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, domainerrors.New(domainerrors.CodeInvalid, fmt.Sprintf("CRED_ABUSE_FAILURE_THRESHOLD must be a positive integer, got %q", v))
		}
		cfg.SprayMinFails = n
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
