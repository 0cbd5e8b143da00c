package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from the given .env files (default ".env").
// A missing file is not an error; existing process variables win.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			slog.Warn("could not load env file", slog.String("file", f), slog.Any("error", err))
		}
	}
}

// EnvString returns the trimmed value of key and whether it was set.
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

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvFloat parses key as a float.
func EnvFloat(key string) (float64, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvDuration parses key as a Go duration ("20s") or a plain millisecond count.
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond, true, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvBool parses key as a boolean.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// FromEnv returns DefaultConfig overridden by HYPPADO_* variables. The
// upstream category service is optional: leaving its URL unset makes the
// service fall back to the bundled category list.
func FromEnv() (*Config, error) {
	cfg := DefaultConfig()

	strs := map[string]*string{
		"HYPPADO_EXPORT_DIR":             &cfg.ExportDir,
		"HYPPADO_DEFAULT_RANGE":          &cfg.DefaultRange,
		"HYPPADO_LISTEN_ADDR":            &cfg.ListenAddr,
		"HYPPADO_OEMBED_ENDPOINT":        &cfg.OEmbedEndpoint,
		"HYPPADO_USER_AGENT":             &cfg.UserAgent,
		"HYPPADO_CATEGORY_SERVICE_URL":   &cfg.CategoryServiceURL,
		"HYPPADO_CATEGORY_SERVICE_TOKEN": &cfg.CategoryServiceToken,
	}
	for key, dst := range strs {
		if value, ok := EnvString(key); ok {
			*dst = value
		}
	}

	ints := map[string]*int{
		"HYPPADO_DEFAULT_LIMIT":      &cfg.DefaultLimit,
		"HYPPADO_MAX_LIMIT":          &cfg.MaxLimit,
		"HYPPADO_ENRICH_CONCURRENCY": &cfg.EnrichConcurrency,
		"HYPPADO_OEMBED_RETRIES":     &cfg.OEmbedRetries,
		"HYPPADO_OUTBOUND_BURST":     &cfg.OutboundBurst,
		"HYPPADO_CACHE_SIZE":         &cfg.CacheSize,
		"HYPPADO_BATCH_SIZE":         &cfg.BatchSize,
	}
	for key, dst := range ints {
		value, ok, err := EnvInt(key)
		if err != nil {
			return nil, err
		}
		if ok {
			*dst = value
		}
	}

	durations := map[string]*time.Duration{
		"HYPPADO_REQUEST_DEADLINE":   &cfg.RequestDeadline,
		"HYPPADO_RESOLVE_TIMEOUT":    &cfg.ResolveTimeout,
		"HYPPADO_OEMBED_TIMEOUT":     &cfg.OEmbedTimeout,
		"HYPPADO_OEMBED_BACKOFF":     &cfg.OEmbedBackoff,
		"HYPPADO_CATEGORY_TIMEOUT":   &cfg.CategoryTimeout,
		"HYPPADO_NEW_PRODUCT_WINDOW": &cfg.NewProductWindow,
	}
	for key, dst := range durations {
		value, ok, err := EnvDuration(key)
		if err != nil {
			return nil, err
		}
		if ok {
			*dst = value
		}
	}

	rps, ok, err := EnvFloat("HYPPADO_OUTBOUND_RPS")
	if err != nil {
		return nil, err
	}
	if ok {
		cfg.OutboundRPS = rps
	}

	verbose, ok, err := EnvBool("HYPPADO_VERBOSE")
	if err != nil {
		return nil, err
	}
	if ok {
		cfg.Verbose = verbose
	}

	return cfg, nil
}
