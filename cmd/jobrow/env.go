package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/jobrow"
)

// Environment variables read by the CLI.
const (
	envDriver        = "JOBROW_DRIVER"
	envDSN           = "JOBROW_DSN"
	envMongoDatabase = "JOBROW_MONGO_DATABASE"
	envRedisURL      = "JOBROW_REDIS_URL"
	envK8sNamespace  = "JOBROW_K8S_NAMESPACE"
	envLogLevel      = "JOBROW_LOG_LEVEL"
	envLogFormat     = "JOBROW_LOG_FORMAT"
)

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// loadConfig starts from jobrow.DefaultConfig and applies JOBROW_* overrides.
func loadConfig() (jobrow.Config, error) {
	cfg := jobrow.DefaultConfig()

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"JOBROW_QUEUE_POLL_INTERVAL", &cfg.QueuePollInterval},
		{"JOBROW_INVISIBILITY_TIMEOUT", &cfg.InvisibilityTimeout},
		{"JOBROW_JOB_EXPIRATION_CHECK_INTERVAL", &cfg.JobExpirationCheckInterval},
		{"JOBROW_COUNTERS_AGGREGATE_INTERVAL", &cfg.CountersAggregateInterval},
		{"JOBROW_FETCH_LOCK_TIMEOUT", &cfg.FetchLockTimeout},
		{"JOBROW_EXPIRATION_BATCH_DELAY", &cfg.ExpirationBatchDelay},
		{"JOBROW_COUNTER_PASS_DELAY", &cfg.CounterPassDelay},
		{"JOBROW_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"JOBROW_DASHBOARD_JOB_LIST_LIMIT", &cfg.DashboardJobListLimit},
		{"JOBROW_EXPIRATION_BATCH_SIZE", &cfg.ExpirationBatchSize},
		{"JOBROW_COUNTER_BATCH_SIZE", &cfg.CounterBatchSize},
	}
	for _, n := range ints {
		v := os.Getenv(n.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", n.key, err)
		}
		*n.dst = parsed
	}

	return cfg, cfg.Validate()
}

// newLogger builds the CLI logger from a level name and a format, either
// "text" or "json".
func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q; use text|json", format)
	}
}
