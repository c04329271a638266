package app

import (
	"time"

	"github.com/datakiln/retaildw/internal/platform/envutil"
	"github.com/datakiln/retaildw/internal/platform/logger"
)

type Config struct {
	LogMode string

	// RedisAddr enables the pub/sub alert bus when non-empty.
	RedisAddr    string
	AlertChannel string

	CommitMaxRetries      uint64
	CommitInitialInterval time.Duration
	CommitMaxInterval     time.Duration

	WorkerConcurrency       int
	WorkerPollInterval      time.Duration
	WorkerHeartbeatInterval time.Duration
	WorkerMaxAttempts       int
	WorkerRetryDelay        time.Duration
	WorkerStaleRunning      time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		LogMode: envutil.String("LOG_MODE", "development"),

		RedisAddr:    envutil.String("REDIS_ADDR", ""),
		AlertChannel: envutil.String("ALERT_CHANNEL", "retaildw.alerts"),

		CommitMaxRetries:      uint64(envutil.Int("COMMIT_MAX_RETRIES", 3)),
		CommitInitialInterval: envutil.Duration("COMMIT_INITIAL_INTERVAL", 200*time.Millisecond),
		CommitMaxInterval:     envutil.Duration("COMMIT_MAX_INTERVAL", 5*time.Second),

		WorkerConcurrency:       envutil.Int("WORKER_CONCURRENCY", 2),
		WorkerPollInterval:      envutil.Duration("WORKER_POLL_INTERVAL", 2*time.Second),
		WorkerHeartbeatInterval: envutil.Duration("WORKER_HEARTBEAT_INTERVAL", 15*time.Second),
		WorkerMaxAttempts:       envutil.Int("WORKER_MAX_ATTEMPTS", 3),
		WorkerRetryDelay:        envutil.Duration("WORKER_RETRY_DELAY", 30*time.Second),
		WorkerStaleRunning:      envutil.Duration("WORKER_STALE_RUNNING", 10*time.Minute),
	}
	log.Debug("config loaded", "log_mode", cfg.LogMode, "redis_addr", cfg.RedisAddr)
	return cfg
}
