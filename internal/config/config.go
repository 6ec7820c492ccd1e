package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port int
	Env  string

	// CORS
	AllowedOrigins []string

	// Database URLs
	PostgresURL   string
	ClickHouseURL string
	RedisURL      string

	// Notifier worker pool
	NotifierWorkers      int
	NotifierPollInterval time.Duration
	NotifierBatchSize    int
	StuckRowTimeout       time.Duration

	// Rate limiting (§4.1, §4.4)
	IngressWebhookPerSecond int
	IngressSubmitPerSecond  int
	NotifyPerGroupPerSecond float64
	NotifyGlobalPerSecond   float64
	ForbiddenCooldown       time.Duration

	// Ingress request budgets and storage (§4.1, §5)
	IngressRequestBudget time.Duration
	IngressHealthBudget  time.Duration
	ImageDir             string
	ClaimCodeTTL         time.Duration

	// Hall of Fame
	HoFSweepInterval time.Duration
	HoFWorkers       int
	HoFQueueSize     int
	HoFHashTTL       time.Duration

	// Lootboard
	LootboardTimeout  time.Duration
	LootboardAssetDir string
	LootboardOutDir   string

	// Directory client (WiseOldMan-shaped)
	DirectoryBaseURL string
	DirectoryTimeout time.Duration

	// Chat gateway (Discord-shaped)
	DiscordBotToken string

	// Supervisor
	HeartbeatInterval   time.Duration
	RestartAfterFailures int
	ShutdownGrace       time.Duration

	// Points
	PointDivisor int64

	// Submission value thresholds (§4.2)
	HighValueThreshold  int64
	HighValueVerifyOver int64

	// Player refresh loop
	PlayerRefreshInterval  time.Duration
	PlayerRefreshBatchSize int

	// Lootboard sweep
	LootboardSweepInterval time.Duration
}

// Load loads configuration from environment variables.
// It returns an error if critical configuration is missing.
func Load() (*Config, error) {
	cfg := &Config{
		Port: getEnvInt("PORT", 8080),
		Env:  getEnv("ENV", "development"),

		NotifierWorkers:      getEnvInt("NOTIFIER_WORKERS", 1),
		NotifierPollInterval: getEnvDuration("NOTIFIER_POLL_INTERVAL", 5*time.Second),
		NotifierBatchSize:    getEnvInt("NOTIFIER_BATCH_SIZE", 5),
		StuckRowTimeout:      getEnvDuration("STUCK_ROW_TIMEOUT", 10*time.Minute),

		IngressWebhookPerSecond: getEnvInt("INGRESS_WEBHOOK_RPS", 100),
		IngressSubmitPerSecond:  getEnvInt("INGRESS_SUBMIT_RPS", 10),
		NotifyPerGroupPerSecond: getEnvFloat("NOTIFY_PER_GROUP_RPS", 2),
		NotifyGlobalPerSecond:   getEnvFloat("NOTIFY_GLOBAL_RPS", 8),
		ForbiddenCooldown:       getEnvDuration("FORBIDDEN_COOLDOWN", 330*time.Second),

		IngressRequestBudget: getEnvDuration("INGRESS_REQUEST_BUDGET", 5*time.Second),
		IngressHealthBudget:  getEnvDuration("INGRESS_HEALTH_BUDGET", 3*time.Second),
		ImageDir:             getEnv("IMAGE_DIR", "img"),
		ClaimCodeTTL:         getEnvDuration("CLAIM_CODE_TTL", 24*time.Hour),

		HoFSweepInterval: getEnvDuration("HOF_SWEEP_INTERVAL", 6*time.Minute),
		HoFWorkers:       getEnvInt("HOF_WORKERS", 3),
		HoFQueueSize:     getEnvInt("HOF_QUEUE_SIZE", 1000),
		HoFHashTTL:       getEnvDuration("HOF_HASH_TTL", 7*24*time.Hour),

		LootboardTimeout:  getEnvDuration("LOOTBOARD_TIMEOUT", 5*time.Minute),
		LootboardAssetDir: getEnv("LOOTBOARD_ASSET_DIR", "assets/lootboard"),
		LootboardOutDir:   getEnv("LOOTBOARD_OUT_DIR", "lb"),

		DirectoryBaseURL: getEnv("WOM_BASE_URL", "https://api.wiseoldman.net/v2"),
		DirectoryTimeout: getEnvDuration("WOM_TIMEOUT", 10*time.Second),

		DiscordBotToken: os.Getenv("DISCORD_BOT_TOKEN"),

		HeartbeatInterval:    getEnvDuration("HEARTBEAT_INTERVAL", 15*time.Second),
		RestartAfterFailures: getEnvInt("RESTART_AFTER_FAILURES", 5),
		ShutdownGrace:        getEnvDuration("SHUTDOWN_GRACE", 10*time.Second),

		PointDivisor: int64(getEnvInt("POINT_DIVISOR", 1_000_000)),

		HighValueThreshold:  int64(getEnvInt("HIGH_VALUE_THRESHOLD", 1_000_000)),
		HighValueVerifyOver: int64(getEnvInt("HIGH_VALUE_VERIFY_OVER", 1_000_000)),

		PlayerRefreshInterval:  getEnvDuration("PLAYER_REFRESH_INTERVAL", 2*time.Minute),
		PlayerRefreshBatchSize: getEnvInt("PLAYER_REFRESH_BATCH_SIZE", 25),

		LootboardSweepInterval: getEnvDuration("LOOTBOARD_SWEEP_INTERVAL", 6*time.Minute),
	}

	// CORS
	origins := getEnv("ALLOWED_ORIGINS", "http://localhost:3000")
	rawOrigins := strings.Split(origins, ",")
	for _, o := range rawOrigins {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	// Critical configuration - fail if missing
	var err error
	if cfg.PostgresURL, err = getEnvRequired("POSTGRES_URL"); err != nil {
		return nil, err
	}
	if cfg.RedisURL, err = getEnvRequired("REDIS_URL"); err != nil {
		return nil, err
	}
	// ClickHouse is the analytics sink: wired in production, optional in dev
	// since its failure never fails a submission (§7 TransientBackend).
	cfg.ClickHouseURL = getEnv("CLICKHOUSE_URL", "")
	if cfg.Env == "production" {
		if cfg.ClickHouseURL == "" {
			return nil, fmt.Errorf("missing required environment variable: CLICKHOUSE_URL")
		}
		if cfg.DiscordBotToken == "" {
			return nil, fmt.Errorf("missing required environment variable: DISCORD_BOT_TOKEN")
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvRequired(key string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("missing required environment variable: %s", key)
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
