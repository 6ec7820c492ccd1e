// Command server is the pipeline's entrypoint: it loads configuration,
// applies pending Postgres migrations, wires every component (C1-C11), and
// runs them under the C12 supervisor until a shutdown signal arrives.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/droptracker-go/pipeline/internal/aggregator"
	"github.com/droptracker-go/pipeline/internal/chat"
	"github.com/droptracker-go/pipeline/internal/config"
	"github.com/droptracker-go/pipeline/internal/directory"
	"github.com/droptracker-go/pipeline/internal/hof"
	"github.com/droptracker-go/pipeline/internal/ingress"
	"github.com/droptracker-go/pipeline/internal/kvstore"
	"github.com/droptracker-go/pipeline/internal/lootboard"
	"github.com/droptracker-go/pipeline/internal/metrics"
	"github.com/droptracker-go/pipeline/internal/notifier"
	"github.com/droptracker-go/pipeline/internal/notifyqueue"
	"github.com/droptracker-go/pipeline/internal/playerrefresh"
	"github.com/droptracker-go/pipeline/internal/sqlstore"
	"github.com/droptracker-go/pipeline/internal/submission"
	"github.com/droptracker-go/pipeline/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	logRegistry := supervisor.NewLogRegistry(200)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !supervisor.CleanupPort(ctx, cfg.Port, sugar) {
		sugar.Warnw("server: starting anyway despite port still reporting in use", "port", cfg.Port)
	}

	if err := sqlstore.Migrate(cfg.PostgresURL); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	pgPool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pgPool.Close()
	store := sqlstore.New(pgPool)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	defer rdb.Close()
	kv := kvstore.New(rdb)

	var chConn clickhouse.Conn
	if cfg.ClickHouseURL != "" {
		chConn, err = clickhouse.Open(&clickhouse.Options{Addr: []string{cfg.ClickHouseURL}})
		if err != nil {
			sugar.Errorw("server: clickhouse connect failed, analytics sink disabled", "error", err)
			chConn = nil
		}
	}
	metricsRecorder := metrics.New(sugar, chConn)

	dirClient := directory.New(cfg.DirectoryBaseURL, cfg.DirectoryTimeout, sugar)

	var gateway *chat.DiscordGateway
	if cfg.DiscordBotToken != "" {
		gateway, err = chat.NewDiscordGateway(cfg.DiscordBotToken)
		if err != nil {
			return fmt.Errorf("init discord gateway: %w", err)
		}
		if err := gateway.Open(); err != nil {
			return fmt.Errorf("open discord session: %w", err)
		}
		defer gateway.Close()
	}

	agg := aggregator.New(kv, cfg.HighValueThreshold)
	notifyQueue := notifyqueue.New(kv)

	pipeline := submission.New(store, dirClient, agg, notifyQueue, submission.Settings{
		PointDivisor:        cfg.PointDivisor,
		HighValueThreshold:  cfg.HighValueThreshold,
		HighValueVerifyOver: cfg.HighValueVerifyOver,
	})

	hofRenderer := hof.New(store, kv, gateway, hof.Settings{
		SweepInterval:     cfg.HoFSweepInterval,
		Workers:           cfg.HoFWorkers,
		QueueSize:         cfg.HoFQueueSize,
		HashTTL:           cfg.HoFHashTTL,
		ForbiddenCooldown: cfg.ForbiddenCooldown,
	}, taskLogger(logger, logRegistry, "hall_of_fame"), metricsRecorder)

	lootboardGen := lootboard.New(store, kv, cfg.LootboardAssetDir, cfg.LootboardOutDir)
	lootboardScheduler := lootboard.NewScheduler(lootboardGen, lootboard.SchedulerSettings{
		SweepInterval: cfg.LootboardSweepInterval,
	}, taskLogger(logger, logRegistry, "lootboard"))

	notify := notifier.New(store, gateway, notifier.Settings{
		Workers:           cfg.NotifierWorkers,
		PollInterval:      cfg.NotifierPollInterval,
		BatchSize:         cfg.NotifierBatchSize,
		StuckRowTimeout:   cfg.StuckRowTimeout,
		GlobalRPS:         cfg.NotifyGlobalPerSecond,
		PerGroupRPS:       cfg.NotifyPerGroupPerSecond,
		ForbiddenCooldown: cfg.ForbiddenCooldown,
	}, taskLogger(logger, logRegistry, "notifier"), metricsRecorder)

	refresh := playerrefresh.New(store, dirClient, notifyQueue, playerrefresh.Settings{
		Interval:  cfg.PlayerRefreshInterval,
		BatchSize: cfg.PlayerRefreshBatchSize,
	}, taskLogger(logger, logRegistry, "player_refresh"))

	server := ingress.New(pipeline, store, kv, hofRenderer, lootboardGen, gateway, metricsRecorder, ingress.Settings{
		Port:           cfg.Port,
		WebhookRPS:     cfg.IngressWebhookPerSecond,
		SubmitRPS:      cfg.IngressSubmitPerSecond,
		RequestBudget:  cfg.IngressRequestBudget,
		HealthBudget:   cfg.IngressHealthBudget,
		ImageDir:       cfg.ImageDir,
		AllowedOrigins: cfg.AllowedOrigins,
		ClaimCodeTTL:   cfg.ClaimCodeTTL,
	}, taskLogger(logger, logRegistry, "ingress"))
	server.ListenChat()

	sup := supervisor.New(supervisor.Settings{
		HeartbeatInterval:    cfg.HeartbeatInterval,
		RestartAfterFailures: cfg.RestartAfterFailures,
		ShutdownGrace:        cfg.ShutdownGrace,
	}, sugar, server, notify, hofRenderer, lootboardScheduler, refresh)
	server.SetSupervisor(sup, logRegistry)

	go metricsRecorder.Run(ctx)

	sugar.Infow("server: starting", "port", cfg.Port, "env", cfg.Env)
	return sup.Run(ctx)
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// taskLogger derives a named logger that tees every entry into the
// supervisor's log registry, so the monitor CLI's `logs` subcommand (§6)
// can tail a task's recent output without a log file per service.
func taskLogger(base *zap.Logger, reg *supervisor.LogRegistry, task string) *zap.SugaredLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	sinkCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), reg.Sink(task), zapcore.DebugLevel)

	named := base.Named(task).WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, sinkCore)
	}))
	return named.Sugar()
}
