package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nkarimi/automsg-engine/internal/config"
	"github.com/nkarimi/automsg-engine/internal/db"
	"github.com/nkarimi/automsg-engine/internal/engine"
	"github.com/nkarimi/automsg-engine/internal/escalation"
	"github.com/nkarimi/automsg-engine/internal/lock"
	"github.com/nkarimi/automsg-engine/internal/logger"
	"github.com/nkarimi/automsg-engine/internal/metrics"
	"github.com/nkarimi/automsg-engine/internal/repository"
	"github.com/nkarimi/automsg-engine/internal/scheduler"
	"github.com/nkarimi/automsg-engine/internal/settings"
	"github.com/nkarimi/automsg-engine/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the firing loop and the stalled-conversation sweep",
	RunE:  runScheduler,
}

func runScheduler(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) DB connection (MySQL)
	dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
		PingTimeout:     cfg.MySQL.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	// 3) redis (admission locks)
	rds, err := db.NewRedisClient(db.RedisOpts{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer func() { _ = rds.Close() }()

	// 4) repositories
	settingsRepo := repository.NewSettingsRepository(dbx)
	scheduledRepo := repository.NewScheduledRepository(dbx)
	historyRepo := repository.NewHistoryRepository(dbx)
	escalationsRepo := repository.NewEscalationsRepository(dbx)
	excludedRepo := repository.NewExcludedRepository(dbx)
	conversationsRepo := repository.NewConversationsRepository(dbx)
	outboxRepo := repository.NewOutboxRepository(dbx)

	store := settings.NewStore(settingsRepo)
	if err := store.Load(context.Background()); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	guardSrc := repository.GuardSource{History: historyRepo, Excluded: excludedRepo}
	locks := lock.NewCustomerLocks(rds, cfg.Engine.LockTTL)

	// 5) providers → dispatcher
	var provs []transport.Provider
	for _, pc := range cfg.Providers {
		if !pc.Enabled || strings.TrimSpace(pc.BaseURL) == "" {
			continue
		}
		provs = append(provs,
			transport.NewHTTPProvider(
				pc.Name,
				strings.TrimRight(pc.BaseURL, "/"),
				pc.SendPath,
				pc.TimeoutMs,
				pc.Breaker.FailThreshold,
				pc.Breaker.OpenForMs,
			),
		)
	}
	if len(provs) == 0 {
		return fmt.Errorf("no providers enabled in config")
	}
	disp := transport.NewDispatcher(provs, cfg.Engine.SendAttempts)

	// 6) firing loop
	schedStore := repository.NewSchedulerStore(dbx, scheduledRepo, historyRepo, outboxRepo)
	runner := scheduler.NewRunner(schedStore, guardSrc, store, disp, locks, cfg.Engine.PollInterval, cfg.Engine.SendTimeout)

	// 7) stalled-conversation sweep shares the engine with the API process
	router := escalation.NewRouter(escalationsRepo, outboxRepo, cfg.Engine.NotifyOwner)
	eng := engine.New(store, scheduledRepo, conversationsRepo, guardSrc, router, locks, cfg.Engine.SLAWindow)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runSweep(ctx, eng, cfg.Engine)

	log.Printf(">> scheduler started poll=%s sweep=%s providers=%d",
		cfg.Engine.PollInterval, cfg.Engine.SweepInterval, len(provs))

	return runner.Run(ctx)
}

func runSweep(ctx context.Context, eng *engine.Engine, cfg config.EngineConfig) {
	interval := cfg.SweepInterval
	if interval <= 0 {
		return
	}
	limit := cfg.SweepLimit
	if limit <= 0 {
		limit = 100
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := eng.Sweep(ctx, limit); err != nil && ctx.Err() == nil {
				logger.Log.Error("stalled-conversation sweep failed", zap.Error(err))
			}
		}
	}
}
