package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nkarimi/automsg-engine/internal/config"
	"github.com/nkarimi/automsg-engine/internal/db"
	"github.com/nkarimi/automsg-engine/internal/kafka"
	"github.com/nkarimi/automsg-engine/internal/logger"
	"github.com/nkarimi/automsg-engine/internal/model"
	"github.com/nkarimi/automsg-engine/internal/repository"
	"github.com/nkarimi/automsg-engine/internal/worker"
	"github.com/spf13/cobra"
)

var archiverCmd = &cobra.Command{
	Use:   "archiver",
	Short: "Archive sent-message history into ClickHouse",
	RunE:  runArchiver,
}

func runArchiver(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)

	chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
		DSN:             cfg.ClickHouse.DSN,
		MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
		MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
		PingTimeout:     cfg.ClickHouse.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer func() { _ = chDB.Close() }()

	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "automsg"
	}
	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          model.HistoryKafkaTopic,
		GroupID:        groupID + "-archiver",
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	w := worker.NewArchiver(consumer, repository.NewCHHistoryRepository(chDB))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf(">> archiver started topic=%s group=%s-archiver batch=%d wait=%s",
		model.HistoryKafkaTopic, groupID, w.BatchSize, w.BatchWait)

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
