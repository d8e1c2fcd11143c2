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
	"github.com/nkarimi/automsg-engine/internal/kafka"
	"github.com/nkarimi/automsg-engine/internal/logger"
	"github.com/nkarimi/automsg-engine/internal/model"
	"github.com/nkarimi/automsg-engine/internal/worker"
	"github.com/spf13/cobra"
)

var notifierCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Forward escalations to the owner webhook",
	RunE:  runNotifier,
}

func runNotifier(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)

	if cfg.OwnerHook.URL == "" {
		log.Println(">> notifier: owner_hook.url not configured, notifications will be dropped")
	}

	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "automsg"
	}
	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          model.EscalationsKafkaTopic,
		GroupID:        groupID + "-notifier",
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	w := worker.NewNotifier(consumer, cfg.OwnerHook.URL, time.Duration(cfg.OwnerHook.TimeoutMs)*time.Millisecond)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf(">> notifier started topic=%s group=%s-notifier hook=%s",
		model.EscalationsKafkaTopic, groupID, cfg.OwnerHook.URL)

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
