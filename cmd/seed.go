package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nkarimi/automsg-engine/internal/config"
	"github.com/nkarimi/automsg-engine/internal/db"
	"github.com/nkarimi/automsg-engine/internal/model"
	"github.com/nkarimi/automsg-engine/internal/repository"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo settings, conversations and exclusions",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// 2) connect MySQL
		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		ctx := context.Background()

		log.Println(">> Seeding demo settings...")
		if err := seedSettings(ctx, sqlDB); err != nil {
			return err
		}
		log.Println(">> Seeding demo conversations...")
		if err := seedConversations(ctx, sqlDB); err != nil {
			return err
		}
		log.Println(">> Seeding excluded numbers...")
		if err := seedExcluded(ctx, sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed ✅")
		return nil
	},
}

// seedSettings writes the singleton settings row with a full template set,
// engine disabled so nothing fires until an operator flips it on.
func seedSettings(ctx context.Context, dbx *sqlx.DB) error {
	s := model.AutoMessageSettings{
		MaxMessagesPerTopic: 3,
		CooldownHours:       24,
		DNDStartHour:        21,
		DNDEndHour:          9,
		NoResponseDays:      2,
		Enabled:             false,
		Templates: model.Templates{
			NoResponse:          "Hi {name}, just checking in about {topic} — still interested?",
			PartialConversation: "Hi {name}, we didn't finish our chat about {topic}. Anything I can help with?",
			PriceShared:         "Hi {name}, any questions about the price we shared for {topic}?",
			OrderConfirmed:      "Thanks {name}! Your order {order_id} is confirmed.",
			PaymentReceived:     "Payment received for order {order_id}. Thank you, {name}!",
			OrderCompleted:      "Your order {order_id} is complete. We'd love your feedback, {name}!",
			TicketCreated:       "Hi {name}, we opened ticket {ticket_id} and will get back to you shortly.",
			TicketUpdated:       "Update on ticket {ticket_id}: {status}.",
			TicketResolved:      "Ticket {ticket_id} is resolved. Let us know if anything else comes up, {name}.",
			AIUncertain:         "Hi {name}, a specialist will follow up on your question shortly.",
			HumanTakeover:       "Hi {name}, one of our team members has taken over this conversation.",
		},
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("seed settings invalid: %w", err)
	}
	if err := repository.NewSettingsRepository(dbx).Save(ctx, s); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// seedConversations inserts 3 deterministic demo conversations (idempotent).
func seedConversations(ctx context.Context, dbx *sqlx.DB) error {
	now := time.Now()
	rows := []struct {
		id         string
		customerID int64
		phone      string
		status     model.ConversationStatus
		lastAt     time.Time
		lastFrom   model.MessageDirection
	}{
		{"conv-demo-1", 1001, "+15550000101", model.ConversationActive, now.Add(-30 * time.Minute), model.FromCustomer},
		{"conv-demo-2", 1002, "+15550000102", model.ConversationActive, now.Add(-72 * time.Hour), model.FromOwner},
		{"conv-demo-3", 1003, "+15550000103", model.ConversationWaitingForOwner, now.Add(-6 * time.Hour), model.FromCustomer},
	}

	const q = `
INSERT INTO conversations
    (id, customer_id, phone, status, last_message_at, last_message_from, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    status            = VALUES(status),
    last_message_at   = VALUES(last_message_at),
    last_message_from = VALUES(last_message_from),
    updated_at        = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, c := range rows {
		if _, err := tx.ExecContext(ctx, q, c.id, c.customerID, c.phone, c.status, c.lastAt, c.lastFrom, now); err != nil {
			return fmt.Errorf("insert conversation %q: %w", c.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit conversations: %w", err)
	}
	return nil
}

// seedExcluded marks a couple of known non-customer numbers.
func seedExcluded(ctx context.Context, dbx *sqlx.DB) error {
	repo := repository.NewExcludedRepository(dbx)
	tmpExpiry := time.Now().Add(7 * 24 * time.Hour)

	numbers := []model.ExcludedNumber{
		{Phone: "+15550000900", Tag: model.TagDealer, Reason: "regional dealer line"},
		{Phone: "+15550000901", Tag: model.TagInternal, Reason: "office test phone"},
		{Phone: "+15550000902", Tag: model.TagOther, Reason: "asked to pause", IsTemporary: true, ExpiresAt: &tmpExpiry},
	}
	for _, n := range numbers {
		if err := repo.Upsert(ctx, n); err != nil {
			return fmt.Errorf("upsert excluded %q: %w", n.Phone, err)
		}
	}
	return nil
}
