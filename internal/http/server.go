package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/nkarimi/automsg-engine/internal/config"
	"github.com/nkarimi/automsg-engine/internal/engine"
	"github.com/nkarimi/automsg-engine/internal/escalation"
	"github.com/nkarimi/automsg-engine/internal/http/middleware"
	"github.com/nkarimi/automsg-engine/internal/lock"
	"github.com/nkarimi/automsg-engine/internal/metrics"
	"github.com/nkarimi/automsg-engine/internal/repository"
	"github.com/nkarimi/automsg-engine/internal/settings"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client) (*Server, error) {
	// repos (MySQL)
	settingsRepo := repository.NewSettingsRepository(mysqlDB)
	scheduledRepo := repository.NewScheduledRepository(mysqlDB)
	historyRepo := repository.NewHistoryRepository(mysqlDB)
	escalationsRepo := repository.NewEscalationsRepository(mysqlDB)
	excludedRepo := repository.NewExcludedRepository(mysqlDB)
	conversationsRepo := repository.NewConversationsRepository(mysqlDB)
	outboxRepo := repository.NewOutboxRepository(mysqlDB)

	// repos (ClickHouse read model)
	chHistoryRepo := repository.NewCHHistoryRepository(clickhouseDB)

	// services
	store := settings.NewStore(settingsRepo)
	if err := store.Load(context.Background()); err != nil {
		return nil, err
	}
	router := escalation.NewRouter(escalationsRepo, outboxRepo, cfg.Engine.NotifyOwner)
	locks := lock.NewCustomerLocks(rds, cfg.Engine.LockTTL)
	guardSrc := repository.GuardSource{History: historyRepo, Excluded: excludedRepo}
	eng := engine.New(store, scheduledRepo, conversationsRepo, guardSrc, router, locks, cfg.Engine.SLAWindow)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:src:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1")
	v1.POST("/events", handleEvent(eng), rlMW)

	v1.GET("/settings", getSettings(store))
	v1.PUT("/settings", updateSettings(store))
	v1.PUT("/settings/templates/:trigger", updateTemplate(store))

	v1.GET("/history", listHistory(historyRepo))
	v1.GET("/reports/history", listHistoryReport(chHistoryRepo))

	v1.GET("/scheduled", listScheduled(scheduledRepo))
	v1.DELETE("/scheduled/:id", cancelScheduled(scheduledRepo))

	v1.GET("/escalations", listEscalations(escalationsRepo))
	v1.PATCH("/escalations/:id/status", updateEscalationStatus(router))

	v1.GET("/excluded-numbers", listExcluded(excludedRepo))
	v1.POST("/excluded-numbers", addExcluded(excludedRepo))
	v1.DELETE("/excluded-numbers/:phone", removeExcluded(excludedRepo))

	v1.GET("/conversations/overdue", listOverdue(conversationsRepo))

	return &Server{e: e}, nil
}

func (s *Server) Start(addr string) error            { return s.e.Start(addr) }
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
