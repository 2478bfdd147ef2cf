package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v2"

	"github.com/cardhouse/linesman/chatmod/consumer"
	"github.com/cardhouse/linesman/chatmod/cooldown"
	"github.com/cardhouse/linesman/chatmod/engine"
	"github.com/cardhouse/linesman/chatmod/ledger"
	"github.com/cardhouse/linesman/chatmod/windowstore"
	"github.com/cardhouse/linesman/platform/rest"
)

type Config struct {
	GatewayHost     string
	APIHost         string
	APIToken        string
	SelfID          string
	RedisURL        string
	AdminPassword   string
	SlackWebhookURL string
	OutboundRPS     int
	ConfirmCooldown time.Duration
	Policy          engine.Policy
	Logger          *slog.Logger
}

func configFromFlags(cctx *cli.Context, logger *slog.Logger) Config {
	policy := engine.DefaultPolicy()
	policy.UserLimit = cctx.Int("user-limit")
	policy.UserWindow = cctx.Duration("user-window")
	policy.GlobalLimit = cctx.Int("global-limit")
	policy.GlobalWindow = cctx.Duration("global-window")
	policy.DuplicateThreshold = cctx.Int("duplicate-threshold")
	policy.Rules.MaxMentions = cctx.Int("max-mentions")
	policy.Rules.BannedKeywords = append(policy.Rules.BannedKeywords, cctx.StringSlice("banned-keywords")...)
	policy.Rules.SuspiciousDomains = append(policy.Rules.SuspiciousDomains, cctx.StringSlice("suspicious-domains")...)
	policy.RiskThreshold = cctx.Int("risk-threshold")
	policy.MaxWarnings = cctx.Int("max-warnings")
	policy.AmnestyPeriod = cctx.Duration("amnesty-period")
	policy.YellowRoleName = cctx.String("yellow-role")
	policy.BlackRoleName = cctx.String("black-role")
	policy.WarnLogChannel = cctx.String("warn-log-channel")
	policy.SpamLogChannel = cctx.String("spam-log-channel")
	policy.BanLogChannel = cctx.String("ban-log-channel")

	return Config{
		GatewayHost:     cctx.String("gateway-host"),
		APIHost:         cctx.String("api-host"),
		APIToken:        cctx.String("api-token"),
		SelfID:          cctx.String("self-id"),
		RedisURL:        cctx.String("redis-url"),
		AdminPassword:   cctx.String("admin-password"),
		SlackWebhookURL: cctx.String("slack-webhook-url"),
		OutboundRPS:     cctx.Int("outbound-rps"),
		ConfirmCooldown: cctx.Duration("confirm-cooldown"),
		Policy:          policy,
		Logger:          logger,
	}
}

type Server struct {
	logger   *slog.Logger
	engine   *engine.Engine
	consumer *consumer.GatewayConsumer
	echo     *echo.Echo
	rdb      *redis.Client
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	var windows windowstore.WindowStore
	var ldg ledger.Ledger
	var gate cooldown.Gate
	var rdb *redis.Client
	if config.RedisURL != "" {
		// generic client, for cursor state
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %w", err)
		}
		rdb = redis.NewClient(opt)
		// check redis connection
		if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}

		win, err := windowstore.NewRedisWindowStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis windowstore: %w", err)
		}
		windows = win

		rl, err := ledger.NewRedisLedger(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis ledger: %w", err)
		}
		ldg = rl

		rg, err := cooldown.NewRedisGate(config.RedisURL, config.ConfirmCooldown)
		if err != nil {
			return nil, fmt.Errorf("initializing redis confirm gate: %w", err)
		}
		gate = rg
	} else {
		windows = windowstore.NewMemWindowStore()
		ldg = ledger.NewMemLedger()
		gate = cooldown.NewMemGate(5_000, config.ConfirmCooldown)
	}

	eng := &engine.Engine{
		Logger:   logger,
		Policy:   config.Policy,
		Windows:  windows,
		Ledger:   ldg,
		Gate:     gate,
		Platform: rest.NewClient(config.APIHost, config.APIToken, config.OutboundRPS),
		SelfID:   config.SelfID,
	}
	if config.SlackWebhookURL != "" {
		logger.Info("configuring slack audit notifications")
		eng.Notifier = &engine.SlackNotifier{SlackWebhookURL: config.SlackWebhookURL}
	}

	s := &Server{
		logger: logger,
		engine: eng,
		consumer: &consumer.GatewayConsumer{
			Logger:      logger,
			RedisClient: rdb,
			Engine:      eng,
			Host:        config.GatewayHost,
		},
		rdb: rdb,
	}
	s.echo = s.buildAPI(config.AdminPassword)
	return s, nil
}

// Run consumes the gateway event stream until the context is cancelled, then
// shuts the HTTP API down.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		if err := s.consumer.RunPersistCursor(ctx); err != nil {
			s.logger.Error("cursor persist loop failed", "err", err)
		}
	}()

	err := s.consumer.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP API shutdown failed", "err", err)
	}
	if err == context.Canceled {
		return nil
	}
	return err
}

// RunAmnestySweep periodically resets warning records that have aged past the
// amnesty period.
func (s *Server) RunAmnestySweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			reset, err := s.engine.SweepAmnesty(ctx, time.Now())
			if err != nil {
				// try again on the next tick
				s.logger.Error("amnesty sweep failed", "err", err)
				continue
			}
			s.logger.Info("amnesty sweep complete", "reset", len(reset))
		}
	}
}
