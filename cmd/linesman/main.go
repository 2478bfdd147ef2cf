package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "linesman",
		Usage:   "chat moderation daemon (keeps the match clean)",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "gateway-host",
			Usage:   "scheme, hostname, and port of the chat gateway websocket",
			Value:   "ws://localhost:6200",
			EnvVars: []string{"LINESMAN_GATEWAY_HOST"},
		},
		&cli.StringFlag{
			Name:    "api-host",
			Usage:   "scheme, hostname, and port of the chat platform REST API",
			Value:   "http://localhost:6201",
			EnvVars: []string{"LINESMAN_API_HOST"},
		},
		&cli.StringFlag{
			Name:    "api-token",
			Usage:   "bot token for the platform REST API",
			EnvVars: []string{"LINESMAN_API_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "self-id",
			Usage:   "the bot's own user ID (recorded as staff on audit events)",
			EnvVars: []string{"LINESMAN_SELF_ID"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the moderation daemon",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL; stores are in-memory when unset",
			EnvVars: []string{"REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the HTTP API",
			Value:   ":6210",
			EnvVars: []string{"LINESMAN_BIND"},
		},
		&cli.StringFlag{
			Name:    "admin-password",
			Usage:   "admin authentication password for the admin API endpoints",
			EnvVars: []string{"LINESMAN_ADMIN_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "optional slack incoming webhook for audit events",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.IntFlag{
			Name:    "outbound-rps",
			Usage:   "max requests per second to the platform REST API",
			Value:   20,
			EnvVars: []string{"LINESMAN_OUTBOUND_RPS"},
		},
		&cli.IntFlag{
			Name:    "user-limit",
			Usage:   "max messages per user inside the user window",
			Value:   2,
			EnvVars: []string{"LINESMAN_USER_LIMIT"},
		},
		&cli.DurationFlag{
			Name:    "user-window",
			Value:   120 * time.Second,
			EnvVars: []string{"LINESMAN_USER_WINDOW"},
		},
		&cli.IntFlag{
			Name:    "global-limit",
			Usage:   "max messages community-wide inside the global window (0 disables)",
			Value:   5,
			EnvVars: []string{"LINESMAN_GLOBAL_LIMIT"},
		},
		&cli.DurationFlag{
			Name:    "global-window",
			Value:   60 * time.Second,
			EnvVars: []string{"LINESMAN_GLOBAL_WINDOW"},
		},
		&cli.IntFlag{
			Name:    "duplicate-threshold",
			Usage:   "identical messages inside the user window before flagging",
			Value:   3,
			EnvVars: []string{"LINESMAN_DUPLICATE_THRESHOLD"},
		},
		&cli.IntFlag{
			Name:    "max-mentions",
			Value:   5,
			EnvVars: []string{"LINESMAN_MAX_MENTIONS"},
		},
		&cli.IntFlag{
			Name:    "risk-threshold",
			Usage:   "risk score at or above which a message is blocked",
			Value:   50,
			EnvVars: []string{"LINESMAN_RISK_THRESHOLD"},
		},
		&cli.IntFlag{
			Name:    "max-warnings",
			Usage:   "warning count at which a user is removed",
			Value:   3,
			EnvVars: []string{"LINESMAN_MAX_WARNINGS"},
		},
		&cli.DurationFlag{
			Name:    "amnesty-period",
			Usage:   "good-behavior period after which warnings reset",
			Value:   30 * 24 * time.Hour,
			EnvVars: []string{"LINESMAN_AMNESTY_PERIOD"},
		},
		&cli.DurationFlag{
			Name:    "sweep-interval",
			Usage:   "how often the amnesty sweeper scans the ledger",
			Value:   24 * time.Hour,
			EnvVars: []string{"LINESMAN_SWEEP_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "confirm-cooldown",
			Usage:   "cooldown between privileged broadcast confirms per user",
			Value:   60 * time.Second,
			EnvVars: []string{"LINESMAN_CONFIRM_COOLDOWN"},
		},
		&cli.StringSliceFlag{
			Name:    "banned-keywords",
			Usage:   "extra banned keywords (added to the stock list)",
			EnvVars: []string{"LINESMAN_BANNED_KEYWORDS"},
		},
		&cli.StringSliceFlag{
			Name:    "suspicious-domains",
			Usage:   "extra suspicious link domains (added to the stock list)",
			EnvVars: []string{"LINESMAN_SUSPICIOUS_DOMAINS"},
		},
		&cli.StringFlag{
			Name:    "yellow-role",
			Value:   "Yellow Card",
			EnvVars: []string{"LINESMAN_YELLOW_ROLE"},
		},
		&cli.StringFlag{
			Name:    "black-role",
			Value:   "Black Card",
			EnvVars: []string{"LINESMAN_BLACK_ROLE"},
		},
		&cli.StringFlag{
			Name:    "warn-log-channel",
			Value:   "warn-log",
			EnvVars: []string{"LINESMAN_WARN_LOG_CHANNEL"},
		},
		&cli.StringFlag{
			Name:    "spam-log-channel",
			Value:   "spam-log",
			EnvVars: []string{"LINESMAN_SPAM_LOG_CHANNEL"},
		},
		&cli.StringFlag{
			Name:    "ban-log-channel",
			Value:   "ban-log",
			EnvVars: []string{"LINESMAN_BAN_LOG_CHANNEL"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv, err := NewServer(configFromFlags(cctx, logger))
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunAPI(cctx.String("bind")); err != nil {
				logger.Error("HTTP API failed", "err", err)
			}
		}()
		go func() {
			if err := srv.RunAmnestySweep(ctx, cctx.Duration("sweep-interval")); err != nil {
				logger.Error("amnesty sweeper failed", "err", err)
			}
		}()

		return srv.Run(ctx)
	},
}
