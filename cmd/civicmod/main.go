package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/civictrack/civictrack/automod/engine"
	"github.com/civictrack/civictrack/automod/spam"
	"github.com/civictrack/civictrack/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"gorm.io/gorm"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "civicmod",
		Usage:   "moderation and trust engine for civic issue reports",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"CIVICMOD_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format (text or json)",
			EnvVars: []string{"CIVICMOD_LOG_FMT", "LOG_FMT"},
		},
	}
	app.Before = func(cctx *cli.Context) error {
		_, err := cliutil.SetupSlog(cliutil.LogOptions{
			LogLevel:  cctx.String("log-level"),
			LogFormat: cctx.String("log-format"),
		})
		return err
	}

	app.Commands = []*cli.Command{
		runCmd,
		scoreCmd,
		suggestCmd,
	}

	return app.Run(args)
}

var databaseFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "database-url",
		Usage:   "database connection string for moderation state (sqlite:// or postgres://); empty keeps state in memory",
		Value:   "sqlite://data/civicmod/civicmod.db",
		EnvVars: []string{"DATABASE_URL"},
	},
	&cli.IntFlag{
		Name:    "max-db-connections",
		EnvVars: []string{"MAX_DB_CONNECTIONS"},
		Value:   40,
	},
	&cli.StringFlag{
		Name:    "sets-json-path",
		Usage:   "file path of JSON file containing static sets (moderators, exempt-accounts)",
		EnvVars: []string{"CIVICMOD_SETS_JSON_PATH"},
	},
}

var engineFlags = []cli.Flag{
	&cli.IntFlag{
		Name:    "auto-hide-threshold",
		Usage:   "number of community flags which hides content",
		Value:   engine.DefaultConfig().AutoHideThreshold,
		EnvVars: []string{"CIVICMOD_AUTO_HIDE_THRESHOLD"},
	},
	&cli.IntFlag{
		Name:    "spam-auto-hide-score",
		Usage:   "spam score (0-10) at which submissions are hidden",
		Value:   engine.DefaultConfig().SpamAutoHideScore,
		EnvVars: []string{"CIVICMOD_SPAM_AUTO_HIDE_SCORE"},
	},
	&cli.IntFlag{
		Name:    "warning-trust-penalty",
		Value:   engine.DefaultConfig().WarningTrustPenalty,
		EnvVars: []string{"CIVICMOD_WARNING_TRUST_PENALTY"},
	},
	&cli.IntFlag{
		Name:    "low-trust-report-floor",
		Usage:   "accounts with a lower trust score may not submit reports",
		Value:   engine.DefaultConfig().LowTrustReportFloor,
		EnvVars: []string{"CIVICMOD_LOW_TRUST_REPORT_FLOOR"},
	},
	&cli.IntFlag{
		Name:    "risk-suggestion-threshold",
		Value:   engine.DefaultConfig().RiskSuggestionThreshold,
		EnvVars: []string{"CIVICMOD_RISK_SUGGESTION_THRESHOLD"},
	},
	&cli.IntFlag{
		Name:    "suspend-risk-threshold",
		Value:   engine.DefaultConfig().SuspendRiskThreshold,
		EnvVars: []string{"CIVICMOD_SUSPEND_RISK_THRESHOLD"},
	},
	&cli.IntFlag{
		Name:    "ban-risk-threshold",
		Value:   engine.DefaultConfig().BanRiskThreshold,
		EnvVars: []string{"CIVICMOD_BAN_RISK_THRESHOLD"},
	},
	&cli.IntFlag{
		Name:    "recent-ban-window-days",
		Value:   engine.DefaultConfig().RecentBanWindowDays,
		EnvVars: []string{"CIVICMOD_RECENT_BAN_WINDOW_DAYS"},
	},
	&cli.IntFlag{
		Name:    "initial-trust-score",
		Value:   engine.DefaultConfig().InitialTrustScore,
		EnvVars: []string{"CIVICMOD_INITIAL_TRUST_SCORE"},
	},
	&cli.BoolFlag{
		Name:    "disable-spam-detection",
		EnvVars: []string{"CIVICMOD_DISABLE_SPAM_DETECTION"},
	},
	&cli.BoolFlag{
		Name:    "disable-community-moderation",
		Usage:   "never hide content automatically, from flags or spam score",
		EnvVars: []string{"CIVICMOD_DISABLE_COMMUNITY_MODERATION"},
	},
	&cli.IntFlag{
		Name:    "notify-quota-hour",
		Usage:   "max notifications sent per hour (0 for no limit)",
		Value:   engine.DefaultNotifyQuotaHour,
		EnvVars: []string{"CIVICMOD_NOTIFY_QUOTA_HOUR"},
	},
}

func configFromFlags(cctx *cli.Context) engine.Config {
	return engine.Config{
		AutoHideThreshold:          cctx.Int("auto-hide-threshold"),
		SpamAutoHideScore:          cctx.Int("spam-auto-hide-score"),
		WarningTrustPenalty:        cctx.Int("warning-trust-penalty"),
		LowTrustReportFloor:        cctx.Int("low-trust-report-floor"),
		RiskSuggestionThreshold:    cctx.Int("risk-suggestion-threshold"),
		SuspendRiskThreshold:       cctx.Int("suspend-risk-threshold"),
		BanRiskThreshold:           cctx.Int("ban-risk-threshold"),
		RecentBanWindowDays:        cctx.Int("recent-ban-window-days"),
		InitialTrustScore:          cctx.Int("initial-trust-score"),
		DisableSpamDetection:       cctx.Bool("disable-spam-detection"),
		DisableCommunityModeration: cctx.Bool("disable-community-moderation"),
		NotifyQuotaHour:            cctx.Int("notify-quota-hour"),
	}
}

func openDatabase(cctx *cli.Context) (*gorm.DB, error) {
	if cctx.String("database-url") == "" {
		return nil, nil
	}
	return cliutil.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: append(append([]cli.Flag{
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for counters, caches and indexes; empty keeps them in memory",
			EnvVars: []string{"CIVICMOD_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3999",
			EnvVars: []string{"CIVICMOD_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3998",
			EnvVars: []string{"CIVICMOD_METRICS_LISTEN"},
		},
		&cli.Float64Flag{
			Name:    "rate-limit",
			Usage:   "max API requests per second per client IP (0 for no limit)",
			Value:   20,
			EnvVars: []string{"CIVICMOD_RATE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "content-url-prefix",
			Usage:   "URL prefix for links to content in notifications",
			EnvVars: []string{"CIVICMOD_CONTENT_URL_PREFIX"},
		},
	}, databaseFlags...), engineFlags...),
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		logger := slog.Default().With("system", "civicmod")

		shutdownOTEL, err := configOTEL(ctx, "civicmod")
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		defer shutdownOTEL()

		db, err := openDatabase(cctx)
		if err != nil {
			return err
		}
		var rdb *redis.Client
		if cctx.String("redis-url") != "" {
			rdb, err = cliutil.OpenRedis(ctx, cctx.String("redis-url"))
			if err != nil {
				return err
			}
		}

		srv, err := NewServer(Config{
			Logger:           logger,
			Bind:             cctx.String("bind"),
			MetricsListen:    cctx.String("metrics-listen"),
			DB:               db,
			Redis:            rdb,
			SetsFileJSON:     cctx.String("sets-json-path"),
			SlackWebhookURL:  cctx.String("slack-webhook-url"),
			ContentURLPrefix: cctx.String("content-url-prefix"),
			Engine:           configFromFlags(cctx),
			RateLimit:        cctx.Float64("rate-limit"),
		})
		if err != nil {
			return err
		}
		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run civicmod service: %w", err)
		}
		return nil
	},
}

var scoreCmd = &cli.Command{
	Name:      "score",
	Usage:     "print the spam score breakdown for a title and description",
	ArgsUsage: "<title> <description>",
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() != 2 {
			return fmt.Errorf("expected title and description arguments")
		}
		rep := spam.Explain(cctx.Args().Get(0), cctx.Args().Get(1))
		return printJSON(rep)
	},
}

var suggestCmd = &cli.Command{
	Name:  "suggest",
	Usage: "print current intervention suggestions from the database",
	Flags: append(append([]cli.Flag{}, databaseFlags...), engineFlags...),
	Action: func(cctx *cli.Context) error {
		if cctx.String("database-url") == "" {
			return fmt.Errorf("a database is required")
		}
		db, err := openDatabase(cctx)
		if err != nil {
			return err
		}
		eng, err := NewEngine(Config{
			DB:           db,
			SetsFileJSON: cctx.String("sets-json-path"),
			Engine:       configFromFlags(cctx),
		})
		if err != nil {
			return err
		}
		out, err := eng.ListSuggestions(context.Background())
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
