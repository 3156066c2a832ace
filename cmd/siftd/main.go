package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/siftmod/sift/casestore"
	"github.com/siftmod/sift/classifier"
	"github.com/siftmod/sift/decisionstore"
	"github.com/siftmod/sift/engine"
	"github.com/siftmod/sift/similarity"

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
		Name:    "siftd",
		Usage:   "content moderation decision daemon",
		Version: versioninfo.Short(),
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string: sqlite:// or postgres://",
			Value:   "sqlite://data/siftd/sift.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Value:   40,
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL: redis://<user>:<pass>@<hostname>:6379/<db>",
			EnvVars: []string{"SIFTD_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "classifier-host",
			Usage:   "moderation classifier API endpoint; empty disables classification (everything scans clean)",
			EnvVars: []string{"SIFTD_CLASSIFIER_HOST"},
		},
		&cli.StringFlag{
			Name:    "classifier-api-key",
			EnvVars: []string{"SIFTD_CLASSIFIER_API_KEY", "OPENAI_API_KEY"},
		},
		&cli.IntFlag{
			Name:    "classifier-rate-limit",
			Usage:   "max number of requests per second to the classifier API",
			Value:   10,
			EnvVars: []string{"SIFTD_CLASSIFIER_RATE_LIMIT"},
		},
		&cli.Float64Flag{
			Name:    "similarity-threshold",
			Usage:   "minimum normalized similarity ratio for an approximate dedup match",
			Value:   similarity.DefaultThreshold,
			EnvVars: []string{"SIFTD_SIMILARITY_THRESHOLD"},
		},
		&cli.IntFlag{
			Name:    "recent-window",
			Usage:   "number of recent decisions scanned for approximate matches",
			Value:   similarity.DefaultWindowSize,
			EnvVars: []string{"SIFTD_RECENT_WINDOW"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":4999",
			EnvVars: []string{"SIFTD_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":4998",
			EnvVars: []string{"SIFTD_METRICS_LISTEN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		shutdownTracing, err := configOTEL(ctx, "siftd")
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("shutting down trace exporter", "err", err)
			}
		}()

		db, err := setupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
		if err != nil {
			return err
		}

		decisions, err := decisionstore.NewGormDecisionStore(db)
		if err != nil {
			return fmt.Errorf("initializing decision store: %w", err)
		}
		reviewLog, err := engine.NewGormReviewLog(db)
		if err != nil {
			return fmt.Errorf("initializing review log: %w", err)
		}
		settings, err := engine.NewGormSettingsStore(db)
		if err != nil {
			return fmt.Errorf("initializing settings store: %w", err)
		}

		var journal casestore.Journal = &casestore.NopJournal{}
		var decisionCache similarity.DecisionCache
		if redisURL := cctx.String("redis-url"); redisURL != "" {
			j, err := casestore.NewRedisJournal(redisURL)
			if err != nil {
				return fmt.Errorf("initializing redis case journal: %w", err)
			}
			journal = j

			c, err := similarity.NewRedisDecisionCache(redisURL, 30*time.Minute)
			if err != nil {
				return fmt.Errorf("initializing redis decision cache: %w", err)
			}
			decisionCache = c
		} else {
			decisionCache = similarity.NewMemDecisionCache(10_000, 30*time.Minute)
		}

		var cls classifier.Classifier
		if host := cctx.String("classifier-host"); host != "" {
			cls = classifier.NewClient(host, cctx.String("classifier-api-key"), cctx.Int("classifier-rate-limit"))
		} else {
			logger.Warn("no classifier host configured, all content scans clean")
			cls = &classifier.Mock{}
		}

		matcher := similarity.NewMatcher(decisions, decisionCache)
		matcher.Threshold = cctx.Float64("similarity-threshold")
		matcher.WindowSize = cctx.Int("recent-window")

		eng := &engine.Engine{
			Logger:     logger,
			Classifier: cls,
			Matcher:    matcher,
			Decisions:  decisions,
			Cases:      casestore.NewRegistry(),
			Journal:    journal,
			ReviewLog:  reviewLog,
			Settings:   settings,
			Config:     engine.DefaultConfig(),
		}
		if err := eng.Rehydrate(ctx); err != nil {
			return fmt.Errorf("restoring open flag cases: %w", err)
		}

		srv := NewServer(eng, Config{
			Logger: logger,
			Bind:   cctx.String("bind"),
		})

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		return srv.RunAPI()
	},
}
