package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/callummance/marshal/bot"
	"github.com/callummance/marshal/db"
	"github.com/callummance/marshal/moderation"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	err := godotenv.Load()
	if err != nil {
		logrus.Warnf("Failed to load .env file due to error %v", err)
	}

	app := cli.App{
		Name:   "marshal",
		Usage:  "automated per-server moderation bot for discord",
		Flags:  flags(),
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "token",
			Usage:    "discord bot token",
			EnvVars:  []string{"MARSHAL_DISCORD_TOKEN"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "prefix",
			Usage:   "command prefix",
			Value:   "$",
			EnvVars: []string{"MARSHAL_PREFIX"},
		},
		&cli.StringFlag{
			Name:    "dev-uid",
			Usage:   "discord user ID who may run commands in every server",
			EnvVars: []string{"MARSHAL_DISCORD_DEV_UID"},
		},
		&cli.StringSliceFlag{
			Name:    "allowed-guilds",
			Usage:   "only moderate these servers (default: all)",
			EnvVars: []string{"MARSHAL_ALLOWED_GUILDS"},
		},
		&cli.StringFlag{
			Name:    "store",
			Usage:   "policy store backend: file, bolt or rethinkdb",
			Value:   "file",
			EnvVars: []string{"MARSHAL_STORE"},
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Usage:   "directory holding one policy file per server (file store)",
			Value:   "data",
			EnvVars: []string{"MARSHAL_DATA_DIR"},
		},
		&cli.StringFlag{
			Name:    "bolt-path",
			Usage:   "database file (bolt store)",
			Value:   filepath.Join("data", "marshal.db"),
			EnvVars: []string{"MARSHAL_BOLT_PATH"},
		},
		&cli.StringFlag{
			Name:    "rethink-addr",
			Usage:   "rethinkdb address (rethinkdb store)",
			Value:   "localhost:28015",
			EnvVars: []string{"MARSHAL_RETHINKDB_ADDR"},
		},
		&cli.StringFlag{
			Name:    "rethink-db",
			Usage:   "rethinkdb database name (rethinkdb store)",
			Value:   "marshal",
			EnvVars: []string{"MARSHAL_RETHINKDB_DB"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "address to serve prometheus metrics on, or empty to disable",
			Value:   ":9464",
			EnvVars: []string{"MARSHAL_METRICS_LISTEN"},
		},
		&cli.IntFlag{
			Name:    "spam-cache-size",
			Usage:   "number of (server, user) message windows kept for spam detection",
			Value:   moderation.DefaultSpamCacheSize,
			EnvVars: []string{"MARSHAL_SPAM_CACHE_SIZE"},
		},
		&cli.IntFlag{
			Name:    "queue-size",
			Usage:   "number of gateway events buffered ahead of the moderation loop",
			Value:   256,
			EnvVars: []string{"MARSHAL_QUEUE_SIZE"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log level",
			Value:   "info",
			EnvVars: []string{"MARSHAL_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log format: text or json",
			Value:   "text",
			EnvVars: []string{"MARSHAL_LOG_FORMAT"},
		},
	}
}

func configureLogging(cctx *cli.Context) error {
	level, err := logrus.ParseLevel(cctx.String("log-level"))
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	switch cctx.String("log-format") {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", cctx.String("log-format"))
	}
	return nil
}

func openBackend(cctx *cli.Context) (db.Backend, error) {
	switch cctx.String("store") {
	case "file":
		return db.NewFileBackend(cctx.String("data-dir"))
	case "bolt":
		return db.OpenBolt(cctx.String("bolt-path"))
	case "rethinkdb":
		return db.InitRethink(cctx.String("rethink-addr"), cctx.String("rethink-db"))
	default:
		return nil, fmt.Errorf("unknown store backend %q", cctx.String("store"))
	}
}

func run(cctx *cli.Context) error {
	if err := configureLogging(cctx); err != nil {
		return err
	}

	backend, err := openBackend(cctx)
	if err != nil {
		logrus.Errorf("Failed to open %v policy store due to error %v", cctx.String("store"), err)
		return err
	}
	store := db.NewPolicyStore(backend)
	if err := store.Load(cctx.Context); err != nil {
		logrus.Errorf("Failed to load guild policies due to error %v", err)
		backend.Close()
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			logrus.Errorf("Failed to flush policy store on shutdown: %v", err)
		}
	}()

	marshal, err := bot.Init(store, bot.Config{
		Token:         cctx.String("token"),
		Prefix:        cctx.String("prefix"),
		DevUID:        cctx.String("dev-uid"),
		AllowedGuilds: cctx.StringSlice("allowed-guilds"),
		QueueSize:     cctx.Int("queue-size"),
		Engine:        moderation.Config{SpamCacheSize: cctx.Int("spam-cache-size")},
	})
	if err != nil {
		logrus.Errorf("Failed to start discord bot")
		return err
	}
	if err := marshal.Start(); err != nil {
		logrus.Errorf("Failed to connect to discord due to error %v", err)
		return err
	}
	defer marshal.Close()

	logrus.Infof("Bot is now running. Press ^+C to exit.")
	addURL, err := marshal.BotAddURL()
	if err != nil {
		logrus.Errorf("Failed to generate bot add URL due to error %v", err)
	} else {
		logrus.Infof("Go to `%v` to add bot to your server", addURL)
	}

	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if addr := cctx.String("metrics-listen"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logrus.Infof("Serving metrics on %v", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		logrus.Info("Shutting down...")
		return nil
	})

	err = g.Wait()
	fmt.Println("Goodbye!")
	return err
}
