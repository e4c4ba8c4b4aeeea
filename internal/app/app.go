// Package app is the process plumbing shared by every service binary:
// configuration, connections, the HTTP server, the event consumer and an
// orderly shutdown.
package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-market-saga/internal/authclient"
	"github.com/ariefcatur/go-market-saga/internal/config"
	"github.com/ariefcatur/go-market-saga/internal/events"
	"github.com/ariefcatur/go-market-saga/internal/httpx"
	kafkax "github.com/ariefcatur/go-market-saga/internal/kafka"
	"github.com/ariefcatur/go-market-saga/internal/logx"
	"github.com/ariefcatur/go-market-saga/internal/postgres"
	"github.com/ariefcatur/go-market-saga/internal/redisx"
	"github.com/ariefcatur/go-market-saga/migrations"
)

// Runtime holds the open connections of one service process.
type Runtime struct {
	Config   config.Config
	Log      *logrus.Entry
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Producer *kafkax.Producer
	Events   *events.Publisher
}

// Setup wires a service once its Runtime is up. It registers HTTP routes
// on mux and event handlers on router, and may start extra jobs on g.
type Setup func(ctx context.Context, rt *Runtime, mux *chi.Mux, router *events.Router, g *errgroup.Group) error

// Command builds the service binary: the default action serves, the
// migrate subcommand applies the service's schema and exits.
func Command(service, usage string, setup Setup) *cli.App {
	return &cli.App{
		Name:  service,
		Usage: usage,
		Action: func(c *cli.Context) error {
			return serve(c.Context, service, setup)
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "apply database migrations and exit",
				Action: func(c *cli.Context) error {
					cfg, log, err := load(service)
					if err != nil {
						return err
					}
					if err := postgres.Migrate(cfg.PostgresDSN, migrations.FS, service); err != nil {
						return err
					}
					log.Info("migrations applied")
					return nil
				},
			},
		},
	}
}

// Main runs app and exits non-zero on failure.
func Main(app *cli.App) {
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("exit")
	}
}

func load(service string) (config.Config, *logrus.Entry, error) {
	_ = godotenv.Load()
	cfg, err := config.Load(service)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logx.New(cfg.ServiceName, cfg.LogLevel), nil
}

func serve(parent context.Context, service string, setup Setup) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := load(service)
	if err != nil {
		return err
	}

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Check(ctx, rdb); err != nil {
		log.WithError(err).Warn("redis unavailable, continuing without dedup and cache")
	}

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start()
	defer func() {
		prod.Close()
		prod.WaitClosed()
	}()

	rt := &Runtime{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Redis:    rdb,
		Producer: prod,
		Events:   events.NewPublisher(prod, cfg.ServiceName),
	}

	g, gctx := errgroup.WithContext(ctx)
	mux := httpx.NewRouter(log)
	router := events.NewRouter(log)
	router.Use(redisx.Dedup(rdb, cfg.ServiceName, log))
	if err := setup(gctx, rt, mux, router, g); err != nil {
		return errors.Wrap(err, "setup")
	}

	if len(router.Types()) > 0 {
		dlq := kafkax.NewDeadLetterWriter(cfg.KafkaBrokers)
		defer func() {
			if err := dlq.Close(); err != nil {
				log.WithError(err).Warn("dead-letter writer close")
			}
		}()
		cons := kafkax.NewConsumer(kafkax.ConsumerConfig{
			Brokers:     cfg.KafkaBrokers,
			Group:       cfg.ConsumerGroup,
			Topic:       service,
			Workers:     cfg.ConsumerWorkers,
			MaxAttempts: cfg.ConsumerMaxAttempts,
		}, dlq, log)
		g.Go(func() error {
			log.WithFields(logrus.Fields{
				"group":   cfg.ConsumerGroup,
				"topic":   service,
				"workers": cfg.ConsumerWorkers,
				"events":  router.Types(),
			}).Info("consumer started")
			return cons.Start(gctx, router.Dispatch)
		})
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr).Info("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Identifier validates bearer tokens against the user service, with the
// configured timeout and cache.
func (rt *Runtime) Identifier() *authclient.Cached {
	c := rt.Config
	return authclient.NewCached(authclient.New(c.AuthURL, c.AuthTimeout), c.AuthCacheTTL, c.AuthCacheSize, rt.Log)
}
