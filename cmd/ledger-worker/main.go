package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-ledger-orders/internal/activity"
	"github.com/ariefcatur/go-ledger-orders/internal/config"
	"github.com/ariefcatur/go-ledger-orders/internal/docstore"
	kafkax "github.com/ariefcatur/go-ledger-orders/internal/kafka"
	"github.com/ariefcatur/go-ledger-orders/internal/ledger"
	"github.com/ariefcatur/go-ledger-orders/internal/logging"
	"github.com/ariefcatur/go-ledger-orders/internal/orders"
	"github.com/ariefcatur/go-ledger-orders/internal/postgres"
	"github.com/ariefcatur/go-ledger-orders/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/thejerf/suture/v4"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err := cfg.Validate(true); err != nil {
		logging.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logging.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		logging.Fatal().Err(err).Msg("db migrate")
	}

	// Redis
	rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		logging.Fatal().Err(err).Msg("redis connect")
	}
	defer rdb.Close()

	// Ledger
	client, err := ledger.Dial(ctx, ledgerConfig(cfg.Ledger))
	if err != nil {
		logging.Fatal().Err(err).Msg("ledger dial")
	}
	defer client.Close()

	// Requeue producer for the reconciler (same topic the api publishes to)
	prodCtx, cancelProd := context.WithCancel(context.Background())
	defer cancelProd()
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicLedgerSubmit, 256)
	prod.Start(prodCtx)

	store := &docstore.Postgres{DB: db}
	repo := &orders.Repo{Store: store}
	serviceName := cfg.ServiceName + "-ledger-worker"
	cache := &orders.StatusCache{R: rdb, Producer: serviceName}

	confirmer := &orders.Confirmer{
		Repo:     repo,
		Ledger:   submitter(client, cfg.Ledger),
		Activity: activity.New(store),
		Dedup:    &redisx.Dedup{R: rdb, Scope: "ledger-worker"},
		Notify:   cache,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.Worker.Group, orders.TopicLedgerSubmit, cfg.Worker.Workers)
	defer cons.Close()

	reconciler := &orders.Reconciler{
		Repo:       repo,
		Lookup:     client,
		Requeue:    &orders.QueueMirror{Producer: prod, ServiceName: serviceName},
		Notify:     cache,
		Interval:   cfg.Worker.ReconcileInterval,
		PendingAge: cfg.Worker.PendingAge,
	}

	sup := suture.New("ledger-worker", suture.Spec{
		EventHook: func(e suture.Event) {
			logging.Warn().Fields(e.Map()).Msg(e.String())
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
	sup.Add(&kafkax.Service{Consumer: cons, Handler: confirmer.HandleLedgerSubmit})
	sup.Add(reconciler)

	logging.Info().
		Str("group", cfg.Worker.Group).
		Str("topic", orders.TopicLedgerSubmit).
		Int("workers", cfg.Worker.Workers).
		Dur("reconcile_interval", cfg.Worker.ReconcileInterval).
		Msg("ledger worker started")
	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor exited")
	}

	logging.Info().Msg("shutting down worker...")
	prod.Close()
	prod.WaitClosed()
}

func ledgerConfig(c config.LedgerConfig) ledger.Config {
	return ledger.Config{
		RPCURL:          c.RPCURL,
		ContractAddress: c.ContractAddress,
		ABI:             c.ContractABI,
		PrivateKey:      c.PrivateKey,
		ChainID:         c.ChainID,
		ConfirmTimeout:  c.ConfirmTimeout,
	}
}

func submitter(client *ledger.Client, c config.LedgerConfig) ledger.Submitter {
	return ledger.WithRetry(
		ledger.WithBreaker(client, ledger.BreakerSettings{}),
		ledger.RetryPolicy{MaxRetries: c.MaxRetries, Initial: c.RetryInitial, Max: c.RetryMax},
	)
}
