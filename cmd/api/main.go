package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-ledger-orders/internal/activity"
	"github.com/ariefcatur/go-ledger-orders/internal/auth"
	"github.com/ariefcatur/go-ledger-orders/internal/config"
	"github.com/ariefcatur/go-ledger-orders/internal/docstore"
	"github.com/ariefcatur/go-ledger-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-ledger-orders/internal/kafka"
	"github.com/ariefcatur/go-ledger-orders/internal/ledger"
	"github.com/ariefcatur/go-ledger-orders/internal/logging"
	"github.com/ariefcatur/go-ledger-orders/internal/orders"
	"github.com/ariefcatur/go-ledger-orders/internal/postgres"
	"github.com/ariefcatur/go-ledger-orders/internal/redisx"
	"github.com/ariefcatur/go-ledger-orders/internal/websocket"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err := cfg.Validate(cfg.Ledger.Mode == config.LedgerModeSync); err != nil {
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

	store := &docstore.Postgres{DB: db}
	repo := &orders.Repo{Store: store}
	act := activity.New(store)
	cache := &orders.StatusCache{R: rdb, Producer: cfg.ServiceName}

	// Ledger mirror: inline submission, or a job for the ledger worker
	var mirror orders.Mirror
	var prod *kafkax.Producer
	prodCtx, cancelProd := context.WithCancel(context.Background())
	defer cancelProd()
	switch cfg.Ledger.Mode {
	case config.LedgerModeSync:
		client, err := ledger.Dial(ctx, ledgerConfig(cfg.Ledger))
		if err != nil {
			logging.Fatal().Err(err).Msg("ledger dial")
		}
		defer client.Close()
		mirror = &orders.SyncMirror{Repo: repo, Ledger: submitter(client, cfg.Ledger), Notify: cache}
	default:
		prod = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicLedgerSubmit, 1024)
		prod.Start(prodCtx)
		mirror = &orders.QueueMirror{Producer: prod, ServiceName: cfg.ServiceName}
	}

	sessions := &auth.SessionStore{R: rdb, TTL: cfg.SessionTTL}
	hub := websocket.NewHub()

	router := httpx.NewRouter(cfg.RequestTimeout, httpx.WithSession(sessions))
	(&httpx.AuthHandler{
		Auth:         &auth.Service{Store: store, Activity: act},
		Sessions:     sessions,
		SessionTTL:   cfg.SessionTTL,
		CookieSecure: cfg.CookieSecure,
		RateLimit:    20,
	}).Register(router)
	(&httpx.CatalogHandler{
		Catalog: &orders.Catalog{Repo: repo, Activity: act, CheckReferences: cfg.CheckReferences},
	}).Register(router)
	(&httpx.OrderDetailsHandler{
		Recorder: &orders.Recorder{
			Repo:            repo,
			Mirror:          mirror,
			Activity:        act,
			Notify:          cache,
			CheckReferences: cfg.CheckReferences,
		},
		Reader: &orders.Reader{Repo: repo, Cache: cache},
	}).Register(router)
	(&httpx.ActivityHandler{Activity: act}).Register(router)
	router.Handle("/ws", hub)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		// relay transitions from any process (worker included) to websocket clients
		return orders.SubscribeStatus(gctx, rdb, func(c orders.StatusChange) {
			hub.Broadcast("ledger_status", c)
		})
	})
	g.Go(func() error {
		logging.Info().
			Str("addr", cfg.HTTPAddr).
			Str("ledger_mode", cfg.Ledger.Mode).
			Dur("request_timeout", cfg.RequestTimeout).
			Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Info().Msg("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logging.Error().Err(err).Msg("api exited")
	}

	if prod != nil {
		prod.Close() // close inbox -> flush & close writer
		prod.WaitClosed()
	}
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

// submitter retries around the breaker, so an open breaker ends the retry loop at once.
func submitter(client *ledger.Client, c config.LedgerConfig) ledger.Submitter {
	return ledger.WithRetry(
		ledger.WithBreaker(client, ledger.BreakerSettings{}),
		ledger.RetryPolicy{MaxRetries: c.MaxRetries, Initial: c.RetryInitial, Max: c.RetryMax},
	)
}
