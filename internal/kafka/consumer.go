package kafka

import (
	"context"
	"github.com/ariefcatur/go-ledger-orders/internal/logging"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"sync"
	"time"
)

// Handler returns nil only when the message is fully processed and its offset may be committed.
// A non-nil error makes the consumer retry the same message in place.
type Handler func(ctx context.Context, m kafka.Message) error

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       reader
	workers int
	name    string

	// bounds of the backoff between attempts at a failing message
	RetryInitial time.Duration
	RetryMax     time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers, group+"/"+topic)
}

func newConsumer(r reader, workers int, name string) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, name: name, RetryInitial: 200 * time.Millisecond, RetryMax: 30 * time.Second}
}

// Start fetches until ctx ends or the reader fails. It can be called again after an
// error; the reader stays open until Close.
//
// A message is committed only after its handler succeeds. Until then the worker that
// holds it keeps retrying with backoff; a message left unfinished at shutdown stays
// uncommitted and is redelivered to the next consumer of its partition.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	log := logging.Component("kafka-consumer").With().Str("consumer", c.name).Logger()

	jobs := make(chan kafka.Message, c.workers)
	var wg sync.WaitGroup

	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				if ctx.Err() != nil {
					continue
				}
				if err := c.handle(ctx, log, h, m); err != nil {
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					log.Warn().Err(err).Int("partition", m.Partition).Int64("offset", m.Offset).Msg("commit failed")
				}
			}
		}()
	}
	stop := func() {
		close(jobs)
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

// handle runs h until it succeeds or ctx ends. backoff.Permanent errors are not retried.
func (c *Consumer) handle(ctx context.Context, log zerolog.Logger, h Handler, m kafka.Message) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.RetryInitial
	b.MaxInterval = c.RetryMax
	b.MaxElapsedTime = 0

	op := func() error { return h(ctx, m) }
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).
			Int("partition", m.Partition).
			Int64("offset", m.Offset).
			Dur("retry_in", wait).
			Msg("handler error")
	}
	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if err != nil && ctx.Err() == nil {
		log.Error().Err(err).Int("partition", m.Partition).Int64("offset", m.Offset).Msg("message not processed")
	}
	return err
}

func (c *Consumer) Close() error { return c.r.Close() }

// Service runs a handler on a consumer as a supervised service.
type Service struct {
	Consumer *Consumer
	Handler  Handler
}

func (s *Service) Serve(ctx context.Context) error { return s.Consumer.Start(ctx, s.Handler) }

func (s *Service) String() string { return "kafka-consumer " + s.Consumer.name }
