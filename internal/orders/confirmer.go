package orders

import (
	"context"
	"errors"
	kafkax "github.com/ariefcatur/go-ledger-orders/internal/kafka"
	"github.com/ariefcatur/go-ledger-orders/internal/ledger"
	"github.com/ariefcatur/go-ledger-orders/internal/logging"
	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
	"time"
)

// Claimer deduplicates job deliveries by event id.
type Claimer interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// Confirmer is the worker side of QueueMirror: it submits queued details and stores the outcome.
type Confirmer struct {
	Repo     *Repo
	Ledger   ledger.Submitter
	Activity ActivityLog
	Dedup    Claimer
	Notify   StatusNotifier

	// WriteBackOff paces retries of the outcome write; nil means exponential up to two minutes.
	WriteBackOff func() backoff.BackOff
}

// HandleLedgerSubmit is installed as the consumer handler. Returning an error releases the
// dedup claim and makes the consumer retry the same message.
func (c *Confirmer) HandleLedgerSubmit(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		logging.Warn().Err(err).Str("key", string(m.Key)).Msg("drop undecodable ledger job")
		return nil
	}
	if env.EventType != EventLedgerSubmitRequested {
		return nil
	} // ignore

	// 2) dedup via Redis (event_id)
	claimed, err := c.Dedup.Claim(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	if err := c.process(ctx, env); err != nil {
		if rerr := c.Dedup.Release(ctx, env.EventID); rerr != nil {
			logging.Warn().Err(rerr).Str("event_id", env.EventID).Msg("release dedup claim failed")
		}
		return err
	}
	return nil
}

func (c *Confirmer) process(ctx context.Context, env Envelope) error {
	// 3) decode payload
	p, err := kafkax.UnwrapPayload[LedgerSubmitRequestedPayload](env.Payload)
	if err != nil {
		logging.Warn().Err(err).Str("event_id", env.EventID).Msg("drop ledger job with bad payload")
		return nil
	}
	log := logging.Logger().With().
		Str("order_detail_id", p.OrderDetailID).
		Str("event_id", env.EventID).
		Logger()

	d, err := c.Repo.GetOrderDetail(ctx, p.OrderDetailID)
	if KindOf(err) == KindNotFound {
		log.Warn().Msg("ledger job for unknown order detail")
		return nil
	}
	if err != nil {
		return err
	}

	// 4) idempotent short-circuits: already on the ledger, or a tx is in flight
	switch {
	case d.LedgerStatus == LedgerConfirmed:
		return nil
	case d.LedgerStatus == LedgerFailed:
		log.Debug().Msg("skip job for failed detail; retry re-enqueues")
		return nil
	case d.LedgerTxHash != "":
		log.Debug().Str("tx_hash", d.LedgerTxHash).Msg("tx already sent, leaving it to the reconciler")
		return nil
	}

	// 5) submit and store the outcome
	// once the ledger has been called only the write is retried; rerunning the job would resubmit
	receipt, subErr := submit(ctx, c.Ledger, d)
	var stored OrderDetail
	write := func() error {
		var err error
		stored, err = applyOutcome(ctx, c.Repo, c.Notify, d, receipt, subErr)
		if KindOf(err) == KindConflict {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("tx_hash", receipt.TxHash).Dur("retry_in", wait).Msg("storing ledger outcome failed, retrying")
	}
	if werr := backoff.RetryNotify(write, backoff.WithContext(c.writeBackOff(), ctx), notify); werr != nil {
		if KindOf(werr) == KindConflict {
			// settled elsewhere in the meantime (reconciler or another delivery)
			log.Info().Err(werr).Msg("ledger outcome already recorded")
			return nil
		}
		log.Error().Err(werr).Str("tx_hash", receipt.TxHash).Msg("ledger outcome not stored")
		return werr
	}

	switch stored.LedgerStatus {
	case LedgerConfirmed:
		log.Info().Str("tx_hash", stored.LedgerTxHash).Uint64("block", stored.LedgerBlock).Msg("order detail confirmed on ledger")
		c.Activity.Log(ctx, p.UserID, "Confirmed order detail on ledger: "+d.ID)
	case LedgerFailed:
		log.Warn().Err(subErr).Msg("ledger mirror failed")
		c.Activity.Log(ctx, p.UserID, "Ledger mirror failed for order detail: "+d.ID)
	default:
		var te *ledger.TimeoutError
		if errors.As(subErr, &te) {
			log.Warn().Str("tx_hash", te.TxHash).Dur("after", te.After).Msg("ledger confirmation timed out")
		}
	}
	return nil
}

func (c *Confirmer) writeBackOff() backoff.BackOff {
	if c.WriteBackOff != nil {
		return c.WriteBackOff()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	return b
}
