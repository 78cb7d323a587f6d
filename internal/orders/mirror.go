package orders

import (
	"context"
	"errors"
	kafkax "github.com/ariefcatur/go-ledger-orders/internal/kafka"
	"github.com/ariefcatur/go-ledger-orders/internal/ledger"
	"github.com/ariefcatur/go-ledger-orders/internal/logging"
	"github.com/ariefcatur/go-ledger-orders/internal/metrics"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"time"
)

// Mirror gets a persisted order detail onto the ledger, or arranges for that to happen.
// It returns the detail as last stored; a non-nil error means the mirror is not confirmed.
type Mirror interface {
	Mirror(ctx context.Context, d OrderDetail, actor string) (OrderDetail, error)
}

// ActivityLog is the part of activity.Logger the order flow needs.
type ActivityLog interface {
	Log(ctx context.Context, userID, text string)
}

// StatusNotifier hears about every stored ledger status transition.
type StatusNotifier interface {
	StatusChanged(ctx context.Context, c StatusChange)
}

// SyncMirror submits on the caller's goroutine and writes the outcome back before returning.
type SyncMirror struct {
	Repo   *Repo
	Ledger ledger.Submitter
	Notify StatusNotifier
}

func (m *SyncMirror) Mirror(ctx context.Context, d OrderDetail, _ string) (OrderDetail, error) {
	receipt, err := submit(ctx, m.Ledger, d)
	updated, werr := applyOutcome(ctx, m.Repo, m.Notify, d, receipt, err)
	if werr != nil {
		logging.Ctx(ctx).Error().Err(werr).
			Str("order_detail_id", d.ID).
			Str("tx_hash", receipt.TxHash).
			Msg("ledger outcome not stored")
	}
	if err != nil {
		return updated, ledgerErr("mirror order detail", err)
	}
	return updated, nil
}

const outcomeWriteTimeout = 10 * time.Second

type publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// QueueMirror hands the submission to the ledger worker through Kafka. The detail stays
// pending until the worker records an outcome.
type QueueMirror struct {
	Producer    publisher
	ServiceName string
}

func (m *QueueMirror) Mirror(ctx context.Context, d OrderDetail, actor string) (OrderDetail, error) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventLedgerSubmitRequested,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      m.ServiceName,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: d.ID,
		Payload: kafkax.MustMarshal(LedgerSubmitRequestedPayload{
			OrderDetailID: d.ID,
			OrderID:       d.OrderID,
			ProductID:     d.ProductID,
			Quantity:      d.Quantity,
			PriceEach:     d.PriceEach,
			UserID:        actor,
		}),
	}
	err := m.Producer.Publish(ctx, PartitionKey(d.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventLedgerSubmitRequested)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	if err != nil {
		return d, E(KindLedgerSubmission, "enqueue ledger submit", err)
	}
	return d, nil
}

func submit(ctx context.Context, l ledger.Submitter, d OrderDetail) (ledger.Receipt, error) {
	start := time.Now()
	receipt, err := l.SubmitOrderDetail(ctx, d.LedgerRecord())
	metrics.LedgerSubmissions.WithLabelValues(ledger.Outcome(err)).Inc()
	if err == nil {
		metrics.LedgerConfirmSeconds.Observe(time.Since(start).Seconds())
	}
	return receipt, err
}

// statusFor maps a submission result onto the next stored status. A timeout keeps the
// detail pending with its tx hash so the reconciler can look the receipt up later.
func statusFor(receipt ledger.Receipt, err error) StatusUpdate {
	var te *ledger.TimeoutError
	switch {
	case err == nil:
		return StatusUpdate{Status: LedgerConfirmed, TxHash: receipt.TxHash, Block: receipt.BlockNumber}
	case errors.As(err, &te):
		return StatusUpdate{Status: LedgerPending, TxHash: te.TxHash, Error: err.Error()}
	default:
		return StatusUpdate{
			Status:    LedgerFailed,
			TxHash:    ledger.TxHash(err),
			Error:     ledger.Outcome(err) + ": " + err.Error(),
			AutoRetry: autoRetryable(err),
		}
	}
}

// autoRetryable reports whether a failure may be retried without an operator: nothing
// reached the chain and the fault lay with the node rather than the contract, signer or record.
func autoRetryable(err error) bool {
	return ledger.TxHash(err) == "" &&
		!errors.Is(err, ledger.ErrReverted) &&
		!errors.Is(err, ledger.ErrSignerUnavailable) &&
		!errors.Is(err, ledger.ErrInvalidRecord)
}

// applyOutcome stores the result of a submission. When the write fails the returned detail
// carries the outcome in memory only, alongside the storage error.
//
// The write runs detached from ctx cancellation: a sent transaction's hash has to reach the
// store even when the request that sent it has already timed out.
func applyOutcome(ctx context.Context, repo *Repo, notify StatusNotifier, d OrderDetail, receipt ledger.Receipt, err error) (OrderDetail, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outcomeWriteTimeout)
	defer cancel()

	u := statusFor(receipt, err)
	updated, werr := repo.SetLedgerStatus(ctx, d.ID, u)
	if werr != nil {
		d.LedgerStatus = u.Status
		d.LedgerError = u.Error
		if u.TxHash != "" {
			d.LedgerTxHash = u.TxHash
		}
		if u.Block > 0 {
			d.LedgerBlock = u.Block
		}
		return d, werr
	}
	notifyChange(ctx, notify, d, updated)
	return updated, nil
}

func notifyChange(ctx context.Context, notify StatusNotifier, before, after OrderDetail) {
	if notify == nil || (before.LedgerStatus == after.LedgerStatus && before.LedgerTxHash == after.LedgerTxHash) {
		return
	}
	at := time.Now().UTC()
	if after.LedgerUpdatedAt != nil {
		at = *after.LedgerUpdatedAt
	}
	notify.StatusChanged(ctx, StatusChange{
		OrderDetailID: after.ID,
		OrderID:       after.OrderID,
		From:          before.LedgerStatus,
		To:            after.LedgerStatus,
		TxHash:        after.LedgerTxHash,
		Error:         after.LedgerError,
		At:            at,
	})
}
