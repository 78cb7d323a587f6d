package orders

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-ledger-orders/internal/ledger"
	"github.com/ariefcatur/go-ledger-orders/internal/logging"
	"github.com/ariefcatur/go-ledger-orders/internal/metrics"
	"time"
)

// ReceiptLookup finds the receipt of an already-sent transaction.
type ReceiptLookup interface {
	LookupReceipt(ctx context.Context, txHash string) (ledger.Receipt, bool, error)
}

// Reconciler closes the gap between the document store and the ledger for details that
// stayed pending: a sent tx is resolved from its receipt, an unsent one is re-enqueued.
// Failed details whose failure never reached the chain are put back to pending and
// re-enqueued as well, at most once per PendingAge.
type Reconciler struct {
	Repo       *Repo
	Lookup     ReceiptLookup
	Requeue    Mirror
	Notify     StatusNotifier
	Interval   time.Duration
	PendingAge time.Duration
	Now        func() time.Time
}

type ReconcileSummary struct {
	Confirmed  int
	Failed     int
	Requeued   int
	Retried    int
	Unresolved int
}

func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileSummary, error) {
	var sum ReconcileSummary
	pending, err := r.Repo.OrderDetailsByStatus(ctx, LedgerPending)
	if err != nil {
		return sum, err
	}
	now := r.now()
	for _, d := range pending {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		if now.Sub(lastTouched(d)) < r.PendingAge {
			continue
		}
		action, err := r.reconcile(ctx, d)
		if err != nil {
			logging.Warn().Err(err).Str("order_detail_id", d.ID).Msg("reconcile order detail")
			action = "error"
		}
		metrics.ReconciledDetails.WithLabelValues(action).Inc()
		switch action {
		case "confirmed":
			sum.Confirmed++
		case "failed":
			sum.Failed++
		case "requeued":
			sum.Requeued++
		default:
			sum.Unresolved++
		}
	}

	failed, err := r.Repo.OrderDetailsByStatus(ctx, LedgerFailed)
	if err != nil {
		return sum, err
	}
	for _, d := range failed {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		if !d.LedgerAutoRetry || d.LedgerTxHash != "" || now.Sub(lastTouched(d)) < r.PendingAge {
			continue
		}
		if err := r.retry(ctx, d); err != nil {
			logging.Warn().Err(err).Str("order_detail_id", d.ID).Msg("auto-retry order detail")
			metrics.ReconciledDetails.WithLabelValues("error").Inc()
			continue
		}
		metrics.ReconciledDetails.WithLabelValues("retried").Inc()
		sum.Retried++
	}
	return sum, nil
}

func (r *Reconciler) retry(ctx context.Context, d OrderDetail) error {
	pending, err := r.Repo.SetLedgerStatus(ctx, d.ID, StatusUpdate{Status: LedgerPending, Error: d.LedgerError})
	if err != nil {
		return err
	}
	notifyChange(ctx, r.Notify, d, pending)
	_, err = r.Requeue.Mirror(ctx, pending, "")
	return err
}

func (r *Reconciler) reconcile(ctx context.Context, d OrderDetail) (string, error) {
	if d.LedgerTxHash == "" {
		// stamp ledger_updated_at so the next pass waits PendingAge again
		if _, err := r.Repo.SetLedgerStatus(ctx, d.ID, StatusUpdate{Status: LedgerPending, Error: d.LedgerError}); err != nil {
			return "", err
		}
		if _, err := r.Requeue.Mirror(ctx, d, ""); err != nil {
			return "", err
		}
		return "requeued", nil
	}

	receipt, found, err := r.Lookup.LookupReceipt(ctx, d.LedgerTxHash)
	if err != nil {
		return "", fmt.Errorf("lookup receipt %s: %w", d.LedgerTxHash, err)
	}
	if !found {
		return "unresolved", nil
	}
	var outcome error
	if !receipt.Confirmed {
		outcome = &ledger.SubmitError{TxHash: receipt.TxHash, Err: ledger.ErrReverted}
	}
	stored, err := applyOutcome(ctx, r.Repo, r.Notify, d, receipt, outcome)
	if err != nil {
		return "", err
	}
	return string(stored.LedgerStatus), nil
}

// Serve runs RunOnce every Interval until ctx ends; it satisfies suture.Service.
func (r *Reconciler) Serve(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			sum, err := r.RunOnce(ctx)
			if err != nil && ctx.Err() == nil {
				logging.Error().Err(err).Msg("reconcile pass failed")
				continue
			}
			if sum != (ReconcileSummary{}) {
				logging.Info().
					Int("confirmed", sum.Confirmed).
					Int("failed", sum.Failed).
					Int("requeued", sum.Requeued).
					Int("retried", sum.Retried).
					Int("unresolved", sum.Unresolved).
					Msg("reconcile pass")
			}
		}
	}
}

func (r *Reconciler) String() string { return "ledger-reconciler" }

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

func lastTouched(d OrderDetail) time.Time {
	if d.LedgerUpdatedAt != nil {
		return *d.LedgerUpdatedAt
	}
	return d.CreatedAt
}
