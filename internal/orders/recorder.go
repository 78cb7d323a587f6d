package orders

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-ledger-orders/internal/docstore"
	"github.com/ariefcatur/go-ledger-orders/internal/ledger"
	"github.com/ariefcatur/go-ledger-orders/internal/logging"
	"github.com/ariefcatur/go-ledger-orders/internal/metrics"
	"github.com/ariefcatur/go-ledger-orders/internal/validation"
	"github.com/google/uuid"
)

// Recorder owns the order-detail write path: document first, then the ledger mirror,
// then the activity entry.
type Recorder struct {
	Repo     *Repo
	Mirror   Mirror
	Activity ActivityLog
	Notify   StatusNotifier

	// CheckReferences rejects details whose order or product does not exist.
	CheckReferences bool
	NewID           func() string
}

// RecordOrderDetail persists a new order detail and mirrors it to the ledger.
//
// A storage failure aborts before anything else happens. A mirror failure leaves the
// document in place and comes back together with the detail as stored, so callers can
// report a degraded outcome. Activity logging never changes the result.
func (r *Recorder) RecordOrderDetail(ctx context.Context, in OrderDetailInput, actor string) (OrderDetail, error) {
	const op = "record order detail"
	if err := validation.Struct(in); err != nil {
		return OrderDetail{}, E(KindValidation, op, err)
	}
	if r.CheckReferences {
		err := requireRefs(ctx, r.Repo, op, ref{docstore.Orders, in.OrderID}, ref{docstore.Products, in.ProductID})
		if err != nil {
			return OrderDetail{}, err
		}
	}

	d := OrderDetail{
		ID:           r.newID(),
		OrderID:      in.OrderID,
		ProductID:    in.ProductID,
		Quantity:     in.Quantity,
		PriceEach:    in.PriceEach,
		LedgerStatus: LedgerPending,
	}
	if err := r.Repo.CreateOrderDetail(ctx, d); err != nil {
		return OrderDetail{}, err
	}
	logging.Ctx(ctx).Info().Str("order_detail_id", d.ID).Str("order_id", d.OrderID).Msg("order detail stored")

	stored, mirrorErr := r.Mirror.Mirror(ctx, d, actor)
	metrics.OrderDetailsRecorded.WithLabelValues(string(stored.LedgerStatus)).Inc()

	text := "Added order detail for order ID: " + d.OrderID
	if mirrorErr != nil {
		logging.Ctx(ctx).Warn().Err(mirrorErr).
			Str("order_detail_id", d.ID).
			Str("ledger_status", string(stored.LedgerStatus)).
			Msg("ledger mirror not confirmed")
		text = fmt.Sprintf("%s (ledger mirror failed: %s)", text, ledger.Outcome(mirrorErr))
	}
	r.Activity.Log(context.WithoutCancel(ctx), actor, text)
	return stored, mirrorErr
}

// RetryLedger puts a failed detail back to pending and mirrors it again.
func (r *Recorder) RetryLedger(ctx context.Context, id, actor string) (OrderDetail, error) {
	const op = "retry ledger"
	d, err := r.Repo.GetOrderDetail(ctx, id)
	if err != nil {
		return OrderDetail{}, err
	}
	if d.LedgerStatus != LedgerFailed {
		return d, E(KindConflict, op, fmt.Errorf("order detail %s is %s, only failed details can be retried", id, d.LedgerStatus))
	}
	pending, err := r.Repo.SetLedgerStatus(ctx, id, StatusUpdate{Status: LedgerPending})
	if err != nil {
		return d, err
	}
	notifyChange(ctx, r.Notify, d, pending)

	stored, mirrorErr := r.Mirror.Mirror(ctx, pending, actor)
	text := "Retried ledger mirror for order detail: " + id
	if mirrorErr != nil {
		text = fmt.Sprintf("%s (ledger mirror failed: %s)", text, ledger.Outcome(mirrorErr))
	}
	r.Activity.Log(context.WithoutCancel(ctx), actor, text)
	return stored, mirrorErr
}

func (r *Recorder) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}
