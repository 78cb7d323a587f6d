package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-ledger-orders/internal/docstore"
)

type Repo struct{ Store docstore.Store }

// StatusUpdate is one ledger status write. Empty TxHash/zero Block leave the stored values alone.
type StatusUpdate struct {
	Status LedgerStatus
	TxHash string
	Block  uint64
	Error  string
	// AutoRetry marks a failure the reconciler may requeue on its own.
	AutoRetry bool
}

// CreateOrderDetail inserts d under d.ID as pending. An id already in use is a conflict.
func (r *Repo) CreateOrderDetail(ctx context.Context, d OrderDetail) error {
	err := r.Store.Create(ctx, docstore.OrderDetails, d.ID, docstore.Fields{
		"order_id":      d.OrderID,
		"product_id":    d.ProductID,
		"quantity":      d.Quantity,
		"price_each":    d.PriceEach,
		"ledger_status": string(LedgerPending),
		"created_at":    docstore.ServerTimestamp,
	})
	if err != nil {
		return storageErr("create order detail", err)
	}
	return nil
}

func (r *Repo) GetOrderDetail(ctx context.Context, id string) (OrderDetail, error) {
	doc, err := r.Store.Get(ctx, docstore.OrderDetails, id)
	if err != nil {
		return OrderDetail{}, storageErr("get order detail", err)
	}
	return toOrderDetail(doc)
}

// OrderDetailsByStatus lists details in the given ledger status, oldest first.
func (r *Repo) OrderDetailsByStatus(ctx context.Context, status LedgerStatus) ([]OrderDetail, error) {
	docs, err := r.Store.QueryEquals(ctx, docstore.OrderDetails, "ledger_status", string(status))
	if err != nil {
		return nil, storageErr("query order details", err)
	}
	out := make([]OrderDetail, 0, len(docs))
	for _, doc := range docs {
		d, err := toOrderDetail(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// SetLedgerStatus moves a detail along the ledger lifecycle and returns the stored result.
// Pending and failed may be rewritten in place (to attach a tx hash or a newer error);
// confirmed is final and re-confirming is a no-op.
func (r *Repo) SetLedgerStatus(ctx context.Context, id string, u StatusUpdate) (OrderDetail, error) {
	const op = "set ledger status"
	cur, err := r.GetOrderDetail(ctx, id)
	if err != nil {
		return OrderDetail{}, err
	}
	if cur.LedgerStatus == LedgerConfirmed && u.Status == LedgerConfirmed {
		return cur, nil
	}
	if cur.LedgerStatus != u.Status && !CanTransition(cur.LedgerStatus, u.Status) {
		return cur, E(KindConflict, op, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.LedgerStatus, u.Status))
	}
	if cur.LedgerStatus == LedgerConfirmed {
		return cur, E(KindConflict, op, fmt.Errorf("%w: %s is final", ErrInvalidTransition, cur.LedgerStatus))
	}

	fields := docstore.Fields{
		"ledger_status":     string(u.Status),
		"ledger_updated_at": docstore.ServerTimestamp,
		"ledger_error":      u.Error,
		"ledger_auto_retry": u.AutoRetry,
	}
	if u.TxHash != "" {
		fields["ledger_tx_hash"] = u.TxHash
	}
	if u.Block > 0 {
		fields["ledger_block"] = u.Block
	}
	if err := r.Store.Update(ctx, docstore.OrderDetails, id, fields); err != nil {
		return cur, storageErr(op, err)
	}
	return r.GetOrderDetail(ctx, id)
}

// Exists reports whether collection/id is present.
func (r *Repo) Exists(ctx context.Context, collection, id string) (bool, error) {
	_, err := r.Store.Get(ctx, collection, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, docstore.ErrNotFound):
		return false, nil
	default:
		return false, storageErr("lookup "+collection, err)
	}
}

func toOrderDetail(doc docstore.Document) (OrderDetail, error) {
	var d OrderDetail
	if err := doc.DataTo(&d); err != nil {
		return OrderDetail{}, E(KindStorage, "decode order detail", err)
	}
	d.ID = doc.ID
	if d.CreatedAt.IsZero() {
		d.CreatedAt = doc.CreatedAt
	}
	return d, nil
}
