package orders

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-ledger-orders/internal/ledger"
	"testing"
	"time"
)

func TestReconcilerRunOnce(t *testing.T) {
	f := newFixture()
	now := time.Now().UTC()
	f.store.Now = func() time.Time { return now.Add(-time.Hour) }

	for _, id := range []string{"sent-ok", "sent-reverted", "sent-unknown", "unsent"} {
		f.seed(t, OrderDetail{ID: id, OrderID: "O1", ProductID: "P1", Quantity: 1})
	}
	for _, id := range []string{"sent-ok", "sent-reverted", "sent-unknown"} {
		if _, err := f.repo.SetLedgerStatus(context.Background(), id, StatusUpdate{Status: LedgerPending, TxHash: "0x" + id}); err != nil {
			t.Fatal(err)
		}
	}
	f.store.Now = func() time.Time { return now }
	f.seed(t, OrderDetail{ID: "fresh", OrderID: "O1", ProductID: "P1", Quantity: 1})

	prod := &fakeProducer{}
	r := &Reconciler{
		Repo: f.repo,
		Lookup: &fakeLookup{receipts: map[string]ledger.Receipt{
			"0xsent-ok":       {TxHash: "0xsent-ok", BlockNumber: 9, Confirmed: true},
			"0xsent-reverted": {TxHash: "0xsent-reverted", BlockNumber: 9},
		}},
		Requeue:    &QueueMirror{Producer: prod},
		Notify:     f.notify,
		PendingAge: 10 * time.Minute,
		Now:        func() time.Time { return now },
	}

	sum, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := ReconcileSummary{Confirmed: 1, Failed: 1, Requeued: 1, Unresolved: 1}
	if sum != want {
		t.Errorf("summary = %+v, want %+v", sum, want)
	}

	check := func(id string, status LedgerStatus) {
		t.Helper()
		d, err := f.repo.GetOrderDetail(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if d.LedgerStatus != status {
			t.Errorf("%s: status = %s, want %s", id, d.LedgerStatus, status)
		}
	}
	check("sent-ok", LedgerConfirmed)
	check("sent-reverted", LedgerFailed)
	check("sent-unknown", LedgerPending)
	check("unsent", LedgerPending)
	check("fresh", LedgerPending)

	if len(prod.msgs) != 1 || string(prod.msgs[0].Key) != "unsent" {
		t.Errorf("requeued = %d messages", len(prod.msgs))
	}

	// the requeue stamped ledger_updated_at, so an immediate second pass leaves it alone
	sum, err = r.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Requeued != 0 {
		t.Errorf("second pass requeued %d", sum.Requeued)
	}
}

func TestReconcilerRetriesNodeFailures(t *testing.T) {
	f := newFixture()
	now := time.Now().UTC()
	f.store.Now = func() time.Time { return now.Add(-time.Hour) }

	fail := func(id string, err error) {
		t.Helper()
		f.seed(t, OrderDetail{ID: id, OrderID: "O1", ProductID: "P1", Quantity: 1})
		if _, werr := f.repo.SetLedgerStatus(context.Background(), id, statusFor(ledger.Receipt{}, err)); werr != nil {
			t.Fatal(werr)
		}
	}
	fail("node-down", errNetwork)
	fail("reverted", &ledger.SubmitError{Err: ledger.ErrReverted})
	fail("sent", &ledger.SubmitError{TxHash: "0xsent", Err: errors.New("connection reset")})
	f.store.Now = func() time.Time { return now }
	fail("just-failed", errNetwork)

	prod := &fakeProducer{}
	r := &Reconciler{
		Repo:       f.repo,
		Lookup:     &fakeLookup{},
		Requeue:    &QueueMirror{Producer: prod},
		Notify:     f.notify,
		PendingAge: 10 * time.Minute,
		Now:        func() time.Time { return now },
	}
	sum, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Retried != 1 {
		t.Errorf("summary = %+v, want one retry", sum)
	}
	if len(prod.msgs) != 1 || string(prod.msgs[0].Key) != "node-down" {
		t.Fatalf("requeued = %d messages", len(prod.msgs))
	}

	d, _ := f.repo.GetOrderDetail(context.Background(), "node-down")
	if d.LedgerStatus != LedgerPending || d.LedgerAutoRetry {
		t.Errorf("node-down = %s auto=%v", d.LedgerStatus, d.LedgerAutoRetry)
	}
	for _, id := range []string{"reverted", "sent", "just-failed"} {
		if d, _ := f.repo.GetOrderDetail(context.Background(), id); d.LedgerStatus != LedgerFailed {
			t.Errorf("%s = %s, want failed", id, d.LedgerStatus)
		}
	}
	last := f.notify.changes[len(f.notify.changes)-1]
	if last.OrderDetailID != "node-down" || last.From != LedgerFailed || last.To != LedgerPending {
		t.Errorf("last change = %+v", last)
	}
}
