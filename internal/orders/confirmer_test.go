package orders

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-ledger-orders/internal/docstore"
	kafkax "github.com/ariefcatur/go-ledger-orders/internal/kafka"
	"github.com/ariefcatur/go-ledger-orders/internal/ledger"
	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
	"testing"
	"time"
)

func (f *fixture) confirmer(dedup Claimer) *Confirmer {
	return &Confirmer{
		Repo:     f.repo,
		Ledger:   f.ledger,
		Activity: f.activity,
		Dedup:    dedup,
		Notify:   f.notify,
		WriteBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
		},
	}
}

func jobFor(t *testing.T, d OrderDetail, eventID, actor string) kafkago.Message {
	t.Helper()
	prod := &fakeProducer{}
	m := &QueueMirror{Producer: prod, ServiceName: "test"}
	if _, err := m.Mirror(context.Background(), d, actor); err != nil {
		t.Fatal(err)
	}
	msg := prod.msgs[0]
	if eventID != "" {
		var env Envelope
		if err := kafkax.UnmarshalEnvelope(msg.Value, &env); err != nil {
			t.Fatal(err)
		}
		env.EventID = eventID
		msg.Value = kafkax.MustMarshal(env)
	}
	return msg
}

func TestConfirmerConfirms(t *testing.T) {
	f := newFixture()
	d := OrderDetail{ID: "od1", OrderID: "O1", ProductID: "P1", Quantity: 2, PriceEach: 1.5}
	f.seed(t, d)

	err := f.confirmer(&fakeClaimer{}).HandleLedgerSubmit(context.Background(), jobFor(t, d, "", "u1"))
	if err != nil {
		t.Fatal(err)
	}
	got, _ := f.repo.GetOrderDetail(context.Background(), "od1")
	if got.LedgerStatus != LedgerConfirmed || got.LedgerTxHash != "0xod1" {
		t.Errorf("stored = %s %q", got.LedgerStatus, got.LedgerTxHash)
	}
	if f.ledger.records[0].PriceEachCents != 150 {
		t.Errorf("price cents = %d", f.ledger.records[0].PriceEachCents)
	}
	entries := f.activities(t, "u1")
	if len(entries) != 1 || entries[0].Activity != "Confirmed order detail on ledger: od1" {
		t.Errorf("activities = %+v", entries)
	}
	if len(f.notify.changes) != 1 || f.notify.changes[0].From != LedgerPending {
		t.Errorf("changes = %+v", f.notify.changes)
	}
}

func TestConfirmerDeduplicatesRedelivery(t *testing.T) {
	f := newFixture()
	d := OrderDetail{ID: "od1", OrderID: "O1", ProductID: "P1", Quantity: 1}
	f.seed(t, d)
	c := f.confirmer(&fakeClaimer{})
	msg := jobFor(t, d, "evt-1", "u1")

	for i := 0; i < 3; i++ {
		if err := c.HandleLedgerSubmit(context.Background(), msg); err != nil {
			t.Fatal(err)
		}
	}
	if f.ledger.calls() != 1 {
		t.Errorf("ledger calls = %d, want 1", f.ledger.calls())
	}
}

func TestConfirmerSkipsSettledDetails(t *testing.T) {
	tests := []struct {
		name   string
		update *StatusUpdate
	}{
		{"confirmed", &StatusUpdate{Status: LedgerConfirmed, TxHash: "0xdone"}},
		{"failed", &StatusUpdate{Status: LedgerFailed, Error: "reverted"}},
		{"tx in flight", &StatusUpdate{Status: LedgerPending, TxHash: "0xsent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			d := OrderDetail{ID: "od1", OrderID: "O1", ProductID: "P1", Quantity: 1}
			f.seed(t, d)
			if _, err := f.repo.SetLedgerStatus(context.Background(), "od1", *tt.update); err != nil {
				t.Fatal(err)
			}
			if err := f.confirmer(&fakeClaimer{}).HandleLedgerSubmit(context.Background(), jobFor(t, d, "", "u1")); err != nil {
				t.Fatal(err)
			}
			if f.ledger.calls() != 0 {
				t.Errorf("ledger calls = %d, want 0", f.ledger.calls())
			}
		})
	}
}

func TestConfirmerRecordsFailure(t *testing.T) {
	f := newFixture()
	f.ledger.err = &ledger.SubmitError{TxHash: "0xbad", Err: ledger.ErrReverted}
	d := OrderDetail{ID: "od1", OrderID: "O1", ProductID: "P1", Quantity: 1}
	f.seed(t, d)

	if err := f.confirmer(&fakeClaimer{}).HandleLedgerSubmit(context.Background(), jobFor(t, d, "", "u1")); err != nil {
		t.Fatal(err)
	}
	got, _ := f.repo.GetOrderDetail(context.Background(), "od1")
	if got.LedgerStatus != LedgerFailed || got.LedgerTxHash != "0xbad" {
		t.Errorf("stored = %s %q", got.LedgerStatus, got.LedgerTxHash)
	}
	entries := f.activities(t, "u1")
	if len(entries) != 1 || entries[0].Activity != "Ledger mirror failed for order detail: od1" {
		t.Errorf("activities = %+v", entries)
	}
}

func TestConfirmerReleasesClaimOnStorageError(t *testing.T) {
	f := newFixture()
	d := OrderDetail{ID: "od1", OrderID: "O1", ProductID: "P1", Quantity: 1}
	f.seed(t, d)
	f.store.FailOn("get", docstore.OrderDetails, errors.New("store down"))
	dedup := &fakeClaimer{}

	err := f.confirmer(dedup).HandleLedgerSubmit(context.Background(), jobFor(t, d, "evt-9", "u1"))
	if err == nil {
		t.Fatal("expected error so the job is redelivered")
	}
	if len(dedup.released) != 1 || dedup.released[0] != "evt-9" {
		t.Errorf("released = %v", dedup.released)
	}
}

func TestConfirmerRetriesOutcomeWriteWithoutResubmitting(t *testing.T) {
	f := newFixture()
	d := OrderDetail{ID: "od1", OrderID: "O1", ProductID: "P1", Quantity: 1}
	f.seed(t, d)
	f.store.FailNext("update", docstore.OrderDetails, errors.New("blip"), 2)

	if err := f.confirmer(&fakeClaimer{}).HandleLedgerSubmit(context.Background(), jobFor(t, d, "", "u1")); err != nil {
		t.Fatal(err)
	}
	if f.ledger.calls() != 1 {
		t.Errorf("ledger calls = %d, want 1", f.ledger.calls())
	}
	got, _ := f.repo.GetOrderDetail(context.Background(), "od1")
	if got.LedgerStatus != LedgerConfirmed || got.LedgerTxHash != "0xod1" {
		t.Errorf("stored = %s %q", got.LedgerStatus, got.LedgerTxHash)
	}
}

func TestConfirmerGivesUpOnPersistentWriteFailure(t *testing.T) {
	f := newFixture()
	d := OrderDetail{ID: "od1", OrderID: "O1", ProductID: "P1", Quantity: 1}
	f.seed(t, d)
	f.store.FailOn("update", docstore.OrderDetails, errors.New("store down"))
	dedup := &fakeClaimer{}

	err := f.confirmer(dedup).HandleLedgerSubmit(context.Background(), jobFor(t, d, "evt-3", "u1"))
	if err == nil {
		t.Fatal("expected the write failure to surface")
	}
	if f.ledger.calls() != 1 {
		t.Errorf("ledger calls = %d, want 1", f.ledger.calls())
	}
	if len(dedup.released) != 1 {
		t.Errorf("released = %v", dedup.released)
	}
}

func TestConfirmerTimeoutLeavesPending(t *testing.T) {
	f := newFixture()
	f.ledger.err = &ledger.TimeoutError{TxHash: "0xslow", After: time.Second}
	d := OrderDetail{ID: "od1", OrderID: "O1", ProductID: "P1", Quantity: 1}
	f.seed(t, d)

	if err := f.confirmer(&fakeClaimer{}).HandleLedgerSubmit(context.Background(), jobFor(t, d, "", "u1")); err != nil {
		t.Fatal(err)
	}
	got, _ := f.repo.GetOrderDetail(context.Background(), "od1")
	if got.LedgerStatus != LedgerPending || got.LedgerTxHash != "0xslow" {
		t.Errorf("stored = %s %q", got.LedgerStatus, got.LedgerTxHash)
	}
}

func TestConfirmerIgnoresOtherEvents(t *testing.T) {
	f := newFixture()
	env := Envelope{EventID: "e", EventType: EventLedgerStatusChanged, Payload: kafkax.MustMarshal(StatusChange{})}
	msg := kafkago.Message{Value: kafkax.MustMarshal(env)}
	dedup := &fakeClaimer{}

	if err := f.confirmer(dedup).HandleLedgerSubmit(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if len(dedup.claimed) != 0 {
		t.Error("foreign events must not be claimed")
	}
}
