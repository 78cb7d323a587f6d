package orders

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-ledger-orders/internal/activity"
	"github.com/ariefcatur/go-ledger-orders/internal/docstore"
	"github.com/ariefcatur/go-ledger-orders/internal/docstore/docstoretest"
	"github.com/ariefcatur/go-ledger-orders/internal/ledger"
	kafkago "github.com/segmentio/kafka-go"
	"sync"
	"testing"
)

type fakeLedger struct {
	mu      sync.Mutex
	err     error
	receipt ledger.Receipt
	records []ledger.Record
}

func (f *fakeLedger) SubmitOrderDetail(_ context.Context, rec ledger.Record) (ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	if f.err != nil {
		return ledger.Receipt{}, f.err
	}
	r := f.receipt
	if r.TxHash == "" {
		r = ledger.Receipt{TxHash: "0x" + rec.ID, BlockNumber: 7, Confirmed: true}
	}
	return r, nil
}

func (f *fakeLedger) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeNotifier struct {
	changes []StatusChange
}

func (f *fakeNotifier) StatusChanged(_ context.Context, c StatusChange) {
	f.changes = append(f.changes, c)
}

type fakeProducer struct {
	err  error
	msgs []kafkago.Message
}

func (f *fakeProducer) Publish(_ context.Context, key, value []byte, headers ...kafkago.Header) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
	return nil
}

type fakeClaimer struct {
	claimed  map[string]bool
	released []string
	err      error
}

func (f *fakeClaimer) Claim(_ context.Context, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.claimed == nil {
		f.claimed = map[string]bool{}
	}
	if f.claimed[id] {
		return false, nil
	}
	f.claimed[id] = true
	return true, nil
}

func (f *fakeClaimer) Release(_ context.Context, id string) error {
	delete(f.claimed, id)
	f.released = append(f.released, id)
	return nil
}

type fakeLookup struct {
	receipts map[string]ledger.Receipt
	err      error
}

func (f *fakeLookup) LookupReceipt(_ context.Context, hash string) (ledger.Receipt, bool, error) {
	if f.err != nil {
		return ledger.Receipt{}, false, f.err
	}
	r, ok := f.receipts[hash]
	return r, ok, nil
}

var errNetwork = &ledger.SubmitError{Err: errors.New("dial tcp: connection refused")}

type fixture struct {
	store    *docstoretest.Store
	repo     *Repo
	activity *activity.Logger
	ledger   *fakeLedger
	notify   *fakeNotifier
}

func newFixture() *fixture {
	store := docstoretest.New()
	return &fixture{
		store:    store,
		repo:     &Repo{Store: store},
		activity: activity.New(store),
		ledger:   &fakeLedger{},
		notify:   &fakeNotifier{},
	}
}

func (f *fixture) syncRecorder() *Recorder {
	return &Recorder{
		Repo:     f.repo,
		Mirror:   &SyncMirror{Repo: f.repo, Ledger: f.ledger, Notify: f.notify},
		Activity: f.activity,
		Notify:   f.notify,
	}
}

func (f *fixture) activities(t testing.TB, user string) []activity.Entry {
	t.Helper()
	entries, err := f.activity.ByUser(context.Background(), user)
	if err != nil {
		t.Fatal(err)
	}
	return entries
}

// seed stores a pending detail directly.
func (f *fixture) seed(t testing.TB, d OrderDetail) {
	t.Helper()
	if err := f.repo.CreateOrderDetail(context.Background(), d); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) put(t testing.TB, collection, id string) {
	t.Helper()
	if err := f.store.Put(context.Background(), collection, id, docstore.Fields{"name": id}); err != nil {
		t.Fatal(err)
	}
}
