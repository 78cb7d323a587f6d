package docstoretest

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-ledger-orders/internal/docstore"
	"testing"
)

func TestCreateRejectsDuplicateID(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Create(ctx, docstore.Products, "p1", docstore.Fields{"name": "pen"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := s.Create(ctx, docstore.Products, "p1", docstore.Fields{"name": "pencil"})
	if !errors.Is(err, docstore.ErrAlreadyExists) {
		t.Fatalf("second create err = %v, want ErrAlreadyExists", err)
	}
	d, _ := s.Get(ctx, docstore.Products, "p1")
	if d.Fields["name"] != "pen" {
		t.Errorf("name = %v, duplicate create must not overwrite", d.Fields["name"])
	}
}

func TestUpsertMergesAndReportsCreation(t *testing.T) {
	s := New()
	ctx := context.Background()
	created, err := s.Upsert(ctx, docstore.Inventory, "p1", docstore.Fields{"quantity": 3, "additional_details": "a"})
	if err != nil || !created {
		t.Fatalf("first upsert created=%v err=%v", created, err)
	}
	created, err = s.Upsert(ctx, docstore.Inventory, "p1", docstore.Fields{"quantity": 5})
	if err != nil || created {
		t.Fatalf("second upsert created=%v err=%v", created, err)
	}
	d, _ := s.Get(ctx, docstore.Inventory, "p1")
	if d.Fields["quantity"] != float64(5) || d.Fields["additional_details"] != "a" {
		t.Errorf("fields = %v", d.Fields)
	}
}

func TestQueryEqualsAndServerTimestamp(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, st := range []string{"pending", "confirmed", "pending"} {
		if _, err := s.Add(ctx, docstore.OrderDetails, docstore.Fields{"ledger_status": st, "at": docstore.ServerTimestamp}); err != nil {
			t.Fatal(err)
		}
	}
	docs, err := s.QueryEquals(ctx, docstore.OrderDetails, "ledger_status", "pending")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if _, ok := docs[0].Fields["at"].(string); !ok {
		t.Errorf("server timestamp should be stored as a string, got %T", docs[0].Fields["at"])
	}
}

func TestUpdateMissing(t *testing.T) {
	s := New()
	err := s.Update(context.Background(), docstore.OrderDetails, "nope", docstore.Fields{"x": 1})
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDoneContextFails(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Get(ctx, docstore.OrderDetails, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if err := s.Put(ctx, docstore.OrderDetails, "x", docstore.Fields{"a": 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if n := s.Count(docstore.OrderDetails); n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}

func TestFailNextExpires(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.FailNext("put", docstore.Products, errors.New("blip"), 2)
	for i := 0; i < 2; i++ {
		if err := s.Put(ctx, docstore.Products, "p1", docstore.Fields{"name": "pen"}); err == nil {
			t.Fatalf("put %d should fail", i)
		}
	}
	if err := s.Put(ctx, docstore.Products, "p1", docstore.Fields{"name": "pen"}); err != nil {
		t.Fatalf("third put: %v", err)
	}
}
