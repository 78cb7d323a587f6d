// Package docstore is a collection/document persistence layer: schemaless documents
// addressed by (collection, id), with server-assigned timestamps and equality queries.
package docstore

import (
	"context"
	"errors"
	"github.com/goccy/go-json"
	"time"
)

// Collections of the persisted layout.
const (
	Users         = "users"
	Inventory     = "inventory"
	Products      = "products"
	Manufacturers = "manufacturers"
	Customers     = "customers"
	Orders        = "orders"
	OrderDetails  = "orderDetails"
	Payments      = "payments"
	Activities    = "activities"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
)

type serverTimestamp struct{}

// ServerTimestamp is a field value placeholder replaced by the store's clock at write time.
var ServerTimestamp = serverTimestamp{}

type Fields map[string]any

type Document struct {
	Collection string
	ID         string
	Fields     Fields
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DataTo decodes the document fields into v (a pointer to a struct with json tags).
func (d Document) DataTo(v any) error {
	b, err := json.Marshal(d.Fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Store is the document store contract. Writes are durable once they return nil;
// nothing spans more than one document.
type Store interface {
	// Put creates or overwrites the document.
	Put(ctx context.Context, collection, id string, fields Fields) error
	// Create inserts the document, failing with ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, collection, id string, fields Fields) error
	// Add creates a document under a generated id.
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	// Upsert merges fields into an existing document or creates it.
	Upsert(ctx context.Context, collection, id string, fields Fields) (created bool, err error)
	// Update merges fields into an existing document, ErrNotFound otherwise.
	Update(ctx context.Context, collection, id string, fields Fields) error
	Get(ctx context.Context, collection, id string) (Document, error)
	// QueryEquals returns documents whose field equals value, oldest first.
	QueryEquals(ctx context.Context, collection, field string, value any) ([]Document, error)
}

// IsServerTimestamp reports whether v is the ServerTimestamp placeholder.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}
