package orders

import (
	"github.com/goccy/go-json"
	"time"
)

const (
	EventLedgerSubmitRequested = "LedgerSubmitRequested"
	EventLedgerStatusChanged   = "LedgerStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "order-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order detail id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type LedgerSubmitRequestedPayload struct {
	OrderDetailID string  `json:"order_detail_id"`
	OrderID       string  `json:"order_id"`
	ProductID     string  `json:"product_id"`
	Quantity      int     `json:"quantity"`
	PriceEach     float64 `json:"price_each"`

	// actor who recorded the detail; the worker attributes its activity entry to it
	UserID string `json:"user_id,omitempty"`
}

// StatusChange is fanned out over Redis pub/sub and relayed to websocket clients.
type StatusChange struct {
	OrderDetailID string       `json:"order_detail_id"`
	OrderID       string       `json:"order_id"`
	From          LedgerStatus `json:"from"`
	To            LedgerStatus `json:"to"`
	TxHash        string       `json:"tx_hash,omitempty"`
	Error         string       `json:"error,omitempty"`
	At            time.Time    `json:"at"`
}
