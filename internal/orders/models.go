package orders

import (
	"github.com/ariefcatur/go-ledger-orders/internal/ledger"
	"math"
	"time"
)

type OrderDetail struct {
	ID              string       `json:"id"`
	OrderID         string       `json:"order_id"`
	ProductID       string       `json:"product_id"`
	Quantity        int          `json:"quantity"`
	PriceEach       float64      `json:"price_each"`
	LedgerStatus    LedgerStatus `json:"ledger_status"`
	LedgerTxHash    string       `json:"ledger_tx_hash,omitempty"`
	LedgerBlock     uint64       `json:"ledger_block,omitempty"`
	LedgerError     string       `json:"ledger_error,omitempty"`
	LedgerAutoRetry bool         `json:"ledger_auto_retry,omitempty"`
	LedgerUpdatedAt *time.Time   `json:"ledger_updated_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// MaxPriceEach keeps PriceEach*100 within float64's exact integer range, so the cents
// value sent to the ledger is exact.
const MaxPriceEach = 90_000_000_000_000

// PriceEachCents is the integer form sent to the ledger, which has no decimals.
func (d OrderDetail) PriceEachCents() int64 {
	return int64(math.Round(d.PriceEach * 100))
}

func (d OrderDetail) LedgerRecord() ledger.Record {
	return ledger.Record{
		ID:             d.ID,
		ProductID:      d.ProductID,
		Quantity:       int64(d.Quantity),
		PriceEachCents: d.PriceEachCents(),
	}
}

type Product struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Details        string  `json:"details"`
	ManufacturerID string  `json:"manufacturer_id"`
	Price          float64 `json:"price"`
}

type Manufacturer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Details string `json:"details"`
}

type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type Order struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	TotalPrice float64   `json:"total_price"`
	OrderDate  time.Time `json:"order_date"`
}

type Payment struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id"`
	Amount        float64   `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	PaymentDate   time.Time `json:"payment_date"`
}

// InventoryItem is keyed by product id.
type InventoryItem struct {
	ProductID         string `json:"product_id"`
	Quantity          int    `json:"quantity"`
	AdditionalDetails string `json:"additional_details"`
}

// ---- form input ----

type OrderDetailInput struct {
	OrderID   string  `form:"order_id" validate:"required,max=128"`
	ProductID string  `form:"product_id" validate:"required,max=128"`
	Quantity  int     `form:"quantity" validate:"gt=0"`
	PriceEach float64 `form:"price_each" validate:"gte=0,lte=90000000000000"`
}

type ProductInput struct {
	Name           string  `form:"name" validate:"required,max=256"`
	Details        string  `form:"details"`
	ManufacturerID string  `form:"manufacturer_id" validate:"required"`
	Price          float64 `form:"price" validate:"gte=0"`
}

type ManufacturerInput struct {
	Name    string `form:"name" validate:"required,max=256"`
	Details string `form:"details"`
}

type CustomerInput struct {
	Name    string `form:"name" validate:"required,max=256"`
	Email   string `form:"email" validate:"required,email"`
	Address string `form:"address"`
	Phone   string `form:"phone"`
}

type OrderInput struct {
	CustomerID string  `form:"customer_id" validate:"required"`
	ProductID  string  `form:"product_id" validate:"required"`
	Quantity   int     `form:"quantity" validate:"gt=0"`
	TotalPrice float64 `form:"total_price" validate:"gte=0"`
}

type PaymentInput struct {
	OrderID       string  `form:"order_id" validate:"required"`
	Amount        float64 `form:"amount" validate:"gt=0"`
	PaymentMethod string  `form:"payment_method" validate:"required"`
}

type InventoryInput struct {
	ProductID         string `form:"product_id" validate:"required"`
	Quantity          int    `form:"quantity" validate:"gte=0"`
	AdditionalDetails string `form:"additional_details"`
}
