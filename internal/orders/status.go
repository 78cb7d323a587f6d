package orders

import "errors"

// LedgerStatus tracks the ledger mirror of an order detail.
type LedgerStatus string

const (
	LedgerPending   LedgerStatus = "pending"
	LedgerConfirmed LedgerStatus = "confirmed"
	LedgerFailed    LedgerStatus = "failed"
)

var validNext = map[LedgerStatus]map[LedgerStatus]bool{
	LedgerPending:   {LedgerConfirmed: true, LedgerFailed: true},
	LedgerFailed:    {LedgerPending: true, LedgerConfirmed: true}, // retry, or a late receipt
	LedgerConfirmed: {},
}

var ErrInvalidTransition = errors.New("invalid ledger status transition")

func CanTransition(from, to LedgerStatus) bool {
	return validNext[from][to]
}

func (s LedgerStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}
