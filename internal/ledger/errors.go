package ledger

import (
	"errors"
	"fmt"
	gobreaker "github.com/sony/gobreaker/v2"
	"strings"
	"time"
)

var (
	ErrReverted          = errors.New("ledger: transaction reverted")
	ErrSignerUnavailable = errors.New("ledger: signing key unavailable")
	ErrInvalidRecord     = errors.New("ledger: record out of range")
)

// SubmitError is any failure to get a record onto the ledger. TxHash is set once the
// transaction left this process; from then on resubmitting would duplicate it.
type SubmitError struct {
	TxHash string
	Err    error
}

func (e *SubmitError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("ledger submit (tx %s): %v", e.TxHash, e.Err)
	}
	return fmt.Sprintf("ledger submit: %v", e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// TimeoutError means the transaction was sent but no receipt arrived within the bound.
type TimeoutError struct {
	TxHash string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("ledger: no receipt for tx %s after %s", e.TxHash, e.After)
}

// TxHash returns the hash of the transaction an error refers to, if it got that far.
func TxHash(err error) string {
	var te *TimeoutError
	if errors.As(err, &te) {
		return te.TxHash
	}
	var se *SubmitError
	if errors.As(err, &se) {
		return se.TxHash
	}
	return ""
}

// Retryable reports whether resubmitting the same record could succeed without risking
// a duplicate ledger entry.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrReverted), errors.Is(err, ErrSignerUnavailable), errors.Is(err, ErrInvalidRecord):
		return false
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return false
	case TxHash(err) != "":
		return false
	}
	var te *TimeoutError
	return !errors.As(err, &te)
}

// Outcome is a short label for metrics and stored error kinds.
func Outcome(err error) string {
	var te *TimeoutError
	switch {
	case err == nil:
		return "confirmed"
	case errors.As(err, &te):
		return "timeout"
	case errors.Is(err, ErrReverted):
		return "reverted"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	default:
		return "error"
	}
}

func isRevert(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}
