package orders

import (
	"errors"
	"fmt"
	"github.com/ariefcatur/go-ledger-orders/internal/docstore"
	"github.com/ariefcatur/go-ledger-orders/internal/ledger"
)

type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindStorage          Kind = "storage"
	KindLedgerSubmission Kind = "ledger_submission"
	KindLedgerTimeout    Kind = "ledger_timeout"
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func storageErr(op string, err error) error {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return E(KindNotFound, op, err)
	case errors.Is(err, docstore.ErrAlreadyExists):
		return E(KindConflict, op, err)
	default:
		return E(KindStorage, op, err)
	}
}

func ledgerErr(op string, err error) error {
	var te *ledger.TimeoutError
	if errors.As(err, &te) {
		return E(KindLedgerTimeout, op, err)
	}
	return E(KindLedgerSubmission, op, err)
}
