package ledger

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-ledger-orders/internal/logging"
	"github.com/ariefcatur/go-ledger-orders/internal/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
	"time"
)

type BreakerSettings struct {
	// consecutive infrastructure failures before opening
	MaxFailures uint32
	// how long the breaker stays open before probing
	OpenTimeout time.Duration
}

type breaker struct {
	next Submitter
	cb   *gobreaker.CircuitBreaker[Receipt]
}

// WithBreaker stops hammering an unreachable node. Reverts are the contract answering,
// so they do not count against the node.
func WithBreaker(next Submitter, s BreakerSettings) Submitter {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.OpenTimeout == 0 {
		s.OpenTimeout = 30 * time.Second
	}
	metrics.LedgerBreakerState.Set(0)
	cb := gobreaker.NewCircuitBreaker[Receipt](gobreaker.Settings{
		Name:        "ledger",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrReverted)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.LedgerBreakerState.Set(stateValue(to))
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("ledger circuit breaker state change")
		},
	})
	return &breaker{next: next, cb: cb}
}

func (b *breaker) SubmitOrderDetail(ctx context.Context, rec Record) (Receipt, error) {
	r, err := b.cb.Execute(func() (Receipt, error) {
		return b.next.SubmitOrderDetail(ctx, rec)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Receipt{}, &SubmitError{Err: err}
	}
	return r, err
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
