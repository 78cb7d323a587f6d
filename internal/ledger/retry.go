package ledger

import (
	"context"
	"github.com/ariefcatur/go-ledger-orders/internal/logging"
	"github.com/cenkalti/backoff/v4"
	"time"
)

// RetryPolicy bounds resubmission of records that never reached the chain.
// MaxRetries 0 means a single attempt.
type RetryPolicy struct {
	MaxRetries uint64
	Initial    time.Duration
	Max        time.Duration
}

var NoRetry = RetryPolicy{}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.Initial > 0 {
		b.InitialInterval = p.Initial
	}
	if p.Max > 0 {
		b.MaxInterval = p.Max
	}
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)
}

type retrying struct {
	next   Submitter
	policy RetryPolicy
}

// WithRetry resubmits while the error is Retryable and the policy allows.
func WithRetry(next Submitter, policy RetryPolicy) Submitter {
	return &retrying{next: next, policy: policy}
}

func (r *retrying) SubmitOrderDetail(ctx context.Context, rec Record) (Receipt, error) {
	var out Receipt
	op := func() error {
		rc, err := r.next.SubmitOrderDetail(ctx, rec)
		out = rc
		if err != nil && !Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logging.Ctx(ctx).Warn().Err(err).
			Str("order_detail_id", rec.ID).
			Dur("retry_in", wait).
			Msg("ledger submission failed, retrying")
	}
	err := backoff.RetryNotify(op, r.policy.backOff(ctx), notify)
	return out, err
}
