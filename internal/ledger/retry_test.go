package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedSubmitter struct {
	errs  []error
	calls int
}

func (s *scriptedSubmitter) SubmitOrderDetail(context.Context, Record) (Receipt, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return Receipt{}, s.errs[i]
	}
	return Receipt{TxHash: "0xabc", Confirmed: true}, nil
}

var fastRetry = RetryPolicy{MaxRetries: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond}

func TestWithRetryRecoversFromTransientErrors(t *testing.T) {
	transient := &SubmitError{Err: errors.New("connection reset")}
	s := &scriptedSubmitter{errs: []error{transient, transient}}

	r, err := WithRetry(s, fastRetry).SubmitOrderDetail(context.Background(), Record{ID: "x"})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if !r.Confirmed || s.calls != 3 {
		t.Errorf("receipt=%+v calls=%d", r, s.calls)
	}
}

func TestWithRetryStopsOnPermanentErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"revert", &SubmitError{Err: ErrReverted}},
		{"timeout", &TimeoutError{TxHash: "0x1", After: time.Second}},
		{"sent", &SubmitError{TxHash: "0x1", Err: errors.New("receipt lookup failed")}},
		{"signer", &SubmitError{Err: ErrSignerUnavailable}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scriptedSubmitter{errs: []error{tt.err, tt.err, tt.err}}
			_, err := WithRetry(s, fastRetry).SubmitOrderDetail(context.Background(), Record{ID: "x"})
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if s.calls != 1 {
				t.Errorf("calls = %d, want 1", s.calls)
			}
		})
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	transient := &SubmitError{Err: errors.New("connection refused")}
	s := &scriptedSubmitter{errs: []error{transient, transient, transient, transient, transient}}

	_, err := WithRetry(s, fastRetry).SubmitOrderDetail(context.Background(), Record{ID: "x"})
	if !errors.Is(err, transient) {
		t.Fatalf("err = %v", err)
	}
	if s.calls != 4 {
		t.Errorf("calls = %d, want 1 + 3 retries", s.calls)
	}
}

func TestNoRetrySingleAttempt(t *testing.T) {
	s := &scriptedSubmitter{errs: []error{&SubmitError{Err: errors.New("down")}}}
	_, err := WithRetry(s, NoRetry).SubmitOrderDetail(context.Background(), Record{ID: "x"})
	if err == nil || s.calls != 1 {
		t.Fatalf("err=%v calls=%d", err, s.calls)
	}
}
