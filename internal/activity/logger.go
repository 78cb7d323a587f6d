// Package activity appends user-attributed audit entries to the activities collection.
package activity

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-ledger-orders/internal/docstore"
	"github.com/ariefcatur/go-ledger-orders/internal/logging"
	"github.com/ariefcatur/go-ledger-orders/internal/metrics"
	"time"
)

// UnknownUser attributes actions performed without a session.
const UnknownUser = "Unknown user"

type Entry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Activity     string    `json:"activity"`
	ActivityDate time.Time `json:"activity_date"`
}

type Logger struct {
	Store docstore.Store
}

func New(store docstore.Store) *Logger { return &Logger{Store: store} }

// Append writes one entry. Entries are only ever added, never rewritten.
func (l *Logger) Append(ctx context.Context, userID, text string) (string, error) {
	if userID == "" {
		userID = UnknownUser
	}
	id, err := l.Store.Add(ctx, docstore.Activities, docstore.Fields{
		"user_id":       userID,
		"activity":      text,
		"activity_date": docstore.ServerTimestamp,
	})
	if err != nil {
		return "", fmt.Errorf("append activity: %w", err)
	}
	return id, nil
}

// Log is the fire-and-forget form of Append: failures are reported on the operational
// log and the failure counter, never to the caller.
func (l *Logger) Log(ctx context.Context, userID, text string) {
	if _, err := l.Append(ctx, userID, text); err != nil {
		metrics.ActivityLogFailures.Inc()
		logging.Ctx(ctx).Warn().Err(err).
			Str("user_id", userID).
			Str("activity", text).
			Msg("activity log write failed")
	}
}

// ByUser lists the entries attributed to userID, oldest first.
func (l *Logger) ByUser(ctx context.Context, userID string) ([]Entry, error) {
	docs, err := l.Store.QueryEquals(ctx, docstore.Activities, "user_id", userID)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(docs))
	for _, d := range docs {
		var e Entry
		if err := d.DataTo(&e); err != nil {
			return nil, err
		}
		e.ID = d.ID
		out = append(out, e)
	}
	return out, nil
}
