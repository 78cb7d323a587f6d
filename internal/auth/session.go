package auth

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-ledger-orders/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"time"
)

// Session is what a login leaves behind: the actor for later requests.
type Session struct {
	ID       string
	UserID   string
	Username string
}

// SessionStore keeps sessions as Redis hashes that expire after TTL.
type SessionStore struct {
	R   redis.Cmdable
	TTL time.Duration
}

func (s *SessionStore) Create(ctx context.Context, userID, username string) (Session, error) {
	sess := Session{ID: uuid.NewString(), UserID: userID, Username: username}
	key := fmt.Sprintf(redisx.KeySession, sess.ID)
	_, err := s.R.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, "user_id", userID, "username", username)
		p.Expire(ctx, key, s.TTL)
		return nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Get returns false for unknown or expired sessions.
func (s *SessionStore) Get(ctx context.Context, id string) (Session, bool, error) {
	m, err := s.R.HGetAll(ctx, fmt.Sprintf(redisx.KeySession, id)).Result()
	if err != nil {
		return Session{}, false, fmt.Errorf("get session: %w", err)
	}
	if m["user_id"] == "" {
		return Session{}, false, nil
	}
	return Session{ID: id, UserID: m["user_id"], Username: m["username"]}, true, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.R.Del(ctx, fmt.Sprintf(redisx.KeySession, id)).Err()
}
