package orders

import (
	"context"
	"errors"
	"fmt"
	kafkax "github.com/ariefcatur/go-ledger-orders/internal/kafka"
	"github.com/ariefcatur/go-ledger-orders/internal/logging"
	"github.com/ariefcatur/go-ledger-orders/internal/redisx"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"time"
)

// StatusCache keeps recently read order details in Redis and fans out status transitions
// on ChannelLedgerStatus. Cache failures are logged and otherwise ignored.
type StatusCache struct {
	R redis.Cmdable
	// Producer names the publishing service in the event envelope.
	Producer string
}

var _ StatusNotifier = (*StatusCache)(nil)

func (c *StatusCache) Get(ctx context.Context, id string) (OrderDetail, bool) {
	b, err := c.R.Get(ctx, fmt.Sprintf(redisx.KeyOrderDetail, id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.Ctx(ctx).Warn().Err(err).Str("order_detail_id", id).Msg("status cache read failed")
		}
		return OrderDetail{}, false
	}
	var d OrderDetail
	if err := json.Unmarshal(b, &d); err != nil {
		return OrderDetail{}, false
	}
	return d, true
}

func (c *StatusCache) Set(ctx context.Context, d OrderDetail) {
	b, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := c.R.Set(ctx, fmt.Sprintf(redisx.KeyOrderDetail, d.ID), b, redisx.TTLStatusCache).Err(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("order_detail_id", d.ID).Msg("status cache write failed")
	}
}

// StatusChanged drops the cached copy and publishes the transition.
func (c *StatusCache) StatusChanged(ctx context.Context, ch StatusChange) {
	log := logging.Ctx(ctx)
	if err := c.R.Del(ctx, fmt.Sprintf(redisx.KeyOrderDetail, ch.OrderDetailID)).Err(); err != nil {
		log.Warn().Err(err).Str("order_detail_id", ch.OrderDetailID).Msg("status cache invalidate failed")
	}
	b, err := encodeStatusChange(ch, c.Producer)
	if err != nil {
		log.Warn().Err(err).Str("order_detail_id", ch.OrderDetailID).Msg("encode status change failed")
		return
	}
	if err := c.R.Publish(ctx, redisx.ChannelLedgerStatus, b).Err(); err != nil {
		log.Warn().Err(err).Str("order_detail_id", ch.OrderDetailID).Msg("publish status change failed")
	}
}

type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// SubscribeStatus calls fn for every published transition until ctx ends.
func SubscribeStatus(ctx context.Context, rdb subscriber, fn func(StatusChange)) error {
	sub := rdb.Subscribe(ctx, redisx.ChannelLedgerStatus)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", redisx.ChannelLedgerStatus, err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			sc, ok, err := decodeStatusChange([]byte(msg.Payload))
			if err != nil {
				logging.Warn().Err(err).Msg("drop undecodable status change")
				continue
			}
			if ok {
				fn(sc)
			}
		}
	}
}

func encodeStatusChange(ch StatusChange, producer string) ([]byte, error) {
	payload, err := json.Marshal(ch)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventLedgerStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: ch.OrderDetailID,
		Payload:       payload,
	})
}

// decodeStatusChange reports ok=false for envelopes of any other event type.
func decodeStatusChange(b []byte) (StatusChange, bool, error) {
	var env Envelope
	if err := kafkax.UnmarshalEnvelope(b, &env); err != nil {
		return StatusChange{}, false, err
	}
	if env.EventType != EventLedgerStatusChanged {
		return StatusChange{}, false, nil
	}
	sc, err := kafkax.UnwrapPayload[StatusChange](env.Payload)
	if err != nil {
		return StatusChange{}, false, err
	}
	return sc, true, nil
}

// Reader serves order-detail reads, through the cache when one is configured.
type Reader struct {
	Repo  *Repo
	Cache *StatusCache
}

func (r *Reader) GetOrderDetail(ctx context.Context, id string) (OrderDetail, error) {
	if r.Cache != nil {
		if d, ok := r.Cache.Get(ctx, id); ok {
			return d, nil
		}
	}
	d, err := r.Repo.GetOrderDetail(ctx, id)
	if err != nil {
		return OrderDetail{}, err
	}
	if r.Cache != nil {
		r.Cache.Set(ctx, d)
	}
	return d, nil
}

func (r *Reader) OrderDetailsByStatus(ctx context.Context, status LedgerStatus) ([]OrderDetail, error) {
	if !status.Valid() {
		return nil, E(KindValidation, "list order details", fmt.Errorf("unknown ledger status %q", status))
	}
	return r.Repo.OrderDetailsByStatus(ctx, status)
}
