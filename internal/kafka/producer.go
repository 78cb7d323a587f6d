package kafka

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-ledger-orders/internal/logging"
	"github.com/segmentio/kafka-go"
	"sync"
	"time"
)

var ErrProducerClosed = errors.New("kafka producer closed")

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer hands messages to a background writer loop. Publish only fails when the
// message cannot be queued; write failures after that are logged by the loop.
type Producer struct {
	w        writer
	inbox    chan kafka.Message
	closeCh  chan struct{}
	stopping chan struct{}
	stopOnce sync.Once

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, topic string, buf int) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, buf)
}

func newProducer(w writer, buf int) *Producer {
	return &Producer{
		w:        w,
		inbox:    make(chan kafka.Message, buf),
		closeCh:  make(chan struct{}),
		stopping: make(chan struct{}),
	}
}

func (p *Producer) Start(ctx context.Context) {
	log := logging.Component("kafka-producer")
	write := func(m kafka.Message) {
		if err := p.w.WriteMessages(context.Background(), m); err != nil {
			log.Error().Err(err).Str("key", string(m.Key)).Msg("write message failed")
		}
	}
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				// unblock publishers waiting on a full inbox before taking the write lock
				p.stopOnce.Do(func() { close(p.stopping) })
				p.Close()
				for m := range p.inbox {
					write(m)
				}
				_ = p.w.Close()
				return
			case m, ok := <-p.inbox:
				if !ok {
					_ = p.w.Close()
					return
				}
				write(m)
			}
		}
	}()
}

func (p *Producer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	m := kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	select {
	case p.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopping:
		return ErrProducerClosed
	}
}

// Close stops accepting messages; the loop flushes what is queued and exits.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the writer loop is done.
func (p *Producer) WaitClosed() { <-p.closeCh }
