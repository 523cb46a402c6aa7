package transport

import (
	"context"
	"sync"
	"time"

	"github.com/backkem/pumpx2/pkg/message"
	"github.com/pion/logging"
)

// inbox demultiplexes inbound packets into one queue per channel.
type inbox struct {
	queues []chan []byte
	done   chan struct{}
	log    logging.LeveledLogger

	mu   sync.Mutex
	err  error
	once sync.Once
}

func newInbox(depth int, log logging.LeveledLogger) *inbox {
	if depth <= 0 {
		depth = DefaultInboxDepth
	}
	b := &inbox{
		queues: make([]chan []byte, len(message.Channels)),
		done:   make(chan struct{}),
		log:    log,
	}
	for i := range b.queues {
		b.queues[i] = make(chan []byte, depth)
	}
	return b
}

// deliver queues packet on ch, dropping it if the queue is full.
func (b *inbox) deliver(ch message.Channel, packet []byte) {
	if !ch.IsValid() {
		if b.log != nil {
			b.log.Warnf("dropping packet on invalid channel %d", ch)
		}
		return
	}
	select {
	case b.queues[ch] <- packet:
	default:
		if b.log != nil {
			b.log.Warnf("inbox full on %s, dropping %d-byte packet", ch, len(packet))
		}
	}
}

func (b *inbox) await(ctx context.Context, ch message.Channel, timeout time.Duration) ([]byte, error) {
	if !ch.IsValid() {
		return nil, ErrInvalidChannel
	}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	// Queued packets win over a concurrent close.
	select {
	case p := <-b.queues[ch]:
		return p, nil
	default:
	}

	select {
	case p := <-b.queues[ch]:
		return p, nil
	case <-timer:
		return nil, ErrTimeout
	case <-b.done:
		return nil, b.closeErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// close wakes all waiters with err.
func (b *inbox) close(err error) {
	b.once.Do(func() {
		b.mu.Lock()
		b.err = err
		b.mu.Unlock()
		close(b.done)
	})
}

func (b *inbox) closeErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *inbox) isClosed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}
