// Package notify fans produced signals out to subscribers without ever
// blocking the producer. The bus drops on overflow; downstream sinks that
// must not miss anything belong on a durable transport instead.
package notify

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/codeAPmind/tradingsystem/internal/metrics"
	"github.com/codeAPmind/tradingsystem/internal/signal"
)

// Subscriber receives published signals. Handle must not block for long;
// the dispatcher delivers sequentially.
type Subscriber interface {
	Handle(sig *signal.Signal)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(sig *signal.Signal)

func (f SubscriberFunc) Handle(sig *signal.Signal) { f(sig) }

// Bus is a bounded, non-blocking signal fanout.
type Bus struct {
	mu     sync.RWMutex
	subs   []Subscriber
	ch     chan *signal.Signal
	done   chan struct{}
	closed bool
	log    zerolog.Logger
}

// NewBus builds a bus with the given buffer size.
func NewBus(buffer int, log zerolog.Logger) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{
		ch:   make(chan *signal.Signal, buffer),
		done: make(chan struct{}),
		log:  log,
	}
}

// Subscribe registers a subscriber. Subscriptions after Start still receive
// subsequent signals.
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, s)
}

// Publish enqueues a signal without blocking. When the buffer is full the
// signal is counted as dropped and discarded.
func (b *Bus) Publish(sig *signal.Signal) {
	if sig == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	// The lock is held across the send so Close cannot close the channel
	// between the flag check and the send. The send never blocks, so Close
	// waiting for the write lock cannot deadlock against it.
	select {
	case b.ch <- sig:
	default:
		metrics.SignalsDroppedTotal.Inc()
		b.log.Warn().Str("ticker", sig.Ticker).Str("type", string(sig.Type)).Msg("signal dropped, bus full")
	}
}

// Start launches the dispatcher goroutine.
func (b *Bus) Start() {
	go func() {
		defer close(b.done)
		for sig := range b.ch {
			b.mu.RLock()
			subs := make([]Subscriber, len(b.subs))
			copy(subs, b.subs)
			b.mu.RUnlock()
			for _, s := range subs {
				s.Handle(sig)
			}
		}
	}()
}

// Close stops accepting signals and waits for the dispatcher to drain.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.ch)
	b.mu.Unlock()
	<-b.done
}
