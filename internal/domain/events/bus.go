package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anafis/workspace/internal/shared/id"
)

// Handler receives an envelope. A returned error or a panic is logged and
// never reaches other handlers.
type Handler func(Envelope) error

// Relay forwards locally emitted envelopes to the host runtime, which fans
// them out to the other windows.
type Relay interface {
	Publish(Envelope) error
}

// FaultHook observes handler failures.
type FaultHook func(kind Kind)

const defaultQueueSize = 256

type subscription struct {
	id      uint64
	handler Handler
}

// delivery is a queued envelope with the handlers subscribed when it was
// emitted.
type delivery struct {
	env  Envelope
	subs []subscription
}

// Subscription identifies one registered handler.
type Subscription struct {
	bus  *Bus
	kind Kind
	id   uint64
}

// ID returns the subscription number, usable with Bus.Off.
func (s *Subscription) ID() uint64 { return s.id }

// Unsubscribe removes the handler. Calling it more than once is harmless.
func (s *Subscription) Unsubscribe() { s.bus.Off(s.kind, s.id) }

// Bus is one window's publish/subscribe hub. Emit is fire-and-forget:
// delivery is asynchronous, unacknowledged and never retried. An envelope
// reaches the handlers subscribed when it was queued, in subscription order,
// on the bus's dispatcher goroutine.
type Bus struct {
	window id.WindowID
	logger *zap.Logger
	onFail FaultHook

	mu       sync.RWMutex
	handlers map[Kind][]subscription // Protected by mu
	relay    Relay                   // Protected by mu
	nextID   uint64                  // Protected by mu
	closed   bool                    // Protected by mu

	queue chan delivery
	done  chan struct{}
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

// WithRelay sets the cross-window relay.
func WithRelay(r Relay) Option {
	return func(b *Bus) { b.relay = r }
}

// WithQueueSize bounds the number of undelivered envelopes.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queue = make(chan delivery, n)
		}
	}
}

// WithFaultHook registers an observer for handler failures.
func WithFaultHook(h FaultHook) Option {
	return func(b *Bus) { b.onFail = h }
}

// NewBus creates the bus of one window and starts its dispatcher.
func NewBus(window id.WindowID, opts ...Option) *Bus {
	b := &Bus{
		window:   window,
		logger:   zap.NewNop(),
		handlers: make(map[Kind][]subscription),
		queue:    make(chan delivery, defaultQueueSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With(zap.String("window", window.String()))

	go b.dispatch()
	return b
}

// Window returns the window this bus belongs to.
func (b *Bus) Window() id.WindowID {
	return b.window
}

// SetRelay replaces the cross-window relay; nil disables forwarding.
func (b *Bus) SetRelay(r Relay) {
	b.mu.Lock()
	b.relay = r
	b.mu.Unlock()
}

// On registers a handler for a kind.
func (b *Bus) On(kind Kind, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[kind] = append(b.handlers[kind], subscription{id: b.nextID, handler: h})
	return &Subscription{bus: b, kind: kind, id: b.nextID}
}

// Off removes the handler registered under the given subscription id.
func (b *Bus) Off(kind Kind, subID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[kind]
	for i, s := range subs {
		if s.id == subID {
			b.handlers[kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Emit publishes an event from this window: it is queued for local handlers
// and forwarded through the relay. The returned envelope is what was sent.
func (b *Bus) Emit(ev Event) Envelope {
	env := Envelope{
		ID:     uuid.NewString(),
		Origin: b.window,
		SentAt: time.Now(),
		Event:  ev,
	}

	b.enqueue(env)

	b.mu.RLock()
	relay := b.relay
	b.mu.RUnlock()

	if relay != nil {
		if err := relay.Publish(env); err != nil {
			b.logger.Warn("Failed to relay event",
				zap.String("kind", string(env.Kind())),
				zap.String("envelope", env.ID),
				zap.Error(err),
			)
		}
	}
	return env
}

// Deliver injects an envelope received from another window. It only reaches
// local handlers and is never relayed again.
func (b *Bus) Deliver(env Envelope) {
	b.enqueue(env)
}

// Close stops the dispatcher after queued envelopes were handled.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	<-b.done
}

func (b *Bus) enqueue(env Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Debug("Dropping event on closed bus", zap.String("kind", string(env.Kind())))
		return
	}

	d := delivery{env: env, subs: append([]subscription(nil), b.handlers[env.Kind()]...)}
	select {
	case b.queue <- d:
	default:
		b.logger.Warn("Event queue full, dropping event",
			zap.String("kind", string(env.Kind())),
			zap.String("envelope", env.ID),
		)
	}
}

func (b *Bus) dispatch() {
	defer close(b.done)

	for d := range b.queue {
		for _, s := range d.subs {
			b.invoke(s, d.env)
		}
	}
}

func (b *Bus) invoke(s subscription, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.fault(env, fmt.Errorf("handler panic: %v", r))
		}
	}()

	if err := s.handler(env); err != nil {
		b.fault(env, err)
	}
}

func (b *Bus) fault(env Envelope, err error) {
	b.logger.Error("Event handler failed",
		zap.String("kind", string(env.Kind())),
		zap.String("origin", env.Origin.String()),
		zap.String("envelope", env.ID),
		zap.Error(err),
	)
	if b.onFail != nil {
		b.onFail(env.Kind())
	}
}
