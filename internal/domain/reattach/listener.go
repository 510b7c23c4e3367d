package reattach

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/anafis/workspace/internal/domain/events"
	"github.com/anafis/workspace/internal/domain/tabs"
)

// Sink is the main window's store as seen by the Listener.
type Sink interface {
	Add(tab tabs.Tab) bool
}

// ForgetFunc drops bookkeeping for the window that owned a returning tab.
type ForgetFunc func(tabID string) bool

// Listener receives reattach requests in the main window.
type Listener struct {
	store   Sink
	factory tabs.ContentFactory
	filter  *events.VersionFilter
	forget  ForgetFunc
	logger  *zap.Logger
	sub     *events.Subscription
}

// NewListener creates a listener adding returned tabs to store. The filter
// may be shared with other ownership-transfer listeners of the same window.
func NewListener(store Sink, factory tabs.ContentFactory, filter *events.VersionFilter, forget ForgetFunc, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	if filter == nil {
		filter = events.NewVersionFilter()
	}
	return &Listener{
		store:   store,
		factory: factory,
		filter:  filter,
		forget:  forget,
		logger:  logger,
	}
}

// Attach subscribes the listener to bus.
func (l *Listener) Attach(bus *events.Bus) {
	l.sub = bus.On(events.KindReattachRequest, l.Handle)
}

// Detach unsubscribes the listener.
func (l *Listener) Detach() {
	if l.sub != nil {
		l.sub.Unsubscribe()
		l.sub = nil
	}
}

// Handle processes one reattach envelope. Duplicates and stale transfers are
// dropped; adding an id already present is a no-op.
func (l *Listener) Handle(env events.Envelope) error {
	req, ok := env.Event.(events.ReattachRequest)
	if !ok {
		return fmt.Errorf("unexpected event %T for %s", env.Event, events.KindReattachRequest)
	}

	info := req.Tab
	if err := info.Validate(); err != nil {
		return fmt.Errorf("invalid reattach payload: %w", err)
	}
	if info.ID == tabs.HomeID {
		return tabs.ErrPinnedTab
	}

	if !l.filter.Accept(info) {
		l.logger.Debug("Ignoring stale reattach",
			zap.String("tab", info.ID),
			zap.Uint64("version", info.Version),
		)
		return nil
	}

	added := l.store.Add(info.Materialize(l.factory))
	if l.forget != nil {
		l.forget(info.ID)
	}

	l.logger.Info("Tab reattached",
		zap.String("tab", info.ID),
		zap.String("from", env.Origin.String()),
		zap.Bool("added", added),
	)
	return nil
}
