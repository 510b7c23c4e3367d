package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/anafis/workspace/internal/domain/drag"
	"github.com/anafis/workspace/internal/domain/events"
	"github.com/anafis/workspace/internal/domain/reattach"
	"github.com/anafis/workspace/internal/domain/tabs"
	"github.com/anafis/workspace/internal/domain/window"
	"github.com/anafis/workspace/internal/shared/id"
)

// ErrLastTab is returned when a detached window is asked to detach the only
// tab it holds; that tab already has a window of its own.
var ErrLastTab = errors.New("cannot detach the last tab of a detached window")

// Role tells the main window apart from detached ones.
type Role int

const (
	RoleMain Role = iota
	RoleDetached
)

func (r Role) String() string {
	if r == RoleMain {
		return "main"
	}
	return "detached"
}

// Host is everything a window process asks of the host runtime.
type Host interface {
	window.Host
	reattach.Sender
}

// Recorder observes workspace outcomes. monitoring.Metrics implements it.
type Recorder interface {
	RecordDetach(outcome string)
	RecordReattach(outcome string)
	RecordDrop(outcome string)
	RecordHandlerFault(kind string)
}

type nopRecorder struct{}

func (nopRecorder) RecordDetach(string)       {}
func (nopRecorder) RecordReattach(string)     {}
func (nopRecorder) RecordDrop(string)         {}
func (nopRecorder) RecordHandlerFault(string) {}

// Deps wires a window process.
type Deps struct {
	Host     Host
	Registry *window.Registry
	Factory  tabs.ContentFactory
	Drag     drag.Config
	Sizes    window.Sizes
	// HostTimeout bounds every host call; zero leaves calls unbounded.
	HostTimeout time.Duration
	QueueSize   int
	Relay       events.Relay
	Logger      *zap.Logger
	Recorder    Recorder
}

// Workspace is one window process: its store, bus, drag coordinator and the
// listeners that receive tabs from other windows.
type Workspace struct {
	id       id.WindowID
	role     Role
	store    *tabs.Store
	bus      *events.Bus
	windows  *window.Manager
	drag     *drag.Coordinator
	reattach *reattach.Reattacher
	listener *reattach.Listener
	filter   *events.VersionFilter
	host     Host
	timeout  time.Duration
	factory  tabs.ContentFactory
	recorder Recorder
	logger   *zap.Logger

	dropSub *events.Subscription
}

// NewMain creates the main window holding only the home tab.
func NewMain(d Deps) *Workspace {
	w := newWorkspace(id.MainWindow, RoleMain, d)
	w.store.Add(tabs.Home(d.Factory))

	w.listener = reattach.NewListener(w.store, d.Factory, w.filter, w.windows.Forget, w.logger)
	w.listener.Attach(w.bus)

	w.logger.Info("Main window ready")
	return w
}

// BootDetached creates a detached window from the URL it was opened with.
// The new store holds exactly the tab carried by the boot parameters.
func BootDetached(rawURL string, d Deps) (*Workspace, error) {
	p, err := window.ParseBootParams(rawURL)
	if err != nil {
		return nil, fmt.Errorf("boot detached window: %w", err)
	}
	if !p.Detached {
		return nil, window.ErrNotDetachedBoot
	}

	w := newWorkspace(id.DetachedWindow(p.Tab.ID), RoleDetached, d)
	if err := window.BootStore(p, d.Factory, w.store); err != nil {
		w.Close()
		return nil, fmt.Errorf("boot detached window: %w", err)
	}
	w.filter.Accept(p.Tab)

	w.logger.Info("Detached window ready", zap.String("tab", p.Tab.ID), zap.Uint64("version", p.Tab.Version))
	return w, nil
}

func newWorkspace(windowID id.WindowID, role Role, d Deps) *Workspace {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("window_id", windowID.String()))

	recorder := d.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	registry := d.Registry
	if registry == nil {
		registry = window.NewRegistry()
	}

	opts := []events.Option{
		events.WithLogger(logger),
		events.WithFaultHook(func(kind events.Kind) { recorder.RecordHandlerFault(string(kind)) }),
	}
	if d.QueueSize > 0 {
		opts = append(opts, events.WithQueueSize(d.QueueSize))
	}
	if d.Relay != nil {
		opts = append(opts, events.WithRelay(d.Relay))
	}

	w := &Workspace{
		id:       windowID,
		role:     role,
		store:    tabs.NewStore(logger),
		bus:      events.NewBus(windowID, opts...),
		windows:  window.NewManager(d.Host, registry, d.Sizes, logger).WithTimeout(d.HostTimeout),
		filter:   events.NewVersionFilter(),
		host:     d.Host,
		timeout:  d.HostTimeout,
		factory:  d.Factory,
		recorder: recorder,
		logger:   logger,
	}

	w.drag = drag.New(windowID, w.store, w.bus, w.Detach, d.Drag, logger)
	w.reattach = reattach.NewReattacher(windowID, w.store, d.Host, w.closeSelf, logger).WithTimeout(d.HostTimeout)
	w.dropSub = w.bus.On(events.KindDrop, w.handleDrop)
	return w
}

// ID returns the window label.
func (w *Workspace) ID() id.WindowID { return w.id }

// Role returns whether this is the main window.
func (w *Workspace) Role() Role { return w.role }

// Store returns the window's tabs.
func (w *Workspace) Store() *tabs.Store { return w.store }

// Bus returns the window's event bus.
func (w *Workspace) Bus() *events.Bus { return w.bus }

// Drag returns the tab bar gesture tracker.
func (w *Workspace) Drag() *drag.Coordinator { return w.drag }

// Windows returns the lifecycle manager for windows this one spawned.
func (w *Workspace) Windows() *window.Manager { return w.windows }

// OpenTab adds a tab built from info, or activates it if present.
func (w *Workspace) OpenTab(info tabs.Info) (bool, error) {
	if err := info.Validate(); err != nil {
		return false, err
	}
	return w.store.Add(info.Materialize(w.factory)), nil
}

// CloseTab removes a tab. The home tab cannot be closed. A detached window
// closes itself once its last tab is gone.
func (w *Workspace) CloseTab(ctx context.Context, tabID string) (bool, error) {
	if tabID == tabs.HomeID {
		return false, tabs.ErrPinnedTab
	}
	if !w.store.Remove(tabID) {
		return false, nil
	}
	return true, w.closeIfEmpty(ctx)
}

// Detach moves a tab into a new window positioned at pos.
func (w *Workspace) Detach(ctx context.Context, tabID string, pos tabs.Position) error {
	if w.role == RoleDetached && w.store.Len() == 1 {
		w.recorder.RecordDetach("rejected")
		return ErrLastTab
	}
	if err := w.store.Detach(ctx, tabID, pos, w.windows.OpenWindowFunc()); err != nil {
		w.recorder.RecordDetach("failure")
		return err
	}
	w.recorder.RecordDetach("success")
	return nil
}

// Release ends a tab bar gesture and closes a detached window that gave away
// its last tab.
func (w *Workspace) Release(ctx context.Context, rel drag.Release) (drag.Result, error) {
	res, err := w.drag.PointerUp(ctx, rel)
	if err != nil {
		return res, err
	}
	if res.Outcome == drag.OutcomeCrossWindowDropped {
		w.recorder.RecordDrop("sent")
		return res, w.closeIfEmpty(ctx)
	}
	return res, nil
}

// Reattach sends this detached window's active tab back to the main window.
// The window closes itself once it holds no other tab.
func (w *Workspace) Reattach(ctx context.Context) (tabs.Info, error) {
	info, err := w.reattach.Reattach(ctx)
	switch {
	case errors.Is(err, reattach.ErrNotDetached), errors.Is(err, reattach.ErrNoTab):
		w.recorder.RecordReattach("rejected")
	case err != nil:
		w.recorder.RecordReattach("failure")
	default:
		w.recorder.RecordReattach("success")
	}
	return info, err
}

// Close detaches the listeners and stops the bus.
func (w *Workspace) Close() {
	if w.dropSub != nil {
		w.dropSub.Unsubscribe()
	}
	if w.listener != nil {
		w.listener.Detach()
	}
	w.bus.Close()
}

// handleDrop adopts a tab released over this window's bar by another window.
func (w *Workspace) handleDrop(env events.Envelope) error {
	drop, ok := env.Event.(events.Drop)
	if !ok {
		return fmt.Errorf("unexpected event %T for %s", env.Event, events.KindDrop)
	}
	if env.Origin == w.id || (drop.Target != "" && drop.Target != w.id) {
		return nil
	}

	info := drop.Tab
	if err := info.Validate(); err != nil {
		w.recorder.RecordDrop("rejected")
		return fmt.Errorf("invalid drop payload: %w", err)
	}
	if !w.filter.Accept(info) {
		w.recorder.RecordDrop("stale")
		return nil
	}

	w.store.Add(info.Materialize(w.factory))
	w.windows.Forget(info.ID)
	w.recorder.RecordDrop("received")
	w.logger.Info("Tab received by drop",
		zap.String("tab", info.ID),
		zap.String("from", env.Origin.String()),
	)
	return nil
}

func (w *Workspace) closeIfEmpty(ctx context.Context) error {
	if w.role != RoleDetached || w.store.Len() > 0 {
		return nil
	}
	return w.closeSelf(ctx)
}

func (w *Workspace) closeSelf(ctx context.Context) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	if err := w.host.CloseWindow(ctx, w.id); err != nil {
		return fmt.Errorf("close window %s: %w", w.id, err)
	}
	w.logger.Info("Window closed itself")
	return nil
}
