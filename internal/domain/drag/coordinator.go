package drag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/anafis/workspace/internal/domain/events"
	"github.com/anafis/workspace/internal/domain/tabs"
	"github.com/anafis/workspace/internal/shared/id"
)

var ErrNoSession = errors.New("no drag in progress")

// Phase is the state of the gesture tracker.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseArmed
	PhaseDragging
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseArmed:
		return "armed"
	case PhaseDragging:
		return "dragging"
	default:
		return "unknown"
	}
}

// Outcome is how a gesture ended.
type Outcome int

const (
	OutcomeCancelled Outcome = iota
	OutcomeClicked
	OutcomeReordered
	OutcomeDetached
	OutcomeCrossWindowDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeClicked:
		return "clicked"
	case OutcomeReordered:
		return "reordered"
	case OutcomeDetached:
		return "detached"
	case OutcomeCrossWindowDropped:
		return "cross_window_dropped"
	default:
		return "unknown"
	}
}

// Point is a pointer position in screen pixels.
type Point struct {
	X int
	Y int
}

// TargetKind classifies what lies under the pointer on release.
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetTab
	TargetForeignBar
)

// Target is the drop target resolved by the window's hit testing.
type Target struct {
	Kind TargetKind
	// TabID is the tab under the pointer for TargetTab.
	TabID string
	// Window is the receiving window for TargetForeignBar.
	Window id.WindowID
}

// Release describes the pointer-up event. HasPoint is false when the
// platform did not report coordinates.
type Release struct {
	Point    Point
	HasPoint bool
	Target   Target
}

// Session is the transient state between pointer-down and pointer-up.
type Session struct {
	ActiveTabID    string
	SourceWindowID id.WindowID
	Origin         Point
	Pointer        Point
	// Located is set once Pointer came from a move or a release.
	Located bool
}

// Result reports what a finished gesture did.
type Result struct {
	Outcome     Outcome
	TabID       string
	Position    tabs.Position
	SourceIndex int
	TargetIndex int
	Target      id.WindowID
}

// TabStore is the part of the window's store the coordinator drives.
type TabStore interface {
	Get(id string) (tabs.Tab, bool)
	MovableIndexOf(id string) int
	Reorder(source, target int) error
	Remove(id string) bool
	SetActive(id string)
}

// Emitter publishes cross-window events.
type Emitter interface {
	Emit(events.Event) events.Envelope
}

// DetachFunc detaches a tab into a new window at pos.
type DetachFunc func(ctx context.Context, tabID string, pos tabs.Position) error

// Config holds gesture thresholds in pixels.
type Config struct {
	// MinDistance separates a click from a drag.
	MinDistance float64
	// DetachThreshold is the vertical displacement that forces a detach even
	// over a same-window target. Zero disables the override.
	DetachThreshold float64
	// Fallback is the spawn position when no pointer position is known.
	Fallback tabs.Position
}

// DefaultConfig returns the desktop application's thresholds.
func DefaultConfig() Config {
	return Config{
		MinDistance:     8,
		DetachThreshold: 80,
		Fallback:        tabs.DefaultPosition,
	}
}

// Coordinator turns pointer gestures on one window's tab bar into reorder,
// detach and cross-window drop decisions. Gestures are tracked synchronously
// on the window's input path; only a detach waits on the host.
type Coordinator struct {
	window id.WindowID
	store  TabStore
	bus    Emitter
	detach DetachFunc
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	phase   Phase    // Protected by mu
	session *Session // Protected by mu
}

// New creates a coordinator for one window.
func New(window id.WindowID, store TabStore, bus Emitter, detach DetachFunc, cfg Config, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		window: window,
		store:  store,
		bus:    bus,
		detach: detach,
		cfg:    cfg,
		logger: logger,
	}
}

// Phase returns the current gesture phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Session returns a copy of the current session, if any.
func (c *Coordinator) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// PointerDown arms a gesture on a tab. The home tab and unknown tabs are
// not draggable; any gesture already in progress is replaced.
func (c *Coordinator) PointerDown(tabID string, p Point) bool {
	tab, ok := c.store.Get(tabID)
	if !ok || tab.Pinned() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.phase = PhaseArmed
	c.session = &Session{
		ActiveTabID:    tabID,
		SourceWindowID: c.window,
		Origin:         p,
		Pointer:        p,
	}
	return true
}

// PointerMove tracks the pointer and starts dragging once it travelled at
// least MinDistance from where it was pressed.
func (c *Coordinator) PointerMove(p Point) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return
	}
	c.session.Pointer = p
	c.session.Located = true

	if c.phase != PhaseArmed || distance(c.session.Origin, p) < c.cfg.MinDistance {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseDragging
	tabID := c.session.ActiveTabID
	c.mu.Unlock()

	tab, ok := c.store.Get(tabID)
	if !ok {
		return
	}
	c.bus.Emit(events.DragStart{Tab: tab.Info()})
	c.logger.Debug("Tab drag started", zap.String("tab", tabID))
}

// Cancel abandons the current gesture.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	c.reset()
	c.mu.Unlock()
}

// PointerUp ends the gesture and applies its outcome.
func (c *Coordinator) PointerUp(ctx context.Context, rel Release) (Result, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return Result{}, ErrNoSession
	}
	s := *c.session
	phase := c.phase
	if rel.HasPoint {
		s.Pointer = rel.Point
		s.Located = true
	}
	c.reset()
	c.mu.Unlock()

	res := Result{TabID: s.ActiveTabID, SourceIndex: -1, TargetIndex: -1}

	if phase == PhaseArmed {
		c.store.SetActive(s.ActiveTabID)
		res.Outcome = OutcomeClicked
		return res, nil
	}

	dy := math.Abs(float64(s.Pointer.Y - s.Origin.Y))
	if c.cfg.DetachThreshold > 0 && dy > c.cfg.DetachThreshold && rel.Target.Kind != TargetForeignBar {
		return c.detachAt(ctx, res, s)
	}

	switch rel.Target.Kind {
	case TargetNone:
		return c.detachAt(ctx, res, s)

	case TargetTab:
		if rel.Target.TabID == s.ActiveTabID {
			res.Outcome = OutcomeCancelled
			return res, nil
		}
		return c.reorder(res, rel.Target.TabID)

	case TargetForeignBar:
		if rel.Target.Window == c.window {
			res.Outcome = OutcomeCancelled
			return res, nil
		}
		return c.dropOnto(res, rel.Target.Window)
	}

	res.Outcome = OutcomeCancelled
	return res, nil
}

// detachAt spawns the tab where the pointer was last seen.
func (c *Coordinator) detachAt(ctx context.Context, res Result, s Session) (Result, error) {
	pos := c.cfg.Fallback
	if s.Located {
		pos = tabs.Position{X: s.Pointer.X, Y: s.Pointer.Y}
	}
	res.Position = pos

	if err := c.detach(ctx, s.ActiveTabID, pos); err != nil {
		res.Outcome = OutcomeCancelled
		return res, fmt.Errorf("detach by drag: %w", err)
	}
	res.Outcome = OutcomeDetached
	return res, nil
}

func (c *Coordinator) reorder(res Result, targetTabID string) (Result, error) {
	res.SourceIndex = c.store.MovableIndexOf(res.TabID)
	res.TargetIndex = c.store.MovableIndexOf(targetTabID)
	if res.SourceIndex < 0 || res.TargetIndex < 0 {
		// Dropped onto home or onto a tab that vanished meanwhile.
		res.Outcome = OutcomeCancelled
		return res, nil
	}

	if err := c.store.Reorder(res.SourceIndex, res.TargetIndex); err != nil {
		res.Outcome = OutcomeCancelled
		return res, err
	}
	res.Outcome = OutcomeReordered
	return res, nil
}

// dropOnto hands the tab to another window. The receiver adds it from the
// event; this window removes it independently, so the two steps are not
// atomic.
func (c *Coordinator) dropOnto(res Result, target id.WindowID) (Result, error) {
	tab, ok := c.store.Get(res.TabID)
	if !ok {
		res.Outcome = OutcomeCancelled
		return res, fmt.Errorf("%w: %s", tabs.ErrTabNotFound, res.TabID)
	}

	c.bus.Emit(events.Drop{Tab: tab.Info().Transferred(), Target: target})
	c.store.Remove(res.TabID)

	res.Outcome = OutcomeCrossWindowDropped
	res.Target = target
	c.logger.Info("Tab dropped onto another window",
		zap.String("tab", res.TabID),
		zap.String("target", target.String()),
	)
	return res, nil
}

// reset must be called with mu held.
func (c *Coordinator) reset() {
	c.phase = PhaseIdle
	c.session = nil
}

func distance(a, b Point) float64 {
	return math.Hypot(float64(b.X-a.X), float64(b.Y-a.Y))
}
