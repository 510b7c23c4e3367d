package window

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/anafis/workspace/internal/domain/tabs"
	"github.com/anafis/workspace/internal/shared/id"
)

var ErrWindowNotFound = errors.New("window not found")

// Geometry is a window rectangle in physical pixels.
type Geometry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Spec is what the host runtime needs to open a top-level window.
type Spec struct {
	Label       id.WindowID `json:"label" binding:"required"`
	Title       string      `json:"title"`
	URL         string      `json:"url" binding:"required"`
	Geometry    Geometry    `json:"geometry"`
	MinWidth    int         `json:"min_width,omitempty"`
	MinHeight   int         `json:"min_height,omitempty"`
	Resizable   bool        `json:"resizable"`
	Decorations bool        `json:"decorations"`
	AlwaysOnTop bool        `json:"always_on_top"`
	Parent      id.WindowID `json:"parent,omitempty"`
}

// Host is the host runtime's window surface.
type Host interface {
	CreateWindow(ctx context.Context, spec Spec) (id.WindowID, error)
	CloseWindow(ctx context.Context, window id.WindowID) error
}

// Sizes configures detached window geometry.
type Sizes struct {
	Page        string
	Width       int
	Height      int
	MinWidth    int
	MinHeight   int
	AlwaysOnTop bool
}

// DefaultSizes matches the desktop application's tab windows.
func DefaultSizes() Sizes {
	return Sizes{
		Page:        "tab.html",
		Width:       800,
		Height:      600,
		MinWidth:    600,
		MinHeight:   400,
		AlwaysOnTop: true,
	}
}

// Manager opens and closes top-level windows through the host runtime and
// keeps the registry of detached windows it created.
type Manager struct {
	host     Host
	registry *Registry
	sizes    Sizes
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewManager creates a window manager.
func NewManager(host Host, registry *Registry, sizes Sizes, logger *zap.Logger) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		host:     host,
		registry: registry,
		sizes:    sizes,
		logger:   logger,
		now:      time.Now,
	}
}

// WithTimeout bounds every host call made by the manager.
func (m *Manager) WithTimeout(d time.Duration) *Manager {
	m.timeout = d
	return m
}

// Registry returns the manager's registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// SpecFor builds the window spec for a detached tab. Only the tab identity
// travels, as boot parameters; panel content is rebuilt by the new window.
func (m *Manager) SpecFor(info tabs.Info, pos tabs.Position) Spec {
	boot := BootParams{Detached: true, Tab: info}
	return Spec{
		Label: id.DetachedWindow(info.ID),
		Title: info.Title,
		URL:   boot.URL(m.sizes.Page),
		Geometry: Geometry{
			X:      pos.X,
			Y:      pos.Y,
			Width:  m.sizes.Width,
			Height: m.sizes.Height,
		},
		MinWidth:    m.sizes.MinWidth,
		MinHeight:   m.sizes.MinHeight,
		Resizable:   true,
		Decorations: false,
		AlwaysOnTop: m.sizes.AlwaysOnTop,
	}
}

// CreateDetachedWindow asks the host for a window owning the tab, positioned
// at pos, and registers it.
func (m *Manager) CreateDetachedWindow(ctx context.Context, info tabs.Info, pos tabs.Position) (Handle, error) {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	spec := m.SpecFor(info, pos)
	windowID, err := m.host.CreateWindow(ctx, spec)
	if err != nil {
		return Handle{}, fmt.Errorf("failed to create window for tab %s: %w", info.ID, err)
	}

	h := Handle{
		WindowID:   windowID,
		OwnedTabID: info.ID,
		Position:   pos,
		CreatedAt:  m.now(),
	}
	m.registry.Register(h)

	m.logger.Info("Detached window created",
		zap.String("window_id", windowID.String()),
		zap.String("tab", info.ID),
		zap.Int("x", pos.X),
		zap.Int("y", pos.Y),
	)
	return h, nil
}

// OpenWindowFunc adapts the manager to the store's detach saga.
func (m *Manager) OpenWindowFunc() tabs.OpenWindowFunc {
	return func(ctx context.Context, info tabs.Info, pos tabs.Position) error {
		_, err := m.CreateDetachedWindow(ctx, info, pos)
		return err
	}
}

// CloseWindow asks the host to close a window and forgets it.
func (m *Manager) CloseWindow(ctx context.Context, window id.WindowID) error {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	if err := m.host.CloseWindow(ctx, window); err != nil {
		return fmt.Errorf("failed to close window %s: %w", window, err)
	}
	m.registry.Unregister(window)
	m.logger.Info("Window closed", zap.String("window_id", window.String()))
	return nil
}

// Forget drops the registry entry of the window owning a tab, once the tab
// is back in this window. The window itself closes on its own.
func (m *Manager) Forget(tabID string) bool {
	h, ok := m.registry.ByTab(tabID)
	if !ok {
		return false
	}
	return m.registry.Unregister(h.WindowID)
}

func (m *Manager) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}
