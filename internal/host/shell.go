package host

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anafis/workspace/internal/domain/events"
	"github.com/anafis/workspace/internal/domain/tabs"
	"github.com/anafis/workspace/internal/domain/window"
	"github.com/anafis/workspace/internal/infrastructure/resilience"
	"github.com/anafis/workspace/internal/shared/id"
)

var (
	ErrMainNotConnected = errors.New("main window is not connected")
	ErrInvalidLabel     = errors.New("window label is required")
)

// ShellRecorder observes window lifecycle. monitoring.Metrics implements it.
type ShellRecorder interface {
	SetWindowsOpen(n int)
	RecordWindowCreated(outcome string)
}

type nopShellRecorder struct{}

func (nopShellRecorder) SetWindowsOpen(int)         {}
func (nopShellRecorder) RecordWindowCreated(string) {}

// WindowInfo describes a window known to the shell.
type WindowInfo struct {
	ID        id.WindowID   `json:"id"`
	TabID     string        `json:"tab_id,omitempty"`
	Position  tabs.Position `json:"position"`
	Connected bool          `json:"connected"`
	CreatedAt time.Time     `json:"created_at,omitempty"`
}

// Shell is the host runtime: it launches and closes window processes and
// routes messages between them. It implements window.Host for in-process
// use and hands out a reattach.Sender per window; window processes reach it
// over HTTP.
type Shell struct {
	hub      *Hub
	launcher Launcher
	breaker  *resilience.Breaker
	registry *window.Registry
	logger   *zap.Logger
	recorder ShellRecorder

	mu        sync.Mutex
	processes map[id.WindowID]Process  // Protected by mu
	closing   map[id.WindowID]struct{} // Closed labels whose old socket is still up. Protected by mu
}

// ShellOption configures a Shell.
type ShellOption func(*Shell)

// WithBreaker guards launches with b.
func WithBreaker(b *resilience.Breaker) ShellOption {
	return func(s *Shell) { s.breaker = b }
}

// WithShellLogger sets the shell logger.
func WithShellLogger(logger *zap.Logger) ShellOption {
	return func(s *Shell) { s.logger = logger }
}

// WithShellRecorder sets the lifecycle recorder.
func WithShellRecorder(r ShellRecorder) ShellOption {
	return func(s *Shell) { s.recorder = r }
}

// NewShell creates a shell routing through hub and starting windows with
// launcher.
func NewShell(hub *Hub, launcher Launcher, opts ...ShellOption) *Shell {
	s := &Shell{
		hub:       hub,
		launcher:  launcher,
		registry:  window.NewRegistry(),
		logger:    zap.NewNop(),
		recorder:  nopShellRecorder{},
		processes: make(map[id.WindowID]Process),
		closing:   make(map[id.WindowID]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = resilience.New("window-launch", resilience.Settings{})
	}
	hub.OnConnect(s.handleConnect)
	hub.OnDisconnect(s.handleDisconnect)
	return s
}

// Hub returns the IPC hub.
func (s *Shell) Hub() *Hub {
	return s.hub
}

// CreateWindow launches a window for spec. A window already known under the
// same label is focused instead, so a tab never gets two windows.
func (s *Shell) CreateWindow(ctx context.Context, spec window.Spec) (id.WindowID, error) {
	if spec.Label == "" {
		return "", ErrInvalidLabel
	}
	if s.known(spec.Label) {
		if err := s.hub.SendTo(spec.Label, Frame{Type: FrameFocus, Window: spec.Label}); err != nil && !errors.Is(err, ErrNotConnected) {
			return "", err
		}
		s.recorder.RecordWindowCreated("focused")
		s.logger.Info("Window exists, focusing", zap.String("window_id", spec.Label.String()))
		return spec.Label, nil
	}

	var proc Process
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		proc, err = s.launcher.Launch(ctx, spec)
		return err
	})
	if err != nil {
		outcome := "failure"
		if errors.Is(err, resilience.ErrCircuitOpen) {
			outcome = "rejected"
		}
		s.recorder.RecordWindowCreated(outcome)
		s.logger.Warn("Failed to create window", zap.String("window_id", spec.Label.String()), zap.Error(err))
		return "", fmt.Errorf("create window %s: %w", spec.Label, err)
	}

	tabID, _ := spec.Label.TabID()
	s.registry.Register(window.Handle{
		WindowID:   spec.Label,
		OwnedTabID: tabID,
		Position:   tabs.Position{X: spec.Geometry.X, Y: spec.Geometry.Y},
		CreatedAt:  time.Now(),
	})
	s.mu.Lock()
	s.processes[spec.Label] = proc
	s.mu.Unlock()

	s.recorder.RecordWindowCreated("success")
	s.recorder.SetWindowsOpen(s.registry.Len())
	s.logger.Info("Window created",
		zap.String("window_id", spec.Label.String()),
		zap.String("process_id", string(proc.ID())),
		zap.String("url", spec.URL),
	)
	return spec.Label, nil
}

// CloseWindow tells a window to close and stops its process.
func (s *Shell) CloseWindow(_ context.Context, w id.WindowID) error {
	if !s.known(w) {
		return fmt.Errorf("%w: %s", window.ErrWindowNotFound, w)
	}

	if err := s.hub.SendTo(w, Frame{Type: FrameClose, Window: w}); err != nil && !errors.Is(err, ErrNotConnected) {
		s.logger.Warn("Failed to send close frame", zap.String("window_id", w.String()), zap.Error(err))
	}
	if s.hub.Connected(w) {
		s.mu.Lock()
		s.closing[w] = struct{}{}
		s.mu.Unlock()
	}
	s.forget(w)
	s.logger.Info("Window closed", zap.String("window_id", w.String()))
	return nil
}

// WindowSender forwards reattach requests on behalf of one window. It
// implements reattach.Sender for windows living in the shell's process.
type WindowSender struct {
	shell  *Shell
	window id.WindowID
}

// SenderFor returns a sender that reattaches tabs from window w. A tab may
// sit in a window other than its own detached one after a drop, so the
// caller names the window.
func (s *Shell) SenderFor(w id.WindowID) WindowSender {
	return WindowSender{shell: s, window: w}
}

// SendTabToMain delivers a reattach request from the sender's window.
func (ws WindowSender) SendTabToMain(ctx context.Context, info tabs.Info) error {
	return ws.shell.Reattach(ctx, ws.window, info)
}

// Reattach forwards a tab from window from to the main window. The sender
// closes itself once this succeeds.
func (s *Shell) Reattach(_ context.Context, from id.WindowID, info tabs.Info) error {
	if err := info.Validate(); err != nil {
		return err
	}
	if info.ID == tabs.HomeID {
		return tabs.ErrPinnedTab
	}
	if from.IsMain() {
		return fmt.Errorf("reattach from %s: not a detached window", from)
	}

	f, err := EventFrame(events.Envelope{
		ID:     uuid.NewString(),
		Origin: from,
		SentAt: time.Now(),
		Event:  events.ReattachRequest{Tab: info},
	})
	if err != nil {
		return err
	}
	if err := s.hub.SendTo(id.MainWindow, f); err != nil {
		if errors.Is(err, ErrNotConnected) {
			return ErrMainNotConnected
		}
		return err
	}

	s.logger.Info("Tab forwarded to main window",
		zap.String("tab", info.ID),
		zap.String("from", from.String()),
		zap.Uint64("version", info.Version),
	)
	return nil
}

// Windows lists launched and connected windows, oldest first.
func (s *Shell) Windows() []WindowInfo {
	seen := make(map[id.WindowID]bool)
	var out []WindowInfo

	for _, h := range s.registry.List() {
		seen[h.WindowID] = true
		out = append(out, WindowInfo{
			ID:        h.WindowID,
			TabID:     h.OwnedTabID,
			Position:  h.Position,
			Connected: s.hub.Connected(h.WindowID),
			CreatedAt: h.CreatedAt,
		})
	}

	var extra []WindowInfo
	for _, w := range s.hub.Windows() {
		if seen[w] {
			continue
		}
		tabID, _ := w.TabID()
		extra = append(extra, WindowInfo{ID: w, TabID: tabID, Connected: true})
	}
	sort.SliceStable(extra, func(i, j int) bool { return extra[i].ID.IsMain() && !extra[j].ID.IsMain() })
	return append(extra, out...)
}

// Close stops every launched window.
func (s *Shell) Close() {
	for _, h := range s.registry.List() {
		s.forget(h.WindowID)
	}
	s.hub.Close()
}

func (s *Shell) known(w id.WindowID) bool {
	if _, ok := s.registry.Get(w); ok {
		return true
	}
	s.mu.Lock()
	_, closing := s.closing[w]
	s.mu.Unlock()
	return !closing && s.hub.Connected(w)
}

func (s *Shell) forget(w id.WindowID) {
	s.mu.Lock()
	proc, ok := s.processes[w]
	delete(s.processes, w)
	s.mu.Unlock()

	if ok {
		if err := proc.Stop(); err != nil {
			s.logger.Warn("Failed to stop window process", zap.String("window_id", w.String()), zap.Error(err))
		}
	}
	s.registry.Unregister(w)
	s.recorder.SetWindowsOpen(s.registry.Len())
}

// handleConnect clears the closing mark of a label whose old socket was
// replaced by a relaunched window.
func (s *Shell) handleConnect(w id.WindowID) {
	s.mu.Lock()
	delete(s.closing, w)
	s.mu.Unlock()
}

// handleDisconnect closes every detached window when the main window goes
// away, and forgets a detached window whose socket closed. The socket of a
// window that was already closed leaves any relaunch under its label alone.
func (s *Shell) handleDisconnect(w id.WindowID) {
	s.mu.Lock()
	_, closing := s.closing[w]
	delete(s.closing, w)
	s.mu.Unlock()
	if closing {
		return
	}

	if !w.IsMain() {
		s.forget(w)
		return
	}

	s.logger.Info("Main window disconnected, closing detached windows")
	for _, info := range s.Windows() {
		if info.ID.IsMain() {
			s.forget(info.ID)
			continue
		}
		if err := s.CloseWindow(context.Background(), info.ID); err != nil {
			s.logger.Warn("Failed to close detached window", zap.String("window_id", info.ID.String()), zap.Error(err))
		}
	}
}
