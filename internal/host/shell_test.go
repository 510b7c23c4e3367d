package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anafis/workspace/internal/domain/tabs"
	"github.com/anafis/workspace/internal/domain/window"
	"github.com/anafis/workspace/internal/infrastructure/resilience"
	"github.com/anafis/workspace/internal/shared/id"
)

type shellRecorder struct {
	open    int
	created map[string]int
}

func (r *shellRecorder) SetWindowsOpen(n int) { r.open = n }
func (r *shellRecorder) RecordWindowCreated(outcome string) {
	if r.created == nil {
		r.created = make(map[string]int)
	}
	r.created[outcome]++
}

func detachedSpec(tabID string) window.Spec {
	m := window.NewManager(nil, window.NewRegistry(), window.DefaultSizes(), nil)
	return m.SpecFor(tabs.Info{ID: tabID, Title: tabID, ContentType: tabs.ContentFitting, Version: 1}, tabs.Position{X: 40, Y: 60})
}

func newTestShell(t *testing.T, opts ...ShellOption) (*Shell, *NopLauncher) {
	t.Helper()
	launcher := &NopLauncher{}
	s := NewShell(NewHub(nil, nil), launcher, opts...)
	t.Cleanup(s.Close)
	return s, launcher
}

func TestCreateWindow(t *testing.T) {
	rec := &shellRecorder{}
	s, launcher := newTestShell(t, WithShellRecorder(rec))

	w, err := s.CreateWindow(context.Background(), detachedSpec("fitting-2"))
	require.NoError(t, err)
	assert.Equal(t, id.DetachedWindow("fitting-2"), w)
	require.Len(t, launcher.Launched(), 1)
	assert.Contains(t, launcher.Launched()[0].URL, "tabId=fitting-2")

	windows := s.Windows()
	require.Len(t, windows, 1)
	assert.Equal(t, "fitting-2", windows[0].TabID)
	assert.Equal(t, tabs.Position{X: 40, Y: 60}, windows[0].Position)
	assert.False(t, windows[0].Connected)
	assert.Equal(t, 1, rec.open)
	assert.Equal(t, 1, rec.created["success"])
}

func TestCreateWindowFocusesExistingLabel(t *testing.T) {
	rec := &shellRecorder{}
	s, launcher := newTestShell(t, WithShellRecorder(rec))

	for i := 0; i < 3; i++ {
		_, err := s.CreateWindow(context.Background(), detachedSpec("a"))
		require.NoError(t, err)
	}
	assert.Len(t, launcher.Launched(), 1)
	assert.Len(t, s.Windows(), 1)
	assert.Equal(t, 2, rec.created["focused"])
}

func TestCreateWindowRequiresLabel(t *testing.T) {
	s, _ := newTestShell(t)
	_, err := s.CreateWindow(context.Background(), window.Spec{URL: "tab.html"})
	assert.ErrorIs(t, err, ErrInvalidLabel)
}

func TestLaunchFailuresTripBreaker(t *testing.T) {
	rec := &shellRecorder{}
	breaker := resilience.New("window-launch", resilience.Settings{Threshold: 2, Cooldown: time.Hour})
	s, launcher := newTestShell(t, WithBreaker(breaker), WithShellRecorder(rec))
	launchErr := errors.New("no such binary")
	launcher.Fail(launchErr)

	for _, tabID := range []string{"a", "b"} {
		_, err := s.CreateWindow(context.Background(), detachedSpec(tabID))
		assert.ErrorIs(t, err, launchErr)
	}
	_, err := s.CreateWindow(context.Background(), detachedSpec("c"))
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)

	assert.Empty(t, s.Windows())
	assert.Equal(t, 2, rec.created["failure"])
	assert.Equal(t, 1, rec.created["rejected"])
}

func TestCloseWindow(t *testing.T) {
	s, _ := newTestShell(t)
	w, err := s.CreateWindow(context.Background(), detachedSpec("a"))
	require.NoError(t, err)

	require.NoError(t, s.CloseWindow(context.Background(), w))
	assert.Empty(t, s.Windows())

	err = s.CloseWindow(context.Background(), w)
	assert.ErrorIs(t, err, window.ErrWindowNotFound)
}

func TestReattachNeedsMainWindow(t *testing.T) {
	s, _ := newTestShell(t)
	info := tabs.Info{ID: "a", Title: "A", ContentType: tabs.ContentSolver, Version: 2}

	assert.ErrorIs(t, s.SenderFor(id.DetachedWindow("a")).SendTabToMain(context.Background(), info), ErrMainNotConnected)
	assert.ErrorIs(t, s.Reattach(context.Background(), id.DetachedWindow("a"), tabs.Info{ID: "a"}), tabs.ErrUnknownContentType)
	assert.ErrorIs(t, s.Reattach(context.Background(), id.DetachedWindow("a"), tabs.Info{ID: tabs.HomeID, ContentType: tabs.ContentHome}), tabs.ErrPinnedTab)
	assert.Error(t, s.Reattach(context.Background(), id.MainWindow, info))
}

func TestMainDisconnectClosesDetachedWindows(t *testing.T) {
	s, _ := newTestShell(t)
	for _, tabID := range []string{"a", "b"} {
		_, err := s.CreateWindow(context.Background(), detachedSpec(tabID))
		require.NoError(t, err)
	}

	s.handleDisconnect(id.DetachedWindow("a"))
	assert.Len(t, s.Windows(), 1)

	s.handleDisconnect(id.MainWindow)
	assert.Empty(t, s.Windows())
}

func TestCreateWindowRelaunchesClosingLabel(t *testing.T) {
	hub, srv := newHubServer(t)
	launcher := &NopLauncher{}
	s := NewShell(hub, launcher)

	gone := make(chan id.WindowID, 1)
	hub.OnDisconnect(func(w id.WindowID) { gone <- w })

	w, err := s.CreateWindow(context.Background(), detachedSpec("a"))
	require.NoError(t, err)
	old := dial(t, srv, w)
	readFrame(t, old)
	require.Eventually(t, func() bool { return hub.Connected(w) }, time.Second, 5*time.Millisecond)

	// The old socket stays up until its window reacts to the close frame.
	require.NoError(t, s.CloseWindow(context.Background(), w))
	assert.Equal(t, FrameClose, readFrame(t, old).Type)
	assert.True(t, hub.Connected(w))

	_, err = s.CreateWindow(context.Background(), detachedSpec("a"))
	require.NoError(t, err)
	assert.Len(t, launcher.Launched(), 2)

	old.Close()
	select {
	case got := <-gone:
		assert.Equal(t, w, got)
	case <-time.After(2 * time.Second):
		t.Fatal("old socket never disconnected")
	}
	windows := s.Windows()
	require.Len(t, windows, 1)
	assert.Equal(t, w, windows[0].ID)
}

func TestSenderForUsesCallingWindow(t *testing.T) {
	hub, srv := newHubServer(t)
	s := NewShell(hub, &NopLauncher{})

	mainWS := dial(t, srv, id.MainWindow)
	readFrame(t, mainWS)
	require.Eventually(t, func() bool { return hub.Connected(id.MainWindow) }, time.Second, 5*time.Millisecond)

	// solver-1 was dropped into fitting-2's window and is reattached from there.
	info := tabs.Info{ID: "solver-1", Title: "Solver", ContentType: tabs.ContentSolver, Version: 3}
	from := id.DetachedWindow("fitting-2")
	require.NoError(t, s.SenderFor(from).SendTabToMain(context.Background(), info))

	f := readFrame(t, mainWS)
	require.Equal(t, FrameEvent, f.Type)
	env, err := f.Envelope()
	require.NoError(t, err)
	assert.Equal(t, from, env.Origin)
	assert.Equal(t, "solver-1", env.TabInfo().ID)
}

func TestExecLauncherArgs(t *testing.T) {
	l := NewExecLauncher("workspace-window", []string{"--dev"}, "http://127.0.0.1:8420", nil)
	args := l.Args(detachedSpec("fitting-2"))

	assert.Equal(t, "--dev", args[0])
	assert.Contains(t, args, "tab_fitting-2")
	assert.Contains(t, args, "--always-on-top=true")
	assert.Contains(t, args, "800")
}

func TestExecLauncherMissingBinary(t *testing.T) {
	l := NewExecLauncher("/nonexistent/workspace-window", nil, "http://127.0.0.1:8420", nil)
	_, err := l.Launch(context.Background(), detachedSpec("a"))
	assert.Error(t, err)
}
