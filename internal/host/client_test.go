package host

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anafis/workspace/internal/domain/events"
	"github.com/anafis/workspace/internal/domain/tabs"
	"github.com/anafis/workspace/internal/infrastructure/tracing"
	"github.com/anafis/workspace/internal/shared/id"
)

func TestSocketURL(t *testing.T) {
	tests := []struct {
		shell string
		want  string
	}{
		{"http://127.0.0.1:8420", "ws://127.0.0.1:8420/ipc?window=tab_a"},
		{"http://127.0.0.1:8420/", "ws://127.0.0.1:8420/ipc?window=tab_a"},
		{"https://shell.local/base", "wss://shell.local/base/ipc?window=tab_a"},
	}
	for _, tt := range tests {
		c := NewClient(tt.shell, id.DetachedWindow("a"), time.Second, nil)
		got, err := c.socketURL()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestPublishBeforeConnect(t *testing.T) {
	c := NewClient("http://127.0.0.1:8420", id.MainWindow, time.Second, nil)
	err := c.Publish(dragStart(id.MainWindow, "a"))
	assert.ErrorIs(t, err, ErrNotDialed)
	assert.NoError(t, c.Close())
}

func TestClientOverHub(t *testing.T) {
	hub, srv := newHubServer(t)

	mainBus := events.NewBus(id.MainWindow)
	defer mainBus.Close()
	got := make(chan events.Envelope, 1)
	mainBus.On(events.KindDragStart, func(env events.Envelope) error {
		got <- env
		return nil
	})

	main := NewClient(srv.URL, id.MainWindow, time.Second, nil)
	require.NoError(t, main.Connect(context.Background(), mainBus, Handlers{}))
	defer main.Close()
	require.Eventually(t, func() bool { return hub.Connected(id.MainWindow) }, time.Second, 5*time.Millisecond)

	peer := dial(t, srv, id.DetachedWindow("a"))
	readFrame(t, peer)
	writeEvent(t, peer, dragStart(id.DetachedWindow("a"), "fitting-2"))

	select {
	case env := <-got:
		assert.Equal(t, id.DetachedWindow("a"), env.Origin)
		assert.Equal(t, "fitting-2", env.TabInfo().ID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered to the bus")
	}

	require.NoError(t, main.Publish(dragStart(id.MainWindow, "solver-1")))
	f := readFrame(t, peer)
	env, err := f.Envelope()
	require.NoError(t, err)
	assert.Equal(t, "solver-1", env.TabInfo().ID)

	require.NoError(t, main.Close())
	select {
	case <-main.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not stop")
	}
}

func TestClientCommandHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"window_id":"main"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, id.DetachedWindow("a"), time.Second, nil)
	ctx := tracing.WithTrace(context.Background(), "trace-1", "span-1")
	info := tabs.Info{ID: "a", Title: "A", ContentType: tabs.ContentSolver}
	require.NoError(t, c.SendTabToMain(ctx, info))

	got := <-headers
	assert.Equal(t, "tab_a", got.Get(WindowHeader))
	assert.Equal(t, "trace-1", got.Get(tracing.TraceHeader))
	assert.Equal(t, "span-1", got.Get(tracing.SpanHeader))
}

func TestClientShellError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"success":false,"error":"main window is not connected"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, id.DetachedWindow("a"), time.Second, nil)
	err := c.SendTabToMain(context.Background(), tabs.Info{ID: "a", ContentType: tabs.ContentSolver})

	var shellErr *ShellError
	require.ErrorAs(t, err, &shellErr)
	assert.Equal(t, http.StatusServiceUnavailable, shellErr.Status)
	assert.Equal(t, "main window is not connected", shellErr.Message)
}
