package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anafis/workspace/internal/domain/events"
	"github.com/anafis/workspace/internal/domain/tabs"
	"github.com/anafis/workspace/internal/domain/window"
	"github.com/anafis/workspace/internal/host"
	"github.com/anafis/workspace/internal/infrastructure/monitoring"
	"github.com/anafis/workspace/internal/infrastructure/resilience"
	"github.com/anafis/workspace/internal/shared/id"
)

type fixture struct {
	shell    *host.Shell
	launcher *host.NopLauncher
	server   *httptest.Server
	router   *gin.Engine
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	launcher := &host.NopLauncher{}
	shell := host.NewShell(host.NewHub(nil, nil), launcher,
		host.WithBreaker(resilience.New("window-launch", resilience.Settings{Threshold: 1, Cooldown: time.Hour})),
	)
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())

	router := gin.New()
	RegisterRoutes(router, NewHandlers(shell, NewHandlerMetrics(metrics), nil))

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		shell.Close()
		srv.Close()
	})
	return &fixture{shell: shell, launcher: launcher, server: srv, router: router}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) client(w id.WindowID) *host.Client {
	return host.NewClient(f.server.URL, w, 2*time.Second, nil)
}

func specFor(tabID string) window.Spec {
	m := window.NewManager(nil, nil, window.DefaultSizes(), nil)
	return m.SpecFor(tabs.Info{ID: tabID, Title: tabID, ContentType: tabs.ContentFitting, Version: 1}, tabs.DefaultPosition)
}

func TestRootAndHealth(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"online"`)

	w = f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"main_connected":false`)
}

func TestCreateAndCloseWindowThroughClient(t *testing.T) {
	f := setup(t)
	c := f.client(id.MainWindow)
	ctx := context.Background()

	w, err := c.CreateWindow(ctx, specFor("fitting-2"))
	require.NoError(t, err)
	assert.Equal(t, id.DetachedWindow("fitting-2"), w)

	// Same label focuses instead of launching twice.
	_, err = c.CreateWindow(ctx, specFor("fitting-2"))
	require.NoError(t, err)
	assert.Len(t, f.launcher.Launched(), 1)

	list := f.do(http.MethodGet, "/windows", "")
	assert.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), `"count":1`)
	assert.Contains(t, list.Body.String(), `"tab_id":"fitting-2"`)

	require.NoError(t, c.CloseWindow(ctx, w))
	err = c.CloseWindow(ctx, w)
	assert.ErrorIs(t, err, window.ErrWindowNotFound)
}

func TestCreateWindowValidation(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{`},
		{"missing url", `{"label":"tab_a"}`},
		{"bad label", `{"label":"settings","url":"tab.html"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/windows", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"success":false`)
		})
	}
	assert.Empty(t, f.launcher.Launched())
}

func TestCreateWindowBreaker(t *testing.T) {
	f := setup(t)
	f.launcher.Fail(errors.New("display unavailable"))
	c := f.client(id.MainWindow)

	_, err := c.CreateWindow(context.Background(), specFor("a"))
	var shellErr *host.ShellError
	require.ErrorAs(t, err, &shellErr)
	assert.Equal(t, http.StatusBadGateway, shellErr.Status)

	_, err = c.CreateWindow(context.Background(), specFor("b"))
	require.ErrorAs(t, err, &shellErr)
	assert.Equal(t, http.StatusServiceUnavailable, shellErr.Status)
}

func TestReattachWithoutMainWindow(t *testing.T) {
	f := setup(t)
	c := f.client(id.DetachedWindow("a"))

	err := c.SendTabToMain(context.Background(), tabs.Info{ID: "a", Title: "A", ContentType: tabs.ContentSolver, Version: 2})
	var shellErr *host.ShellError
	require.ErrorAs(t, err, &shellErr)
	assert.Equal(t, http.StatusServiceUnavailable, shellErr.Status)
}

func TestReattachValidation(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodPost, "/windows/main/reattach", `{"id":"a","title":"A","content_type":"solver"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/windows/tab_a/reattach", `{"id":"a","content_type":"warp-drive"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/windows/tab_a/reattach", `{"id":"home","content_type":"home"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReattachReachesMainWindow(t *testing.T) {
	f := setup(t)

	bus := events.NewBus(id.MainWindow)
	defer bus.Close()
	got := make(chan events.Envelope, 1)
	bus.On(events.KindReattachRequest, func(env events.Envelope) error {
		got <- env
		return nil
	})

	main := f.client(id.MainWindow)
	require.NoError(t, main.Connect(context.Background(), bus, host.Handlers{}))
	defer main.Close()
	require.Eventually(t, func() bool { return f.shell.Hub().Connected(id.MainWindow) }, time.Second, 5*time.Millisecond)

	detached := f.client(id.DetachedWindow("fitting-2"))
	info := tabs.Info{ID: "fitting-2", Title: "Fitting", ContentType: tabs.ContentFitting, Version: 2}
	require.NoError(t, detached.SendTabToMain(context.Background(), info))

	select {
	case env := <-got:
		assert.Equal(t, id.DetachedWindow("fitting-2"), env.Origin)
		assert.Equal(t, info, env.TabInfo())
	case <-time.After(2 * time.Second):
		t.Fatal("reattach request did not reach the main window")
	}
}

func TestMainDisconnectClosesDetachedWindow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	main := f.client(id.MainWindow)
	mainBus := events.NewBus(id.MainWindow)
	defer mainBus.Close()
	require.NoError(t, main.Connect(ctx, mainBus, host.Handlers{}))

	_, err := main.CreateWindow(ctx, specFor("a"))
	require.NoError(t, err)

	closed := make(chan struct{})
	detached := f.client(id.DetachedWindow("a"))
	detachedBus := events.NewBus(id.DetachedWindow("a"))
	defer detachedBus.Close()
	require.NoError(t, detached.Connect(ctx, detachedBus, host.Handlers{OnClose: func() { close(closed) }}))

	require.Eventually(t, func() bool {
		return f.shell.Hub().Connected(id.MainWindow) && f.shell.Hub().Connected(id.DetachedWindow("a"))
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, main.Close())

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("detached window was not told to close")
	}
	require.NoError(t, detached.Close())
	assert.Eventually(t, func() bool { return len(f.shell.Windows()) == 0 }, time.Second, 5*time.Millisecond)
}
