package reattach

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anafis/workspace/internal/domain/events"
	"github.com/anafis/workspace/internal/domain/tabs"
	"github.com/anafis/workspace/internal/shared/id"
)

type fakeSender struct {
	sent  []tabs.Info
	err   error
	block bool
}

func (s *fakeSender) SendTabToMain(ctx context.Context, info tabs.Info) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, info)
	return nil
}

func detachedStore(t *testing.T) *tabs.Store {
	t.Helper()
	store := tabs.NewStore(nil)
	require.True(t, store.Add(tabs.Tab{ID: "fitting-2", Title: "Fitting", ContentType: tabs.ContentFitting, Version: 1}))
	return store
}

func TestReattachSendsAndCloses(t *testing.T) {
	store := detachedStore(t)
	sender := &fakeSender{}
	closed := 0
	r := NewReattacher(id.DetachedWindow("fitting-2"), store, sender, func(context.Context) error {
		closed++
		return nil
	}, nil)

	info, err := r.Reattach(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "fitting-2", info.ID)
	assert.Equal(t, uint64(2), info.Version)
	assert.Equal(t, []tabs.Info{info}, sender.sent)
	assert.Zero(t, store.Len())
	assert.Equal(t, 1, closed)
}

func TestReattachUnavailableInMain(t *testing.T) {
	sender := &fakeSender{}
	r := NewReattacher(id.MainWindow, detachedStore(t), sender, nil, nil)

	_, err := r.Reattach(context.Background())
	assert.ErrorIs(t, err, ErrNotDetached)
	assert.Empty(t, sender.sent)
}

func TestReattachEmptyWindow(t *testing.T) {
	r := NewReattacher(id.DetachedWindow("x"), tabs.NewStore(nil), &fakeSender{}, nil, nil)

	_, err := r.Reattach(context.Background())
	assert.ErrorIs(t, err, ErrNoTab)
}

func TestReattachFailureKeepsWindow(t *testing.T) {
	store := detachedStore(t)
	sendErr := errors.New("host unavailable")
	closed := false
	r := NewReattacher(id.DetachedWindow("fitting-2"), store, &fakeSender{err: sendErr}, func(context.Context) error {
		closed = true
		return nil
	}, nil)

	_, err := r.Reattach(context.Background())
	assert.ErrorIs(t, err, sendErr)
	assert.Equal(t, []string{"fitting-2"}, store.IDs())
	assert.False(t, closed)
}

func TestReattachTimeout(t *testing.T) {
	store := detachedStore(t)
	r := NewReattacher(id.DetachedWindow("fitting-2"), store, &fakeSender{block: true}, nil, nil).
		WithTimeout(20 * time.Millisecond)

	_, err := r.Reattach(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, store.Len())
}

func TestReattachPrefersActiveTab(t *testing.T) {
	store := detachedStore(t)
	store.Add(tabs.Tab{ID: "plot-1", Title: "Plot", ContentType: tabs.ContentSolver})
	store.SetActive("plot-1")
	sender := &fakeSender{}
	closed := 0
	r := NewReattacher(id.DetachedWindow("fitting-2"), store, sender, func(context.Context) error {
		closed++
		return nil
	}, nil)

	info, err := r.Reattach(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "plot-1", info.ID)
	assert.Equal(t, []string{"fitting-2"}, store.IDs())
	assert.Zero(t, closed, "window still holds a tab")

	info, err = r.Reattach(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fitting-2", info.ID)
	assert.Zero(t, store.Len())
	assert.Equal(t, 1, closed)
}

func request(info tabs.Info) events.Envelope {
	return events.Envelope{
		ID:     "env-1",
		Origin: id.DetachedWindow(info.ID),
		Event:  events.ReattachRequest{Tab: info},
	}
}

func TestListenerAddsTab(t *testing.T) {
	main := tabs.NewStore(nil)
	main.Add(tabs.Home(nil))
	var forgotten []string
	l := NewListener(main, func(ct tabs.ContentType) any { return "panel:" + string(ct) }, nil,
		func(tabID string) bool {
			forgotten = append(forgotten, tabID)
			return true
		}, nil)

	info := tabs.Info{ID: "fitting-2", Title: "Fitting", ContentType: tabs.ContentFitting, Version: 2}
	require.NoError(t, l.Handle(request(info)))

	assert.Equal(t, []string{tabs.HomeID, "fitting-2"}, main.IDs())
	tab, ok := main.Get("fitting-2")
	require.True(t, ok)
	assert.Equal(t, "panel:fitting", tab.Content)
	assert.Equal(t, uint64(2), tab.Version)
	assert.Equal(t, []string{"fitting-2"}, forgotten)
}

func TestListenerIsIdempotent(t *testing.T) {
	main := tabs.NewStore(nil)
	l := NewListener(main, nil, nil, nil, nil)
	info := tabs.Info{ID: "fitting-2", Title: "Fitting", ContentType: tabs.ContentFitting, Version: 2}

	require.NoError(t, l.Handle(request(info)))
	require.NoError(t, l.Handle(request(info)))

	assert.Equal(t, []string{"fitting-2"}, main.IDs())
}

func TestListenerDropsStaleVersion(t *testing.T) {
	main := tabs.NewStore(nil)
	l := NewListener(main, nil, nil, nil, nil)

	require.NoError(t, l.Handle(request(tabs.Info{ID: "t", Title: "New", ContentType: tabs.ContentSolver, Version: 4})))
	main.Remove("t")
	require.NoError(t, l.Handle(request(tabs.Info{ID: "t", Title: "Old", ContentType: tabs.ContentSolver, Version: 2})))

	assert.Zero(t, main.Len())
}

func TestListenerRejectsInvalidPayload(t *testing.T) {
	main := tabs.NewStore(nil)
	l := NewListener(main, nil, nil, nil, nil)

	tests := []struct {
		name string
		env  events.Envelope
	}{
		{"empty id", request(tabs.Info{ContentType: tabs.ContentSolver})},
		{"unknown type", request(tabs.Info{ID: "x", ContentType: "spaceship"})},
		{"home", request(tabs.Info{ID: tabs.HomeID, ContentType: tabs.ContentHome})},
		{"wrong event", events.Envelope{Event: events.DragStart{Tab: tabs.Info{ID: "x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, l.Handle(tt.env))
		})
	}
	assert.Zero(t, main.Len())
}

func TestListenerOnBus(t *testing.T) {
	main := tabs.NewStore(nil)
	bus := events.NewBus(id.MainWindow)
	defer bus.Close()

	l := NewListener(main, nil, nil, nil, nil)
	l.Attach(bus)

	info := tabs.Info{ID: "plot-1", Title: "Plot", ContentType: tabs.ContentSolver, Version: 1}
	bus.Deliver(request(info))
	bus.Deliver(request(info))

	assert.Eventually(t, func() bool { return main.Len() == 1 }, time.Second, 5*time.Millisecond)

	l.Detach()
	bus.Deliver(request(tabs.Info{ID: "other", Title: "Other", ContentType: tabs.ContentSolver}))
	bus.Close()
	assert.Equal(t, []string{"plot-1"}, main.IDs())
}
