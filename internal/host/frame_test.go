package host

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anafis/workspace/internal/domain/events"
	"github.com/anafis/workspace/internal/domain/tabs"
	"github.com/anafis/workspace/internal/shared/id"
)

func TestEventFrameRoundTrip(t *testing.T) {
	env := events.Envelope{
		ID:     "7f1c",
		Origin: id.MainWindow,
		SentAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Event: events.Drop{
			Tab:    tabs.Info{ID: "solver-1", Title: "Solver", ContentType: tabs.ContentSolver, Version: 1},
			Target: id.DetachedWindow("fitting-2"),
		},
	}

	f, err := EventFrame(env)
	require.NoError(t, err)
	assert.Equal(t, FrameEvent, f.Type)
	assert.Equal(t, id.MainWindow, f.Window)

	data, err := EncodeFrame(f)
	require.NoError(t, err)

	decoded, err := DecodeFrame(data)
	require.NoError(t, err)
	got, err := decoded.Envelope()
	require.NoError(t, err)

	assert.Equal(t, env.ID, got.ID)
	assert.Equal(t, env.Origin, got.Origin)
	assert.True(t, env.SentAt.Equal(got.SentAt))
	assert.Equal(t, env.Event, got.Event)
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    FrameType
		wantErr bool
	}{
		{"welcome", `{"type":"welcome","window":"main","conn":"conn_01"}`, FrameWelcome, false},
		{"close", `{"type":"close","window":"tab_a"}`, FrameClose, false},
		{"focus", `{"type":"focus"}`, FrameFocus, false},
		{"unknown", `{"type":"resize"}`, "", true},
		{"garbage", `not json`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DecodeFrame([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Type)
		})
	}
}

func TestControlFrameHasNoEnvelope(t *testing.T) {
	_, err := Frame{Type: FrameClose}.Envelope()
	assert.Error(t, err)
}
