package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anafis/workspace/internal/shared/id"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	sent := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []Event{
		DragStart{Tab: info},
		Drop{Tab: info, Target: id.DetachedWindow("solver-1")},
		ReattachRequest{Tab: info},
	}

	for _, ev := range tests {
		t.Run(string(ev.Kind()), func(t *testing.T) {
			env := Envelope{ID: "e1", Origin: id.MainWindow, SentAt: sent, Event: ev}

			data, err := Marshal(env)
			require.NoError(t, err)

			got, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, env.ID, got.ID)
			assert.Equal(t, env.Origin, got.Origin)
			assert.True(t, sent.Equal(got.SentAt))
			assert.Equal(t, ev, got.Event)
		})
	}
}

func TestUnmarshalHostReattachPayload(t *testing.T) {
	data := []byte(`{"id":"h1","kind":"reattach-tab","origin":"tab_solver-1",
		"payload":{"id":"solver-1","title":"Solver","content_type":"solver"}}`)

	env, err := Unmarshal(data)
	require.NoError(t, err)

	req, ok := env.Event.(ReattachRequest)
	require.True(t, ok)
	assert.Equal(t, "solver-1", req.Tab.ID)
	assert.Equal(t, "Solver", req.Tab.Title)
	assert.EqualValues(t, "solver", req.Tab.ContentType)
}

func TestUnmarshalRejectsUnknownKind(t *testing.T) {
	_, err := Unmarshal([]byte(`{"kind":"tab-teleport","payload":{}}`))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Unmarshal([]byte(`not json`))
	assert.Error(t, err)

	_, err = Marshal(Envelope{})
	assert.ErrorIs(t, err, ErrUnknownKind)
}
