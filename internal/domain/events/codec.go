package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/anafis/workspace/internal/shared/id"
)

var ErrUnknownKind = errors.New("unknown event kind")

// wireEnvelope is the JSON form exchanged with the host runtime.
type wireEnvelope struct {
	ID      string          `json:"id"`
	Kind    Kind            `json:"kind"`
	Origin  id.WindowID     `json:"origin"`
	SentAt  time.Time       `json:"sent_at"`
	Payload json.RawMessage `json:"payload"`
}

// Marshal encodes an envelope for transport.
func Marshal(env Envelope) ([]byte, error) {
	if env.Event == nil {
		return nil, fmt.Errorf("%w: empty envelope", ErrUnknownKind)
	}
	payload, err := sonic.Marshal(env.Event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", env.Kind(), err)
	}
	return sonic.Marshal(wireEnvelope{
		ID:      env.ID,
		Kind:    env.Kind(),
		Origin:  env.Origin,
		SentAt:  env.SentAt,
		Payload: payload,
	})
}

// Unmarshal decodes an envelope received from the host runtime.
func Unmarshal(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := sonic.Unmarshal(data, &w); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}

	var (
		ev  Event
		err error
	)
	switch w.Kind {
	case KindDragStart:
		var p DragStart
		err = sonic.Unmarshal(w.Payload, &p)
		ev = p
	case KindDrop:
		var p Drop
		err = sonic.Unmarshal(w.Payload, &p)
		ev = p
	case KindReattachRequest, kindReattachAlias:
		var p ReattachRequest
		if err = sonic.Unmarshal(w.Payload, &p); err == nil && p.Tab.ID == "" {
			// Hosts deliver the bare {id,title,content_type} object.
			err = sonic.Unmarshal(w.Payload, &p.Tab)
		}
		ev = p
	default:
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownKind, w.Kind)
	}
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to decode %s payload: %w", w.Kind, err)
	}

	return Envelope{
		ID:     w.ID,
		Origin: w.Origin,
		SentAt: w.SentAt,
		Event:  ev,
	}, nil
}
