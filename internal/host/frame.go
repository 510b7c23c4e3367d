package host

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/anafis/workspace/internal/domain/events"
	"github.com/anafis/workspace/internal/shared/id"
)

var ErrUnknownFrame = errors.New("unknown frame type")

// FrameType names a message on the IPC socket.
type FrameType string

const (
	// FrameEvent carries an events.Envelope between windows.
	FrameEvent FrameType = "event"
	// FrameClose tells a window to close itself.
	FrameClose FrameType = "close"
	// FrameFocus tells a window to raise itself.
	FrameFocus FrameType = "focus"
	// FrameWelcome is the first frame on a new connection.
	FrameWelcome FrameType = "welcome"
)

// Frame is one IPC message.
type Frame struct {
	Type   FrameType       `json:"type"`
	Window id.WindowID     `json:"window,omitempty"`
	Conn   id.ConnID       `json:"conn,omitempty"`
	Event  json.RawMessage `json:"event,omitempty"`
}

// EventFrame wraps an envelope.
func EventFrame(env events.Envelope) (Frame, error) {
	data, err := events.Marshal(env)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameEvent, Window: env.Origin, Event: data}, nil
}

// Envelope decodes the envelope of an event frame.
func (f Frame) Envelope() (events.Envelope, error) {
	if f.Type != FrameEvent {
		return events.Envelope{}, fmt.Errorf("%s frame carries no event", f.Type)
	}
	return events.Unmarshal(f.Event)
}

// EncodeFrame serialises a frame for the socket.
func EncodeFrame(f Frame) ([]byte, error) {
	data, err := sonic.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", f.Type, err)
	}
	return data, nil
}

// DecodeFrame parses a socket message.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	switch f.Type {
	case FrameEvent, FrameClose, FrameFocus, FrameWelcome:
		return f, nil
	default:
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownFrame, f.Type)
	}
}
