package host

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/anafis/workspace/internal/domain/events"
	"github.com/anafis/workspace/internal/domain/tabs"
	"github.com/anafis/workspace/internal/domain/window"
	"github.com/anafis/workspace/internal/infrastructure/tracing"
	"github.com/anafis/workspace/internal/shared/id"
)

var ErrNotDialed = errors.New("IPC socket is not connected")

// WindowHeader carries the calling window's label on shell commands.
const WindowHeader = "X-Workspace-Window"

// Response is the shell's JSON reply.
type Response struct {
	Success  bool        `json:"success"`
	Error    string      `json:"error,omitempty"`
	WindowID id.WindowID `json:"window_id,omitempty"`
}

// ShellError is a command the shell refused.
type ShellError struct {
	Status  int
	Message string
}

func (e *ShellError) Error() string {
	return fmt.Sprintf("shell returned %d: %s", e.Status, e.Message)
}

// Client is a window process's connection to the shell. Commands travel over
// HTTP; events travel over the IPC socket. It implements workspace.Host and
// events.Relay.
type Client struct {
	window  id.WindowID
	baseURL string
	http    *resty.Client
	logger  *zap.Logger

	writeMu sync.Mutex
	mu      sync.Mutex
	ws      *websocket.Conn // Protected by mu
	done    chan struct{}
}

// NewClient creates a client for window talking to the shell at shellURL.
// Commands are never retried; timeout bounds each one.
func NewClient(shellURL string, w id.WindowID, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	pooled := retryablehttp.NewClient()
	pooled.Logger = nil

	rc := resty.New().
		SetBaseURL(strings.TrimRight(shellURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "workspace-window/1.0").
		SetHeader(WindowHeader, w.String())
	rc.SetTransport(pooled.HTTPClient.Transport)
	rc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		tracing.Inject(r.Context(), r.Header)
		return nil
	})

	return &Client{
		window:  w,
		baseURL: shellURL,
		http:    rc,
		logger:  logger,
	}
}

// Window returns the label this client speaks for.
func (c *Client) Window() id.WindowID {
	return c.window
}

// CreateWindow asks the shell to open a window.
func (c *Client) CreateWindow(ctx context.Context, spec window.Spec) (id.WindowID, error) {
	var out Response
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(spec).
		SetResult(&out).
		SetError(&out).
		Post("/windows")
	if err := check(resp, err, &out); err != nil {
		return "", err
	}
	return out.WindowID, nil
}

// CloseWindow asks the shell to close a window.
func (c *Client) CloseWindow(ctx context.Context, w id.WindowID) error {
	var out Response
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", w.String()).
		SetResult(&out).
		SetError(&out).
		Delete("/windows/{id}")
	if err := check(resp, err, &out); err != nil {
		if resp != nil && resp.StatusCode() == 404 {
			return fmt.Errorf("%w: %s", window.ErrWindowNotFound, err)
		}
		return err
	}
	return nil
}

// SendTabToMain hands a tab to the main window through the shell.
func (c *Client) SendTabToMain(ctx context.Context, info tabs.Info) error {
	var out Response
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", c.window.String()).
		SetBody(info).
		SetResult(&out).
		SetError(&out).
		Post("/windows/{id}/reattach")
	return check(resp, err, &out)
}

func check(resp *resty.Response, err error, out *Response) error {
	if err != nil {
		return fmt.Errorf("shell request failed: %w", err)
	}
	if resp.IsError() || !out.Success {
		msg := out.Error
		if msg == "" {
			msg = resp.Status()
		}
		return &ShellError{Status: resp.StatusCode(), Message: msg}
	}
	return nil
}

// Handlers receive control frames from the shell.
type Handlers struct {
	OnClose func()
	OnFocus func()
}

// Connect dials the IPC socket and delivers incoming events to bus until
// the socket closes. It returns once connected.
func (c *Client) Connect(ctx context.Context, bus *events.Bus, h Handlers) error {
	u, err := c.socketURL()
	if err != nil {
		return err
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("failed to dial shell IPC: %w", err)
	}

	c.mu.Lock()
	c.ws = ws
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.readLoop(ws, done, bus, h)
	c.logger.Info("Connected to shell", zap.String("url", u))
	return nil
}

// Done is closed when the socket stops reading.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Publish sends a locally emitted envelope to the other windows.
func (c *Client) Publish(env events.Envelope) error {
	f, err := EventFrame(env)
	if err != nil {
		return err
	}
	data, err := EncodeFrame(f)
	if err != nil {
		return err
	}

	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotDialed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(websocket.TextMessage, data)
}

// Close closes the IPC socket.
func (c *Client) Close() error {
	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()
	if ws == nil {
		return nil
	}

	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return ws.Close()
}

func (c *Client) socketURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid shell url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ipc"
	u.RawQuery = url.Values{"window": {c.window.String()}}.Encode()
	return u.String(), nil
}

func (c *Client) readLoop(ws *websocket.Conn, done chan struct{}, bus *events.Bus, h Handlers) {
	defer close(done)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Shell IPC closed", zap.Error(err))
			}
			return
		}

		f, err := DecodeFrame(data)
		if err != nil {
			c.logger.Warn("Dropping malformed frame", zap.Error(err))
			continue
		}

		switch f.Type {
		case FrameWelcome:
			c.logger.Debug("Shell welcomed window", zap.String("conn_id", string(f.Conn)))
		case FrameEvent:
			env, err := f.Envelope()
			if err != nil {
				c.logger.Warn("Dropping undecodable event", zap.Error(err))
				continue
			}
			bus.Deliver(env)
		case FrameFocus:
			if h.OnFocus != nil {
				h.OnFocus()
			}
		case FrameClose:
			if h.OnClose != nil {
				h.OnClose()
			}
		}
	}
}
