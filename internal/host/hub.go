package host

import (
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/anafis/workspace/internal/shared/id"
)

var ErrNotConnected = errors.New("window is not connected")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Windows load from the app protocol, not an http origin
	},
}

// HubRecorder observes IPC traffic. monitoring.Metrics implements it.
type HubRecorder interface {
	SetIPCConnections(n int)
	RecordIPCMessage(direction, frame string)
}

type nopHubRecorder struct{}

func (nopHubRecorder) SetIPCConnections(int)           {}
func (nopHubRecorder) RecordIPCMessage(string, string) {}

// conn is one window's socket.
type conn struct {
	id     id.ConnID
	window id.WindowID
	ws     *websocket.Conn
	send   chan []byte
	once   sync.Once
}

func (c *conn) shutdown() {
	c.once.Do(func() { close(c.send) })
}

// Hub is the shell side of the IPC socket. Each window holds one connection;
// event frames from a window are fanned out to every other window.
type Hub struct {
	logger   *zap.Logger
	recorder HubRecorder

	mu           sync.RWMutex
	conns        map[id.WindowID]*conn // Protected by mu
	onConnect    []func(id.WindowID)   // Protected by mu
	onDisconnect []func(id.WindowID)   // Protected by mu
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger, recorder HubRecorder) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopHubRecorder{}
	}
	return &Hub{
		logger:   logger,
		recorder: recorder,
		conns:    make(map[id.WindowID]*conn),
	}
}

// OnConnect registers a callback run after a window connected.
func (h *Hub) OnConnect(fn func(id.WindowID)) {
	h.mu.Lock()
	h.onConnect = append(h.onConnect, fn)
	h.mu.Unlock()
}

// OnDisconnect registers a callback run after a window's socket closed.
func (h *Hub) OnDisconnect(fn func(id.WindowID)) {
	h.mu.Lock()
	h.onDisconnect = append(h.onDisconnect, fn)
	h.mu.Unlock()
}

// HandleConnection upgrades GET /ipc?window=<label>.
func (h *Hub) HandleConnection(c *gin.Context) {
	window := id.WindowID(c.Query("window"))
	if window == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "window query parameter is required"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.String("window_id", window.String()), zap.Error(err))
		return
	}

	cn := &conn{
		id:     id.NewConnID(),
		window: window,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
	}
	h.register(cn)

	go h.writePump(cn)
	if err := h.sendFrame(cn, Frame{Type: FrameWelcome, Window: window, Conn: cn.id}); err != nil {
		h.logger.Warn("Failed to greet window", zap.String("window_id", window.String()), zap.Error(err))
	}
	h.readPump(cn)
}

// Connected reports whether a window holds a socket.
func (h *Hub) Connected(window id.WindowID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[window]
	return ok
}

// Windows lists connected windows in label order.
func (h *Hub) Windows() []id.WindowID {
	h.mu.RLock()
	out := make([]id.WindowID, 0, len(h.conns))
	for w := range h.conns {
		out = append(out, w)
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SendTo queues a frame for one window.
func (h *Hub) SendTo(window id.WindowID, f Frame) error {
	h.mu.RLock()
	cn, ok := h.conns[window]
	h.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	return h.sendFrame(cn, f)
}

// Broadcast queues a frame for every window except from.
func (h *Hub) Broadcast(from id.WindowID, f Frame) error {
	data, err := EncodeFrame(f)
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns))
	for w, cn := range h.conns {
		if w != from {
			targets = append(targets, cn)
		}
	}
	h.mu.RUnlock()

	for _, cn := range targets {
		h.enqueue(cn, data, f.Type)
	}
	return nil
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[id.WindowID]*conn)
	h.mu.Unlock()

	for _, cn := range conns {
		cn.shutdown()
	}
	h.recorder.SetIPCConnections(0)
}

func (h *Hub) register(cn *conn) {
	h.mu.Lock()
	old, replaced := h.conns[cn.window]
	h.conns[cn.window] = cn
	n := len(h.conns)
	callbacks := append([]func(id.WindowID){}, h.onConnect...)
	h.mu.Unlock()

	if replaced {
		// A reloaded window reconnects under the same label.
		old.shutdown()
	}
	h.recorder.SetIPCConnections(n)
	h.logger.Info("Window connected",
		zap.String("window_id", cn.window.String()),
		zap.String("conn_id", string(cn.id)),
	)
	for _, fn := range callbacks {
		fn(cn.window)
	}
}

func (h *Hub) unregister(cn *conn) {
	h.mu.Lock()
	current, ok := h.conns[cn.window]
	if ok && current == cn {
		delete(h.conns, cn.window)
	}
	n := len(h.conns)
	callbacks := append([]func(id.WindowID){}, h.onDisconnect...)
	h.mu.Unlock()

	cn.shutdown()
	if !ok || current != cn {
		return
	}

	h.recorder.SetIPCConnections(n)
	h.logger.Info("Window disconnected",
		zap.String("window_id", cn.window.String()),
		zap.String("conn_id", string(cn.id)),
	)
	for _, fn := range callbacks {
		fn(cn.window)
	}
}

func (h *Hub) sendFrame(cn *conn, f Frame) error {
	data, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	h.enqueue(cn, data, f.Type)
	return nil
}

func (h *Hub) enqueue(cn *conn, data []byte, ft FrameType) {
	defer func() {
		// send was closed by a concurrent disconnect
		_ = recover()
	}()

	select {
	case cn.send <- data:
		h.recorder.RecordIPCMessage("out", string(ft))
	default:
		h.logger.Warn("IPC send buffer full, dropping frame",
			zap.String("window_id", cn.window.String()),
			zap.String("frame", string(ft)),
		)
	}
}

func (h *Hub) readPump(cn *conn) {
	defer func() {
		h.unregister(cn)
		cn.ws.Close()
	}()

	cn.ws.SetReadLimit(maxMessageSize)
	_ = cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	cn.ws.SetPongHandler(func(string) error {
		return cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := cn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("IPC read error", zap.String("window_id", cn.window.String()), zap.Error(err))
			}
			return
		}

		f, err := DecodeFrame(data)
		if err != nil {
			h.logger.Warn("Dropping malformed frame", zap.String("window_id", cn.window.String()), zap.Error(err))
			continue
		}
		h.recorder.RecordIPCMessage("in", string(f.Type))

		if f.Type != FrameEvent {
			h.logger.Debug("Ignoring control frame from window",
				zap.String("window_id", cn.window.String()),
				zap.String("frame", string(f.Type)),
			)
			continue
		}
		env, err := f.Envelope()
		if err != nil {
			h.logger.Warn("Dropping undecodable event", zap.String("window_id", cn.window.String()), zap.Error(err))
			continue
		}
		if env.Origin != cn.window {
			h.logger.Warn("Dropping event with foreign origin",
				zap.String("window_id", cn.window.String()),
				zap.String("origin", env.Origin.String()),
			)
			continue
		}
		f.Window = cn.window
		if err := h.Broadcast(cn.window, f); err != nil {
			h.logger.Warn("Failed to relay event", zap.String("window_id", cn.window.String()), zap.Error(err))
		}
	}
}

func (h *Hub) writePump(cn *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cn.ws.Close()
	}()

	for {
		select {
		case data, ok := <-cn.send:
			_ = cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cn.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cn.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
