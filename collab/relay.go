package collab

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/landviz/collab-api/models"
)

// defaultRespondTimeout bounds how long a respondable request waits for its
// answer before falling back to the offline path
const defaultRespondTimeout = 5 * time.Second

// HandlerFunc receives an inbound message together with the id of the user the
// relay says sent it. Sender identity always comes from the envelope, never
// from the payload.
type HandlerFunc func(userID string, message json.RawMessage)

// RespondableOptions configures a request that expects an answer from the relay
type RespondableOptions struct {
	ResponseEvent string
	Timeout       time.Duration
	OnResponse    func(message json.RawMessage)
	OnOffline     func()
}

type pendingRequest struct {
	responseEvent string
	timer         *time.Timer
	onResponse    func(message json.RawMessage)
	onOffline     func()
}

// RelayClient is the bidirectional connection to the relay server. Inbound
// frames are dispatched sequentially on a single goroutine, so subscriber
// handlers observe messages in arrival order.
type RelayClient struct {
	mu       sync.Mutex
	writeMu  sync.Mutex
	conn     *websocket.Conn
	offline  bool
	handlers map[string]map[int]HandlerFunc
	nextID   int
	pending  map[uint64]*pendingRequest
	nonce    uint64

	onDisconnect []func()
}

// NewRelayClient creates a relay client in the offline state
func NewRelayClient() *RelayClient {
	return &RelayClient{
		offline:  true,
		handlers: make(map[string]map[int]HandlerFunc),
		pending:  make(map[uint64]*pendingRequest),
	}
}

// Connect dials the relay and starts the read pump. The caller stays
// responsible for the join handshake arriving through a subscribed handler.
func (c *RelayClient) Connect(rawURL string) error {
	conn, _, err := websocket.DefaultDialer.Dial(rawURL, nil)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.offline = false
	c.mu.Unlock()
	go c.readPump(conn)
	return nil
}

// IsOnline reports whether the relay connection is currently open
func (c *RelayClient) IsOnline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.offline
}

// On registers a handler for one event type and returns the matching off
// function
func (c *RelayClient) On(event string, h HandlerFunc) (off func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[int]HandlerFunc)
	}
	id := c.nextID
	c.nextID++
	c.handlers[event][id] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[event], id)
	}
}

// OnDisconnect registers a callback fired once when the connection is lost or
// closed
func (c *RelayClient) OnDisconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = append(c.onDisconnect, fn)
}

// Send broadcasts a fire-and-forget message. A closed connection is never an
// error to the caller; the frame is dropped and the disconnect surfaces
// through the offline path instead.
func (c *RelayClient) Send(event string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		zap.S().Errorw("failed to marshal outbound message", "event", event, "error", err)
		return
	}
	c.write(models.Envelope{Event: event, Message: raw})
}

// SendRespondable sends a message that expects an answer carrying the same
// nonce. OnResponse fires when a matching frame arrives; OnOffline fires after
// the bounded wait or immediately when the client already is offline.
func (c *RelayClient) SendRespondable(event string, payload interface{}, opts RespondableOptions) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRespondTimeout
	}

	c.mu.Lock()
	if c.offline {
		c.mu.Unlock()
		if opts.OnOffline != nil {
			opts.OnOffline()
		}
		return
	}
	c.nonce++
	nonce := c.nonce
	req := &pendingRequest{
		responseEvent: opts.ResponseEvent,
		onResponse:    opts.OnResponse,
		onOffline:     opts.OnOffline,
	}
	req.timer = time.AfterFunc(opts.Timeout, func() { c.expire(nonce) })
	c.pending[nonce] = req
	c.mu.Unlock()

	raw, err := json.Marshal(payload)
	if err != nil {
		zap.S().Errorw("failed to marshal respondable message", "event", event, "error", err)
		c.expire(nonce)
		return
	}
	c.write(models.Envelope{Event: event, Nonce: &nonce, Message: raw})
}

// Disconnect closes the connection; pending respondables resolve through their
// offline callbacks
func (c *RelayClient) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}
	c.goOffline()
}

func (c *RelayClient) write(env models.Envelope) {
	c.mu.Lock()
	conn := c.conn
	offline := c.offline
	c.mu.Unlock()
	if offline || conn == nil {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(env); err != nil {
		zap.S().Debugw("relay write failed", "event", env.Event, "error", err)
	}
}

func (c *RelayClient) readPump(conn *websocket.Conn) {
	for {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			break
		}
		c.dispatch(env)
	}
	c.goOffline()
}

// dispatch first tries to settle a pending respondable by nonce, then fans the
// frame out to every handler registered for its event
func (c *RelayClient) dispatch(env models.Envelope) {
	if env.Nonce != nil {
		c.mu.Lock()
		req, ok := c.pending[*env.Nonce]
		if ok && req.responseEvent == env.Event {
			delete(c.pending, *env.Nonce)
			c.mu.Unlock()
			req.timer.Stop()
			if req.onResponse != nil {
				req.onResponse(env.Message)
			}
			return
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	hs := make([]HandlerFunc, 0, len(c.handlers[env.Event]))
	for _, h := range c.handlers[env.Event] {
		hs = append(hs, h)
	}
	c.mu.Unlock()
	for _, h := range hs {
		h(env.UserID, env.Message)
	}
}

func (c *RelayClient) expire(nonce uint64) {
	c.mu.Lock()
	req, ok := c.pending[nonce]
	if ok {
		delete(c.pending, nonce)
	}
	c.mu.Unlock()
	if ok && req.onOffline != nil {
		req.onOffline()
	}
}

// goOffline resolves every pending request through its offline callback and
// fires the disconnect callbacks exactly once
func (c *RelayClient) goOffline() {
	c.mu.Lock()
	if c.offline {
		c.mu.Unlock()
		return
	}
	c.offline = true
	c.conn = nil
	pending := c.pending
	c.pending = make(map[uint64]*pendingRequest)
	callbacks := append([]func(){}, c.onDisconnect...)
	c.mu.Unlock()

	for _, req := range pending {
		req.timer.Stop()
		if req.onOffline != nil {
			req.onOffline()
		}
	}
	for _, fn := range callbacks {
		fn()
	}
}
