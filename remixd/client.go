// Package remixd is the client side of the remixd protocol: JSON calls over a
// single websocket to a companion process that shares a local folder.
package remixd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/remixgo/remix-shell/event"
	"github.com/remixgo/remix-shell/protocol"
)

var (
	ErrNotConnected   = errors.New("socket not ready")
	ErrConnectionLost = errors.New("connection to remixd lost")
)

// State is the connection state. Errored is held only between a failure and
// the Disconnected transition that always follows it.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Errored
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Errored:
		return "errored"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// StateChange is published on every transition. Err is set for Errored.
type StateChange struct {
	State State
	Err   error
}

// RemoteError is a non-null error field of a reply.
type RemoteError struct {
	Payload json.RawMessage
}

func (e *RemoteError) Error() string {
	var s string
	if json.Unmarshal(e.Payload, &s) == nil {
		return s
	}
	return string(e.Payload)
}

// Callback receives the outcome of a call exactly once.
type Callback func(result json.RawMessage, err error)

type Client struct {
	url    string
	origin string
	logger *zap.Logger

	mu      sync.Mutex
	writeMu sync.Mutex // one writer at a time on ws
	ws      *websocket.Conn
	state   State
	dialing *dialAttempt
	nextID  int64
	pending map[int64]Callback

	StateChanged event.Feed[StateChange]
	Notified     event.Feed[protocol.Notification]
	Replied      event.Feed[protocol.Message]
}

type dialAttempt struct {
	done chan struct{}
	err  error
}

// New creates a client for the companion at url. No connection is made until
// the first call.
func New(url, origin string, logger *zap.Logger) *Client {
	if url == "" {
		url = protocol.DefaultURL
	}
	if origin == "" {
		origin = protocol.Origin
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:     url,
		origin:  origin,
		logger:  logger.Named("remixd"),
		pending: make(map[int64]Callback),
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Online reports whether a socket is held.
func (c *Client) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

// Pending returns the number of calls awaiting a reply.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Go issues a call and returns immediately. cb runs once the reply arrives,
// the connection fails, or the socket turns out not to be open.
func (c *Client) Go(ctx context.Context, service, fn string, args []interface{}, cb Callback) {
	go func() {
		if err := c.ensureSocket(ctx); err != nil {
			cb(nil, err)
			return
		}
		c.send(service, fn, args, cb)
	}()
}

// Call issues a call and waits for its reply. If ctx ends first the call is
// abandoned; its reply, should it arrive, is dropped.
func (c *Client) Call(ctx context.Context, service, fn string, args ...interface{}) (json.RawMessage, error) {
	type outcome struct {
		result json.RawMessage
		err    error
	}
	ch := make(chan outcome, 1)
	c.Go(ctx, service, fn, args, func(result json.RawMessage, err error) {
		ch <- outcome{result, err}
	})

	select {
	case o := <-ch:
		return o.result, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close drops the socket. Pending calls fail with ErrConnectionLost.
func (c *Client) Close() error {
	c.mu.Lock()
	ws := c.ws
	if ws == nil {
		c.mu.Unlock()
		return nil
	}
	c.ws = nil
	pending := c.takePending()
	c.state = Disconnected
	c.mu.Unlock()

	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := ws.Close()
	c.StateChanged.Publish(StateChange{State: Disconnected})
	failAll(pending, ErrConnectionLost)
	return err
}

func (c *Client) ensureSocket(ctx context.Context) error {
	c.mu.Lock()
	if c.ws != nil {
		c.mu.Unlock()
		return nil
	}
	if d := c.dialing; d != nil {
		c.mu.Unlock()
		select {
		case <-d.done:
			return d.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d := &dialAttempt{done: make(chan struct{})}
	c.dialing = d
	c.state = Connecting
	c.mu.Unlock()

	c.StateChanged.Publish(StateChange{State: Connecting})
	c.logger.Debug("connecting", zap.String("url", c.url))

	ws, err := c.dial(ctx)

	c.mu.Lock()
	c.dialing = nil
	if err != nil {
		c.state = Errored
	} else {
		c.ws = ws
		c.state = Connected
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Info("connection failed", zap.String("url", c.url), zap.Error(err))
		c.StateChanged.Publish(StateChange{State: Errored, Err: err})
		c.settle()
		c.StateChanged.Publish(StateChange{State: Disconnected})
	} else {
		c.logger.Info("connected", zap.String("url", c.url))
		c.StateChanged.Publish(StateChange{State: Connected})
		go c.readLoop(ws)
	}

	d.err = err
	close(d.done)
	return err
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		Subprotocols:     []string{protocol.SubProtocol},
		HandshakeTimeout: 10 * time.Second,
	}
	ws, resp, err := dialer.DialContext(ctx, c.url, http.Header{"Origin": {c.origin}})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return ws, err
}

// settle ends a transient Errored state.
func (c *Client) settle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Errored {
		c.state = Disconnected
	}
}

func (c *Client) send(service, fn string, args []interface{}, cb Callback) {
	rawArgs := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			cb(nil, fmt.Errorf("encode argument: %w", err))
			return
		}
		rawArgs = append(rawArgs, b)
	}

	c.mu.Lock()
	ws := c.ws
	if ws == nil || c.state != Connected {
		state := c.state
		c.mu.Unlock()
		cb(nil, fmt.Errorf("%w. state: %s", ErrNotConnected, state))
		return
	}
	req := protocol.Request{ID: c.nextID, Service: service, Fn: fn, Args: rawArgs}
	c.nextID++
	c.pending[req.ID] = cb
	c.mu.Unlock()

	c.logger.Debug("call", zap.Int64("id", req.ID), zap.String("service", service), zap.String("fn", fn))
	c.writeMu.Lock()
	err := ws.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		_, stillPending := c.pending[req.ID]
		delete(c.pending, req.ID)
		c.mu.Unlock()
		if stillPending {
			cb(nil, fmt.Errorf("send: %w", err))
		}
	}
}

func (c *Client) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.dropped(ws, err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("malformed frame", zap.Error(err))
		return
	}
	msg.Raw = data

	switch msg.Type {
	case protocol.TypeReply:
		if msg.ID == nil {
			return
		}
		c.mu.Lock()
		cb, ok := c.pending[*msg.ID]
		delete(c.pending, *msg.ID)
		c.mu.Unlock()

		if ok {
			if msg.HasError() {
				cb(nil, &RemoteError{Payload: msg.Error})
			} else {
				cb(msg.Result, nil)
			}
		}
		c.Replied.Publish(msg)

	case protocol.TypeNotification:
		var n protocol.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			c.logger.Warn("malformed notification", zap.Error(err))
			return
		}
		c.Notified.Publish(n)
	}
}

// dropped handles the end of ws. Only a normal or going-away close frame
// counts as a clean close; a connection that ends without one has errored.
func (c *Client) dropped(ws *websocket.Conn, err error) {
	clean := websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)

	c.mu.Lock()
	if c.ws != ws {
		// closed through Close
		c.mu.Unlock()
		return
	}
	c.ws = nil
	if clean {
		c.state = Disconnected
	} else {
		c.state = Errored
	}
	pending := c.takePending()
	c.mu.Unlock()
	ws.Close()

	if clean {
		c.logger.Info("connection closed")
	} else {
		c.logger.Warn("connection errored", zap.Error(err))
		c.StateChanged.Publish(StateChange{State: Errored, Err: err})
		c.settle()
	}
	c.StateChanged.Publish(StateChange{State: Disconnected})
	failAll(pending, fmt.Errorf("%w: %v", ErrConnectionLost, err))
}

func (c *Client) takePending() map[int64]Callback {
	pending := c.pending
	c.pending = make(map[int64]Callback)
	return pending
}

func failAll(pending map[int64]Callback, err error) {
	for _, cb := range pending {
		cb(nil, err)
	}
}
