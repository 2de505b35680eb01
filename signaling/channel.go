// Package signaling implements the protoo request/response protocol over a WebSocket so a
// Room can talk to a mediasoup v2 server.
package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
)

const (
	MaxRequestId = 4294967295

	Subprotocol = "protoo"

	defaultWriteTimeout = 10 * time.Second
	defaultPongWait     = 60 * time.Second
)

var (
	ErrChannelClosed  = errors.New("signaling: channel closed")
	ErrRequestTimeout = fmt.Errorf("signaling: request timed out: %w", context.DeadlineExceeded)
)

// NotificationHandler receives the notifications sent by the server.
type NotificationHandler func(method string, data json.RawMessage)

// RequestHandler answers the requests sent by the server. A returned ResponseError is
// forwarded as is, any other error is reported with code 500.
type RequestHandler func(method string, data json.RawMessage) (interface{}, error)

type Options struct {
	Logger         logr.Logger
	OnNotification NotificationHandler
	OnRequest      RequestHandler
	// OnClose is called once, err is nil when the channel was closed locally.
	OnClose func(err error)
	// WriteTimeout bounds every frame write.
	WriteTimeout time.Duration
	// PongWait is how long the connection may stay silent. Pings are sent at half of it.
	PongWait time.Duration
}

// Channel is a protoo peer. It is safe for concurrent use.
type Channel struct {
	conn    *websocket.Conn
	options Options
	logger  logr.Logger

	writeMu sync.Mutex

	mu          sync.Mutex
	nextId      uint32
	responsesCh map[uint32]chan Message
	closed      bool
	done        chan struct{}
}

// Dial connects to a protoo server.
func Dial(ctx context.Context, url string, header http.Header, options Options) (*Channel, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 45 * time.Second,
		Subprotocols:     []string{Subprotocol},
	}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("signaling: dial %s: %w", url, err)
	}

	return NewChannel(conn, options), nil
}

// NewChannel starts serving an established connection.
func NewChannel(conn *websocket.Conn, options Options) *Channel {
	if options.Logger.GetSink() == nil {
		options.Logger = logr.Discard()
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = defaultWriteTimeout
	}
	if options.PongWait <= 0 {
		options.PongWait = defaultPongWait
	}

	c := &Channel{
		conn:        conn,
		options:     options,
		logger:      options.Logger.WithName("Channel"),
		responsesCh: make(map[uint32]chan Message),
		done:        make(chan struct{}),
	}

	go c.readLoop()
	go c.pingLoop()

	return c
}

// Request sends a request and waits for its response data.
func (c *Channel) Request(ctx context.Context, method string, data interface{}) (json.RawMessage, error) {
	payload, err := marshalData(data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrChannelClosed
	}
	if c.nextId < MaxRequestId {
		c.nextId++
	} else {
		c.nextId = 1
	}
	id := c.nextId
	respCh := make(chan Message, 1)
	c.responsesCh[id] = respCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.responsesCh, id)
		c.mu.Unlock()
	}()

	c.logger.V(1).Info("request()", "method", method, "id", id)

	if err := c.write(newRequest(id, method, payload)); err != nil {
		return nil, err
	}

	select {
	case resp := <-respCh:
		if !resp.Ok {
			return nil, ResponseError{Code: resp.ErrorCode, Reason: resp.ErrorReason}
		}
		return resp.Data, nil

	case <-c.done:
		return nil, ErrChannelClosed

	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrRequestTimeout
		}
		return nil, ctx.Err()
	}
}

// Notify sends a notification.
func (c *Channel) Notify(method string, data interface{}) error {
	payload, err := marshalData(data)
	if err != nil {
		return err
	}

	c.logger.V(1).Info("notify()", "method", method)

	return c.write(newNotification(method, payload))
}

func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// Done is closed once the channel is closed.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close sends a close frame and releases the connection. Pending requests fail with
// ErrChannelClosed.
func (c *Channel) Close() error {
	if !c.doClose(nil) {
		return nil
	}

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.options.WriteTimeout))
	c.writeMu.Unlock()

	return c.conn.Close()
}

func (c *Channel) write(msg Message) error {
	if c.Closed() {
		return ErrChannelClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))

	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("signaling: write %q: %w", msg.Method, err)
	}
	return nil
}

func (c *Channel) doClose(err error) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	if c.options.OnClose != nil {
		c.options.OnClose(err)
	}
	return true
}

func (c *Channel) readLoop() {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.options.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.options.PongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if !c.Closed() {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Error(err, "connection lost")
				}
				c.doClose(err)
				c.conn.Close()
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.options.PongWait))

		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.logger.Error(err, "received invalid message", "payload", string(payload))
			continue
		}

		switch {
		case msg.Response:
			c.processResponse(msg)
		case msg.Request:
			c.processRequest(msg)
		case msg.Notification:
			c.processNotification(msg)
		default:
			c.logger.Error(nil, "received message of unknown type", "payload", string(payload))
		}
	}
}

func (c *Channel) pingLoop() {
	ticker := time.NewTicker(c.options.PongWait / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.options.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.V(1).Info("ping failed", "err", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Channel) processResponse(msg Message) {
	c.mu.Lock()
	respCh, ok := c.responsesCh[msg.Id]
	if ok {
		// buffered and removed, so a duplicate response can't block
		respCh <- msg
		delete(c.responsesCh, msg.Id)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Error(nil, "received an unhandled response", "id", msg.Id, "ok", msg.Ok, "errorReason", msg.ErrorReason)
	}
}

func (c *Channel) processRequest(msg Message) {
	if c.options.OnRequest == nil {
		c.reply(newErrorResponse(msg.Id, 405, fmt.Sprintf("unsupported request %q", msg.Method)))
		return
	}

	result, err := c.options.OnRequest(msg.Method, msg.Data)
	if err != nil {
		var respErr ResponseError
		if errors.As(err, &respErr) {
			c.reply(newErrorResponse(msg.Id, respErr.Code, respErr.Reason))
		} else {
			c.reply(newErrorResponse(msg.Id, 500, err.Error()))
		}
		return
	}

	payload, err := marshalData(result)
	if err != nil {
		c.reply(newErrorResponse(msg.Id, 500, err.Error()))
		return
	}
	c.reply(newSuccessResponse(msg.Id, payload))
}

func (c *Channel) reply(msg Message) {
	if err := c.write(msg); err != nil {
		c.logger.Error(err, "reply failed", "id", msg.Id)
	}
}

func (c *Channel) processNotification(msg Message) {
	if c.options.OnNotification == nil {
		c.logger.V(1).Info("notification ignored", "method", msg.Method)
		return
	}
	c.options.OnNotification(msg.Method, msg.Data)
}
