package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

const clientIDParam = "clientId"

// Options configures a Client. Zero values get sensible defaults.
type Options struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer

	InitialInterval time.Duration
	MaxInterval     time.Duration

	WriteTimeout time.Duration
	PongTimeout  time.Duration
	PingInterval time.Duration

	Logger *zap.Logger
}

func (o *Options) withDefaults() {
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = 500 * time.Millisecond
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongTimeout {
		o.PingInterval = o.PongTimeout * 9 / 10
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Client is the websocket Transport. One goroutine owns the connection: it
// dials, reads frames and runs handlers one at a time in arrival order, and
// redials with exponential backoff after the link drops.
type Client struct {
	opts Options
	id   string
	log  *zap.Logger

	mu    sync.RWMutex
	table handlerTable

	connMu sync.Mutex
	conn   *websocket.Conn

	lifeMu  sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	closed  bool
}

// NewClient builds a transport with a fresh client id.
func NewClient(opts Options) *Client {
	opts.withDefaults()
	id := uuid.NewString()
	return &Client{
		opts:  opts,
		id:    id,
		log:   opts.Logger.With(zap.String("client_id", id)),
		table: newHandlerTable(),
	}
}

// ID returns the client id sent on every dial.
func (c *Client) ID() string { return c.id }

// On registers h for event.
func (c *Client) On(event string, h Handler) ListenerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.On(event, h)
}

// Off removes a registration made with On.
func (c *Client) Off(event string, id ListenerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table.Off(event, id)
}

// Rebind runs fn while holding the handler table exclusively.
func (c *Client) Rebind(fn func(r Registrar)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.table)
}

// Listeners reports how many handlers are registered.
func (c *Client) Listeners() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table.count()
}

// Connect starts the connection loop and returns immediately. Progress is
// reported through the lifecycle events.
func (c *Client) Connect(ctx context.Context) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.started {
		return nil
	}
	target, err := c.dialURL()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.started = true
	go c.run(runCtx, target)
	return nil
}

// Disconnect closes the link and stops reconnecting. It waits for the
// connection goroutine, so it must not be called from a handler.
func (c *Client) Disconnect() error {
	c.lifeMu.Lock()
	if c.closed {
		c.lifeMu.Unlock()
		return nil
	}
	c.closed = true
	started, cancel, done := c.started, c.cancel, c.done
	c.lifeMu.Unlock()

	if !started {
		return nil
	}
	cancel()

	c.connMu.Lock()
	if c.conn != nil {
		deadline := time.Now().Add(c.opts.WriteTimeout)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.conn.Close()
	}
	c.connMu.Unlock()

	<-done
	return nil
}

// Emit sends one event. Commands are never queued: while the link is down
// the event is dropped and ErrNotConnected returned.
func (c *Client) Emit(event string, payload any) error {
	raw, err := EncodeFrame(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		c.log.Warn("websocket write failed", zap.String("event", event), zap.Error(err))
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

func (c *Client) dialURL() (string, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Set(clientIDParam, c.id)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.InitialInterval
	bo.MaxInterval = c.opts.MaxInterval
	bo.MaxElapsedTime = 0
	return bo
}

func (c *Client) run(ctx context.Context, target string) {
	defer close(c.done)

	bo := c.newBackOff()
	everConnected := false
	c.deliver(models.EventConnecting, nil)

	for {
		conn, err := c.dial(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			observability.IncTransportEvent("dial_error")
			c.log.Warn("websocket dial failed", zap.Error(err))
			if !sleep(ctx, bo.NextBackOff()) {
				return
			}
			continue
		}
		bo.Reset()

		c.setConn(conn)
		if everConnected {
			observability.IncTransportEvent("reconnect")
			c.log.Info("websocket reconnected")
			c.deliver(models.EventReconnect, nil)
		} else {
			observability.IncTransportEvent("connect")
			c.log.Info("websocket connected")
			c.deliver(models.EventConnect, nil)
		}
		everConnected = true

		err = c.readLoop(ctx, conn)
		c.setConn(nil)
		_ = conn.Close()
		observability.IncTransportEvent("disconnect")
		c.log.Info("websocket disconnected", zap.Error(err))
		c.deliver(models.EventDisconnect, nil)

		if ctx.Err() != nil {
			return
		}
		c.deliver(models.EventReconnectAttempt, nil)
		if !sleep(ctx, bo.NextBackOff()) {
			return
		}
	}
}

func (c *Client) dial(ctx context.Context, target string) (*websocket.Conn, error) {
	ctx, span := otel.Tracer("chat-client/ws").Start(ctx, "ws.dial")
	defer span.End()

	conn, resp, err := c.opts.Dialer.DialContext(ctx, target, c.opts.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("client_id", c.id))
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})

	stop := make(chan struct{})
	defer close(stop)
	go c.keepalive(ctx, conn, stop)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
			c.log.Warn("dropping malformed frame", zap.ByteString("raw", raw), zap.Error(err))
			continue
		}
		c.deliver(frame.Event, frame.Data)
	}
}

// keepalive pings the server and closes conn once ctx is cancelled so a
// blocked read returns.
func (c *Client) keepalive(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			_ = conn.Close()
			return
		case <-ticker.C:
			c.connMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout))
			c.connMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) deliver(event string, data json.RawMessage) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ls := c.table.lookup(event)
	if len(ls) == 0 {
		c.log.Debug("no handler for event", zap.String("event", event))
		return
	}
	for _, l := range ls {
		c.invoke(event, l.h, data)
	}
}

func (c *Client) invoke(event string, h Handler, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("event handler panicked", zap.String("event", event), zap.Any("panic", r))
		}
	}()
	h(data)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d == backoff.Stop {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
