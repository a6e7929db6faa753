package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gabapcia/walletsync/internal/eventchannel"
	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/pkg/resilience/retry"
	"github.com/gabapcia/walletsync/internal/pkg/types"

	"github.com/gorilla/websocket"
)

// ErrConnClosed is returned when writing to a closed push connection.
var ErrConnClosed = errors.New("push connection closed")

const (
	scriptTypeP2PKH         = "p2pkh"
	messageBufferSize       = 64
	defaultHandshakeTimeout = 10 * time.Second
	writeTimeout            = 10 * time.Second
)

type subscriptionFrame struct {
	Op         string `json:"op"`
	ScriptType string `json:"scriptType"`
	Payload    string `json:"payload"`
}

type messageFrame struct {
	Type string `json:"type"`
	TxID string `json:"txid"`
}

type transport struct {
	url    string
	dialer *websocket.Dialer
	retry  retry.Retry
}

var _ eventchannel.Transport = (*transport)(nil)

// Open dials the push endpoint. It returns once the websocket handshake completed.
func (t *transport) Open(ctx context.Context) (eventchannel.Conn, error) {
	ws, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.url, err)
	}

	c := &pushConn{
		transport: t,
		ws:        ws,
		subs:      types.NewSet[string](),
		messages:  make(chan eventchannel.Message, messageBufferSize),
		done:      make(chan struct{}),
	}

	go c.readLoop(context.WithoutCancel(ctx))
	return c, nil
}

// pushConn is a websocket that redials and restores its subscriptions when
// the connection drops.
type pushConn struct {
	transport *transport

	mu     sync.Mutex
	ws     *websocket.Conn
	subs   types.Set[string]
	closed bool

	writeMu sync.Mutex

	messages chan eventchannel.Message
	done     chan struct{}
}

var _ eventchannel.Conn = (*pushConn)(nil)

// Subscribe records fingerprint before writing it. A write that fails on a
// dropped socket is replayed by the reconnect.
func (c *pushConn) Subscribe(ctx context.Context, fingerprint string) error {
	c.mu.Lock()
	c.subs.Add(fingerprint)
	c.mu.Unlock()

	return c.send(ctx, subscriptionFrame{Op: "subscribe", ScriptType: scriptTypeP2PKH, Payload: fingerprint})
}

func (c *pushConn) Unsubscribe(ctx context.Context, fingerprint string) error {
	c.mu.Lock()
	c.subs.Delete(fingerprint)
	c.mu.Unlock()

	return c.send(ctx, subscriptionFrame{Op: "unsubscribe", ScriptType: scriptTypeP2PKH, Payload: fingerprint})
}

func (c *pushConn) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return types.Sorted(c.subs)
}

func (c *pushConn) Messages() <-chan eventchannel.Message {
	return c.messages
}

func (c *pushConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	ws := c.ws
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()

	return ws.Close()
}

func (c *pushConn) current() (*websocket.Conn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ws, c.closed
}

// send writes frame to the socket that is current once writeMu is held, so a
// frame queued behind a reconnect lands on the new socket.
func (c *pushConn) send(ctx context.Context, frame subscriptionFrame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ws, closed := c.current()
	if closed {
		return ErrConnClosed
	}

	return writeFrame(ctx, ws, frame)
}

// writeFrame must be called with writeMu held.
func writeFrame(ctx context.Context, ws *websocket.Conn, frame subscriptionFrame) error {
	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = ws.SetWriteDeadline(deadline)

	if err := ws.WriteJSON(frame); err != nil {
		return fmt.Errorf("%s %s: %w", frame.Op, frame.Payload, err)
	}
	return nil
}

func (c *pushConn) readLoop(ctx context.Context) {
	defer close(c.messages)

	for {
		ws, closed := c.current()
		if closed {
			return
		}

		_, data, err := ws.ReadMessage()
		if err != nil {
			if _, closed := c.current(); closed {
				return
			}

			logger.Warn(ctx, "push connection dropped", "error", err)
			if !c.deliver(eventchannel.Message{Type: eventchannel.MessageDropped}) {
				return
			}

			if err := c.reconnect(ctx); err != nil {
				logger.Error(ctx, "push connection lost", "error", err)
				return
			}

			if !c.deliver(eventchannel.Message{Type: eventchannel.MessageReconnected}) {
				return
			}
			continue
		}

		var frame messageFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
			logger.Debug(ctx, "push frame ignored", "frame.size", len(data))
			continue
		}

		if !c.deliver(eventchannel.Message{Type: eventchannel.MessageType(frame.Type), TxID: frame.TxID}) {
			return
		}
	}
}

func (c *pushConn) deliver(msg eventchannel.Message) bool {
	select {
	case c.messages <- msg:
		return true
	case <-c.done:
		return false
	}
}

// reconnect redials and replays the subscription set on the new socket. The
// socket swap and the snapshot of subs happen together while writeMu is held,
// so every subscription recorded after the snapshot is written to the new
// socket by its own caller.
func (c *pushConn) reconnect(ctx context.Context) error {
	return c.transport.retry.Execute(ctx, func() error {
		if _, closed := c.current(); closed {
			return retry.Unrecoverable(ErrConnClosed)
		}

		ws, _, err := c.transport.dialer.DialContext(ctx, c.transport.url, nil)
		if err != nil {
			return err
		}

		c.writeMu.Lock()
		defer c.writeMu.Unlock()

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = ws.Close()
			return retry.Unrecoverable(ErrConnClosed)
		}
		dropped := c.ws
		c.ws = ws
		subs := types.Sorted(c.subs)
		c.mu.Unlock()

		_ = dropped.Close()

		for _, fingerprint := range subs {
			frame := subscriptionFrame{Op: "subscribe", ScriptType: scriptTypeP2PKH, Payload: fingerprint}
			if err := writeFrame(ctx, ws, frame); err != nil {
				_ = ws.Close()
				return err
			}
		}

		return nil
	})
}

type transportConfig struct {
	retry            retry.Retry
	handshakeTimeout time.Duration
}

type TransportOption func(*transportConfig)

// WithReconnectRetry sets the policy used to redial a dropped connection.
func WithReconnectRetry(r retry.Retry) TransportOption {
	return func(c *transportConfig) {
		c.retry = r
	}
}

func WithHandshakeTimeout(d time.Duration) TransportOption {
	return func(c *transportConfig) {
		c.handshakeTimeout = d
	}
}

// NewTransport returns a push transport dialing url, a ws:// or wss:// endpoint.
func NewTransport(url string, opts ...TransportOption) *transport {
	cfg := transportConfig{
		retry: retry.New(
			retry.WithAttempts(10),
			retry.WithDelay(500*time.Millisecond),
			retry.WithMaxDelay(30*time.Second),
			retry.WithOnRetry(func(n uint, err error) {
				logger.Warn(context.Background(), "push redial failed", "push.url", url, "attempt", n+1, "error", err)
			}),
		),
		handshakeTimeout: defaultHandshakeTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &transport{
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.handshakeTimeout},
		retry:  cfg.retry,
	}
}
