package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/papapumpkin/scriptorium/internal/event"
)

// Ack is a relay's reply to one EVENT message.
type Ack struct {
	Accepted bool
	Message  string
	// Notices holds NOTICE frames received while waiting for the reply.
	Notices []string
}

// Transport delivers one signed event to one relay. Any error is treated as
// a failed send and retried by the broadcaster.
type Transport interface {
	Send(ctx context.Context, e event.Event, url string) (Ack, error)
}

var _ Transport = (*WebsocketTransport)(nil)

// DefaultPoolSize is the number of relay connections kept open.
const DefaultPoolSize = 16

// WebsocketTransport speaks NIP-01 over websockets. Connections are pooled
// per relay URL so one publication's records share a connection; the least
// recently used connection is closed when the pool is full.
type WebsocketTransport struct {
	dialer *websocket.Dialer
	logger *zap.Logger

	mu     sync.Mutex
	pool   *lru.Cache[string, *relayConn]
	closed bool
}

// relayConn serializes request/reply exchanges on one websocket.
type relayConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

// NewWebsocketTransport returns a transport keeping up to poolSize relay
// connections open. A nil logger disables logging.
func NewWebsocketTransport(poolSize int, logger *zap.Logger) (*WebsocketTransport, error) {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := lru.NewWithEvict(poolSize, func(url string, c *relayConn) {
		logger.Debug("closing relay connection", zap.String("relay", url))
		_ = c.ws.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("relay: connection pool: %w", err)
	}
	return &WebsocketTransport{
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: logger,
		pool:   pool,
	}, nil
}

// Send writes ["EVENT", e] and waits for the matching ["OK", id, ok, msg].
// NOTICE frames are collected; other frames are ignored. The wait is bounded
// by ctx.
func (t *WebsocketTransport) Send(ctx context.Context, e event.Event, url string) (Ack, error) {
	c, err := t.conn(ctx, url)
	if err != nil {
		return Ack{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.ws.SetWriteDeadline(deadline)
		_ = c.ws.SetReadDeadline(deadline)
	} else {
		_ = c.ws.SetWriteDeadline(time.Time{})
		_ = c.ws.SetReadDeadline(time.Time{})
	}
	// Unblock reads and writes when ctx is cancelled before a deadline.
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
		_ = c.ws.SetWriteDeadline(time.Now())
	})
	defer stop()

	ack, err := exchange(c.ws, e)
	if err != nil {
		t.drop(url, c)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ack, ctxErr
		}
		return ack, err
	}
	return ack, nil
}

func exchange(ws *websocket.Conn, e event.Event) (Ack, error) {
	wire, err := e.Wire()
	if err != nil {
		return Ack{}, err
	}
	msg := make([]byte, 0, len(wire)+10)
	msg = append(msg, `["EVENT",`...)
	msg = append(msg, wire...)
	msg = append(msg, ']')
	if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
		return Ack{}, fmt.Errorf("relay: write event: %w", err)
	}
	var ack Ack
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return ack, fmt.Errorf("relay: read: %w", err)
		}
		var frame []json.RawMessage
		if err := json.Unmarshal(data, &frame); err != nil || len(frame) == 0 {
			return ack, fmt.Errorf("%w: %.80s", ErrMalformedResponse, data)
		}
		var label string
		if err := json.Unmarshal(frame[0], &label); err != nil {
			return ack, fmt.Errorf("%w: label: %.80s", ErrMalformedResponse, data)
		}
		switch label {
		case "OK":
			id, accepted, msg, err := parseOK(frame)
			if err != nil {
				return ack, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
			}
			if id != e.ID {
				continue
			}
			ack.Accepted, ack.Message = accepted, msg
			return ack, nil
		case "NOTICE":
			var notice string
			if len(frame) > 1 && json.Unmarshal(frame[1], &notice) == nil {
				ack.Notices = append(ack.Notices, notice)
			}
		}
	}
}

func parseOK(frame []json.RawMessage) (string, bool, string, error) {
	if len(frame) < 3 {
		return "", false, "", errors.New("OK frame too short")
	}
	var (
		id       string
		accepted bool
		msg      string
	)
	if err := json.Unmarshal(frame[1], &id); err != nil {
		return "", false, "", fmt.Errorf("OK id: %w", err)
	}
	if err := json.Unmarshal(frame[2], &accepted); err != nil {
		return "", false, "", fmt.Errorf("OK flag: %w", err)
	}
	if len(frame) > 3 {
		if err := json.Unmarshal(frame[3], &msg); err != nil {
			return "", false, "", fmt.Errorf("OK message: %w", err)
		}
	}
	return id, accepted, msg, nil
}

// conn returns the pooled connection for url, dialing a new one if needed.
func (t *WebsocketTransport) conn(ctx context.Context, url string) (*relayConn, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	if c, ok := t.pool.Get(url); ok {
		t.mu.Unlock()
		return c, nil
	}
	t.mu.Unlock()

	ws, resp, err := t.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("relay: dial %s: %w", url, err)
	}
	t.logger.Debug("relay connected", zap.String("relay", url))

	c := &relayConn{ws: ws}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		_ = ws.Close()
		return nil, ErrClosed
	}
	if existing, ok := t.pool.Get(url); ok {
		_ = ws.Close()
		return existing, nil
	}
	t.pool.Add(url, c)
	return c, nil
}

// drop removes c from the pool if it is still the pooled connection for url.
// Removal closes it.
func (t *WebsocketTransport) drop(url string, c *relayConn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pooled, ok := t.pool.Peek(url); ok && pooled == c {
		t.pool.Remove(url)
		return
	}
	_ = c.ws.Close()
}

// Close closes every pooled connection. Later sends fail with ErrClosed.
func (t *WebsocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.pool.Purge()
	return nil
}
