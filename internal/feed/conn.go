// Package feed holds the websocket connection that streams chat notifications
// to the console. Frames are opaque text.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Handler receives connection events. Calls are made from the Run goroutine.
type Handler interface {
	OnOpen()
	OnFrame(data string)
	OnClose()
	OnError(err error)
}

type Option func(*Conn)

func WithReconnect(policy ReconnectPolicy) Option {
	return func(c *Conn) { c.policy = policy }
}

func WithHeader(header http.Header) Option {
	return func(c *Conn) { c.header = header }
}

func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Conn) { c.dialer = dialer }
}

func WithStateHook(hook func(State)) Option {
	return func(c *Conn) { c.stateHook = hook }
}

const closeWait = time.Second

// Conn is a single long-lived websocket connection.
type Conn struct {
	url       string
	header    http.Header
	dialer    *websocket.Dialer
	policy    ReconnectPolicy
	handler   Handler
	stateHook func(State)

	mu      sync.Mutex
	ws      *websocket.Conn
	state   State
	stopped bool
}

func New(url string, handler Handler, opts ...Option) *Conn {
	c := &Conn{
		url:     url,
		dialer:  websocket.DefaultDialer,
		handler: handler,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Conn) URL() string { return c.url }

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	hook := c.stateHook
	c.mu.Unlock()
	if hook != nil {
		hook(s)
	}
}

// Run dials and reads frames until the context ends, Close is called, or the
// connection drops and the reconnect policy gives up.
func (c *Conn) Run(ctx context.Context) error {
	attempt := 0
	for {
		opened, err := c.session(ctx)
		if c.isStopped() || ctx.Err() != nil {
			return nil
		}
		if opened {
			attempt = 0
		}
		attempt++
		if !c.policy.ShouldRetry(attempt) {
			return err
		}

		delay := c.policy.NextDelay(attempt)
		slog.Info("feed reconnecting", "url", c.url, "attempt", attempt, "delay", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// session runs one connection. opened reports whether the dial succeeded.
func (c *Conn) session(ctx context.Context) (opened bool, err error) {
	c.setState(StateConnecting)
	ws, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		if ctx.Err() != nil {
			c.setState(StateClosed)
			return false, nil
		}
		c.setState(StateFailed)
		c.handler.OnError(err)
		c.handler.OnClose()
		return false, err
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		_ = ws.Close()
		c.setState(StateClosed)
		return true, nil
	}
	c.ws = ws
	c.mu.Unlock()

	c.setState(StateOpen)
	c.handler.OnOpen()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.closeSocket(ws)
		case <-done:
		}
	}()

	for {
		_, data, readErr := ws.ReadMessage()
		if readErr != nil {
			c.mu.Lock()
			c.ws = nil
			c.mu.Unlock()
			_ = ws.Close()

			var closeErr *websocket.CloseError
			clean := errors.As(readErr, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure
			if c.isStopped() || ctx.Err() != nil || clean {
				c.setState(StateClosed)
				c.handler.OnClose()
				return true, readErr
			}
			c.setState(StateFailed)
			c.handler.OnError(readErr)
			c.handler.OnClose()
			return true, readErr
		}
		c.handler.OnFrame(string(data))
	}
}

// Close sends a normal closure frame and stops Run. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.stopped = true
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return nil
	}
	c.closeSocket(ws)
	return nil
}

func (c *Conn) closeSocket(ws *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
	_ = ws.Close()
}

func (c *Conn) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}
