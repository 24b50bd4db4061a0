// Package ami maintains the single authenticated session to the PBX manager
// interface. One Client per process: it serializes outbound actions over the
// shared socket, correlates responses by ActionID, and dispatches unsolicited
// events in arrival order to registered handlers.
package ami

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	dialTimeout       = 5 * time.Second
	actionTimeout     = 5 * time.Second
	reconnectMin      = 1 * time.Second
	reconnectMax      = 30 * time.Second
	authFailureDelay  = 60 * time.Second
	keepaliveInterval = 30 * time.Second
	// staleAfter bounds the silence window: keepalive pings every 30s mean a
	// healthy session never goes 90s without traffic.
	staleAfter = 90 * time.Second
)

var (
	// ErrNotConnected is returned by Send while the session is down.
	ErrNotConnected = errors.New("ami: not connected")
	// ErrConnectionLost fails actions that were pending when the session dropped.
	ErrConnectionLost = errors.New("ami: connection lost")
	// ErrActionTimeout is returned when no response arrives within the bounded wait.
	ErrActionTimeout = errors.New("ami: action timeout")

	errAuthRejected = errors.New("ami: authentication rejected")
)

// EventHandler receives unsolicited event frames. Handlers run on the single
// read-dispatch path and must not block; slow work belongs in a goroutine.
type EventHandler func(Frame)

type pendingResult struct {
	frame Frame
	err   error
}

// Client owns the process-wide manager session. Construct with NewClient,
// call Start once, Stop on shutdown.
type Client struct {
	addr     string
	username string
	secret   string
	log      *slog.Logger

	// dial is swappable so tests can drive the client over net.Pipe.
	dial func(ctx context.Context, addr string) (net.Conn, error)

	mu   sync.Mutex // guards conn
	conn net.Conn

	connected atomic.Bool

	writeMu sync.Mutex // serializes frame writes to the socket

	pendingMu sync.Mutex
	pending   map[string]chan pendingResult

	handlerMu sync.RWMutex
	handlers  []EventHandler

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewClient(addr, username, secret string, log *slog.Logger) *Client {
	return &Client{
		addr:     addr,
		username: username,
		secret:   secret,
		log:      log,
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			d := net.Dialer{Timeout: dialTimeout}
			return d.DialContext(ctx, "tcp", addr)
		},
		pending: make(map[string]chan pendingResult),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// OnEvent registers a handler for unsolicited events. Register before Start;
// events are dispatched in arrival order, one at a time.
func (c *Client) OnEvent(h EventHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handlers = append(c.handlers, h)
}

// Connected reports whether the session is up and authenticated.
func (c *Client) Connected() bool { return c.connected.Load() }

// Start runs the connect/reconnect loop until Stop is called or ctx ends.
func (c *Client) Start(ctx context.Context) {
	go c.run(ctx)
}

// Stop tears the session down and stops reconnecting.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.closeConn()
	})
	<-c.done
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		default:
		}

		conn, err := c.dial(ctx, c.addr)
		if err != nil {
			c.log.Warn("pbx dial failed", "addr", c.addr, "error", err)
			if !c.sleep(ctx, backoffDelay(attempt)) {
				return
			}
			attempt++
			continue
		}

		reader := bufio.NewReader(conn)
		if err := c.login(conn, reader); err != nil {
			conn.Close()
			if errors.Is(err, errAuthRejected) {
				// Bad credentials are a configuration failure, not a
				// transient. Back off long instead of hammering the PBX.
				c.log.Error("pbx authentication rejected", "username", c.username)
				if !c.sleep(ctx, authFailureDelay) {
					return
				}
			} else {
				c.log.Warn("pbx login failed", "error", err)
				if !c.sleep(ctx, backoffDelay(attempt)) {
					return
				}
				attempt++
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			c.closeConn()
			return
		case <-c.stop:
			c.closeConn()
			return
		default:
		}

		c.connected.Store(true)
		attempt = 0
		c.log.Info("pbx session established", "addr", c.addr)

		stopKeepalive := make(chan struct{})
		go c.keepalive(stopKeepalive)

		err = c.readLoop(conn, reader)
		close(stopKeepalive)

		c.connected.Store(false)
		c.closeConn()
		c.failPending(ErrConnectionLost)

		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		default:
		}

		c.log.Warn("pbx session lost", "error", err)
		if !c.sleep(ctx, backoffDelay(attempt)) {
			return
		}
		attempt++
	}
}

// login sends the Login action and reads frames until its response arrives.
// Runs before the read loop owns the connection, so it reads inline.
func (c *Client) login(conn net.Conn, reader *bufio.Reader) error {
	id := uuid.NewString()
	params := map[string]string{
		"Username": c.username,
		"Secret":   c.secret,
		"Events":   "on",
	}
	conn.SetDeadline(time.Now().Add(actionTimeout))
	defer conn.SetDeadline(time.Time{})

	if err := writeAction(conn, "Login", id, params); err != nil {
		return fmt.Errorf("send login: %w", err)
	}
	for {
		frame, err := readFrame(reader)
		if err != nil {
			return fmt.Errorf("read login response: %w", err)
		}
		if frame.ActionID() != id {
			continue
		}
		if !frame.Success() {
			return errAuthRejected
		}
		return nil
	}
}

func (c *Client) readLoop(conn net.Conn, reader *bufio.Reader) error {
	for {
		conn.SetReadDeadline(time.Now().Add(staleAfter))
		frame, err := readFrame(reader)
		if err != nil {
			return err
		}

		if id := frame.ActionID(); id != "" && c.resolvePending(id, frame) {
			continue
		}
		if frame.Event() != "" {
			c.dispatch(frame)
		}
		// Response frames for already-timed-out actions fall through here
		// and are dropped.
	}
}

func (c *Client) dispatch(frame Frame) {
	c.handlerMu.RLock()
	handlers := c.handlers
	c.handlerMu.RUnlock()
	for _, h := range handlers {
		h(frame)
	}
}

func (c *Client) keepalive(stop chan struct{}) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := c.Send("Ping", nil); err != nil {
				return
			}
		}
	}
}

// Send writes an action frame and waits for its correlated response. Safe for
// concurrent use: each call gets its own ActionID and pending entry; only the
// socket write itself is serialized.
func (c *Client) Send(action string, params map[string]string) (Frame, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || !c.connected.Load() {
		return nil, ErrNotConnected
	}

	id := uuid.NewString()
	ch := make(chan pendingResult, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	err := writeAction(conn, action, id, params)
	c.writeMu.Unlock()
	if err != nil {
		c.unregisterPending(id)
		return nil, fmt.Errorf("ami: write %s: %w", action, err)
	}

	timer := time.NewTimer(actionTimeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res.frame, res.err
	case <-timer.C:
		c.unregisterPending(id)
		return nil, fmt.Errorf("%w: %s", ErrActionTimeout, action)
	}
}

func (c *Client) resolvePending(id string, frame Frame) bool {
	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
	if ok {
		ch <- pendingResult{frame: frame}
	}
	return ok
}

func (c *Client) unregisterPending(id string) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// failPending fails every outstanding action. Nothing is queued across a
// disconnect; callers re-issue.
func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	for id, ch := range c.pending {
		ch <- pendingResult{err: err}
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

func (c *Client) closeConn() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-c.stop:
		return false
	case <-timer.C:
		return true
	}
}

// backoffDelay doubles from reconnectMin up to reconnectMax with ±25% jitter
// so a restarted fleet does not reconnect in lockstep.
func backoffDelay(attempt int) time.Duration {
	d := reconnectMin
	for i := 0; i < attempt && d < reconnectMax; i++ {
		d *= 2
	}
	if d > reconnectMax {
		d = reconnectMax
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 2))
	return d*3/4 + jitter
}
