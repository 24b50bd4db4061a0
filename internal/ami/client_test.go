package ami

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient wires the client's dialer to net.Pipe so tests can script the
// PBX side of the session.
func newTestClient(t *testing.T) (*Client, chan net.Conn) {
	t.Helper()

	conns := make(chan net.Conn, 4)
	c := NewClient("test:5038", "admin", "secret", testLogger())
	c.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		client, server := net.Pipe()
		conns <- server
		return client, nil
	}
	return c, conns
}

func acceptConn(t *testing.T, conns chan net.Conn) net.Conn {
	t.Helper()
	select {
	case conn := <-conns:
		return conn
	case <-time.After(3 * time.Second):
		t.Fatal("client did not dial")
		return nil
	}
}

// acceptAndLogin accepts a connection, verifies the Login action and accepts it.
func acceptAndLogin(t *testing.T, conns chan net.Conn) (net.Conn, *bufio.Reader) {
	t.Helper()

	conn := acceptConn(t, conns)
	r := bufio.NewReader(conn)
	frame, err := readFrame(r)
	if err != nil {
		t.Fatalf("read login: %v", err)
	}
	if frame.Get("Action") != "Login" {
		t.Fatalf("expected Login action, got %v", frame)
	}
	if frame.Get("Username") != "admin" || frame.Get("Secret") != "secret" {
		t.Fatalf("unexpected credentials in %v", frame)
	}
	writeResponse(t, conn, frame.ActionID(), "Success", nil)
	return conn, r
}

func writeResponse(t *testing.T, conn net.Conn, actionID, response string, extra map[string]string) {
	t.Helper()
	msg := fmt.Sprintf("Response: %s\r\nActionID: %s\r\n", response, actionID)
	for k, v := range extra {
		msg += fmt.Sprintf("%s: %s\r\n", k, v)
	}
	msg += "\r\n"
	if _, err := io.WriteString(conn, msg); err != nil {
		t.Fatalf("write response: %v", err)
	}
}

func writeEvent(t *testing.T, conn net.Conn, event string, fields map[string]string) {
	t.Helper()
	msg := fmt.Sprintf("Event: %s\r\n", event)
	for k, v := range fields {
		msg += fmt.Sprintf("%s: %s\r\n", k, v)
	}
	msg += "\r\n"
	if _, err := io.WriteString(conn, msg); err != nil {
		t.Fatalf("write event: %v", err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestClientConnectsAndAuthenticates(t *testing.T) {
	c, conns := newTestClient(t)
	c.Start(context.Background())
	defer c.Stop()

	if c.Connected() {
		t.Fatal("connected before login completed")
	}

	conn, _ := acceptAndLogin(t, conns)
	defer conn.Close()

	waitFor(t, 2*time.Second, c.Connected)
}

func TestClientSendNotConnected(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.Send("Ping", nil)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestClientCorrelatesOutOfOrderResponses(t *testing.T) {
	c, conns := newTestClient(t)
	c.Start(context.Background())
	defer c.Stop()

	conn, r := acceptAndLogin(t, conns)
	defer conn.Close()
	waitFor(t, 2*time.Second, c.Connected)

	type result struct {
		tag   string
		frame Frame
		err   error
	}
	results := make(chan result, 2)
	for _, tag := range []string{"1", "2"} {
		tag := tag
		go func() {
			frame, err := c.Send("Probe", map[string]string{"Tag": tag})
			results <- result{tag: tag, frame: frame, err: err}
		}()
	}

	// Read both action frames, then answer them in reverse arrival order.
	var frames []Frame
	for len(frames) < 2 {
		frame, err := readFrame(r)
		if err != nil {
			t.Fatalf("read action: %v", err)
		}
		frames = append(frames, frame)
	}
	for i := len(frames) - 1; i >= 0; i-- {
		writeResponse(t, conn, frames[i].ActionID(), "Success", map[string]string{
			"Tag": frames[i].Get("Tag"),
		})
	}

	for i := 0; i < 2; i++ {
		res := <-results
		if res.err != nil {
			t.Fatalf("send %s: %v", res.tag, res.err)
		}
		if got := res.frame.Get("Tag"); got != res.tag {
			t.Errorf("caller %s received response tagged %s", res.tag, got)
		}
	}
}

func TestClientFailsPendingOnDisconnect(t *testing.T) {
	c, conns := newTestClient(t)
	c.Start(context.Background())
	defer c.Stop()

	conn, r := acceptAndLogin(t, conns)
	waitFor(t, 2*time.Second, c.Connected)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Send("Probe", nil)
		errCh <- err
	}()

	// Swallow the action frame, then drop the connection without answering.
	if _, err := readFrame(r); err != nil {
		t.Fatalf("read action: %v", err)
	}
	conn.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrConnectionLost) {
			t.Fatalf("expected ErrConnectionLost, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending action not failed on disconnect")
	}

	if c.Connected() {
		t.Fatal("still connected after transport loss")
	}
}

func TestClientReconnectsAfterDisconnect(t *testing.T) {
	c, conns := newTestClient(t)
	c.Start(context.Background())
	defer c.Stop()

	conn, _ := acceptAndLogin(t, conns)
	waitFor(t, 2*time.Second, c.Connected)

	conn.Close()
	waitFor(t, 2*time.Second, func() bool { return !c.Connected() })

	// The client comes back within the bounded backoff window on its own.
	conn2, _ := acceptAndLogin(t, conns)
	defer conn2.Close()
	waitFor(t, 3*time.Second, c.Connected)
}

func TestClientAuthRejectedStaysDisconnected(t *testing.T) {
	c, conns := newTestClient(t)
	c.Start(context.Background())
	defer c.Stop()

	conn := acceptConn(t, conns)
	defer conn.Close()
	r := bufio.NewReader(conn)
	frame, err := readFrame(r)
	if err != nil {
		t.Fatalf("read login: %v", err)
	}
	writeResponse(t, conn, frame.ActionID(), "Error", map[string]string{
		"Message": "Authentication failed",
	})

	time.Sleep(200 * time.Millisecond)
	if c.Connected() {
		t.Fatal("connected despite rejected credentials")
	}
}

func TestClientDispatchesEventsInOrder(t *testing.T) {
	c, conns := newTestClient(t)

	var (
		mu   sync.Mutex
		seen []string
	)
	c.OnEvent(func(f Frame) {
		mu.Lock()
		seen = append(seen, f.Get("Uniqueid"))
		mu.Unlock()
	})

	c.Start(context.Background())
	defer c.Stop()

	conn, _ := acceptAndLogin(t, conns)
	defer conn.Close()
	waitFor(t, 2*time.Second, c.Connected)

	for i := 0; i < 5; i++ {
		writeEvent(t, conn, "Newchannel", map[string]string{
			"Uniqueid": fmt.Sprintf("id-%d", i),
		})
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 5
	})

	mu.Lock()
	defer mu.Unlock()
	for i, id := range seen {
		if want := fmt.Sprintf("id-%d", i); id != want {
			t.Errorf("event %d: got %s, want %s", i, id, want)
		}
	}
}
