package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/greeter/telemetry"
)

var (
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("chat: connection closed")
	// ErrServerClosed is reported by Err when the server ended the stream.
	ErrServerClosed = errors.New("chat: server closed the connection")
)

// Conn is a line-oriented IRC connection over TCP.
type Conn struct {
	conn    net.Conn
	in      chan string
	done    chan struct{}
	timeout time.Duration

	wmu sync.Mutex

	mu     sync.Mutex
	err    error
	closed bool
}

// DefaultWriteTimeout bounds a single Send.
const DefaultWriteTimeout = 10 * time.Second

// maxLineLength is the longest received line kept; IRC caps lines at 512
// bytes, IRCv3 tags may add up to 8191 more.
const maxLineLength = 8192 + 512

// Dial connects to addr ("host:port") and starts reading.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	slog.Info("irc connected", slog.String("addr", addr), slog.String("component", "chat"))
	return NewConn(nc), nil
}

// NewConn wraps an established connection and starts its reader goroutine.
func NewConn(nc net.Conn) *Conn {
	c := &Conn{conn: nc, in: make(chan string, 64), done: make(chan struct{}), timeout: DefaultWriteTimeout}
	telemetry.SetConnected(true)
	go c.read()
	return c
}

func (c *Conn) read() {
	defer close(c.in)
	defer telemetry.SetConnected(false)
	sc := bufio.NewScanner(c.conn)
	sc.Buffer(make([]byte, 0, 4096), maxLineLength)
	for sc.Scan() {
		select {
		case c.in <- sc.Text() + "\n":
		case <-c.done:
			return
		}
	}
	err := ErrServerClosed
	if serr := sc.Err(); serr != nil {
		err = fmt.Errorf("read: %w", serr)
	}
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

// Send writes line followed by CRLF. Embedded line breaks are stripped so one
// call can never inject a second command.
func (c *Conn) Send(line string) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	line = strings.NewReplacer("\r", "", "\n", "").Replace(line)

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	if _, err := c.conn.Write([]byte(line + "\r\n")); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	slog.Debug("irc send", slog.String("line", line), slog.String("component", "chat"))
	return nil
}

// Incoming delivers received lines. It is closed once the connection ends.
func (c *Conn) Incoming() <-chan string { return c.in }

// Err reports why Incoming was closed.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Connected reports whether the connection is still open.
func (c *Conn) Connected() bool { return c.Err() == nil }

// Close ends the connection. The reader goroutine drains and exits.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.err == nil {
		c.err = ErrClosed
	}
	c.mu.Unlock()
	close(c.done)
	return c.conn.Close()
}
