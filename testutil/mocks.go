// Package testutil holds fakes shared by package tests: a recording
// connection, a manual clock and a Postgres test database helper.
package testutil

import (
	"errors"
	"sync"
	"time"
)

// ErrSendRejected is returned by FakeConn.Send while FailSends is set.
var ErrSendRejected = errors.New("send rejected")

// FakeConn records sent lines and lets tests push received text.
type FakeConn struct {
	mu        sync.Mutex
	sent      []string
	in        chan string
	err       error
	closed    bool
	FailSends bool
}

// NewFakeConn returns a connection with a buffered incoming channel.
func NewFakeConn() *FakeConn {
	return &FakeConn{in: make(chan string, 64)}
}

// Send records line, or fails when FailSends is set.
func (c *FakeConn) Send(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailSends {
		return ErrSendRejected
	}
	c.sent = append(c.sent, line)
	return nil
}

// Incoming returns the channel Push writes to.
func (c *FakeConn) Incoming() <-chan string { return c.in }

// Err returns the error passed to CloseWith.
func (c *FakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Push delivers raw received text.
func (c *FakeConn) Push(raw string) { c.in <- raw }

// CloseWith closes the incoming channel, reporting err from Err.
func (c *FakeConn) CloseWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.err = err
	close(c.in)
}

// Sent returns a copy of every recorded line.
func (c *FakeConn) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// Last returns the most recent line, or "" when nothing was sent.
func (c *FakeConn) Last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return ""
	}
	return c.sent[len(c.sent)-1]
}

// Reset forgets recorded lines.
func (c *FakeConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}

// WaitForSent polls until at least n lines were sent or timeout passes.
func (c *FakeConn) WaitForSent(n int, timeout time.Duration) []string {
	deadline := time.Now().Add(timeout)
	for {
		sent := c.Sent()
		if len(sent) >= n || time.Now().After(deadline) {
			return sent
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock set to start.
func NewClock(start time.Time) *Clock { return &Clock{now: start} }

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
