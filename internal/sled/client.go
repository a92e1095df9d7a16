package sled

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/wilberth/SledBalls/internal/monitoring"
	"github.com/wilberth/SledBalls/internal/timeutil"
	"github.com/wilberth/SledBalls/internal/tracker"
)

// Client talks to a sled server over a newline-delimited TCP protocol.
// Commands are sent as text lines. While streaming, the server sends
// position lines "<time> <x> <y> <z>".
type Client struct {
	hist *tracker.History

	mu     sync.Mutex
	conn   net.Conn
	done   chan struct{}
	stream bool
}

// NewClient returns an unconnected client.
func NewClient(clock timeutil.Clock) *Client {
	return &Client{hist: tracker.NewHistory(clock)}
}

// Connect dials the sled server at address and starts reading its replies.
func (c *Client) Connect(ctx context.Context, address string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("connecting to sled server %s: %w", address, err)
	}

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.receive(conn, done)
	monitoring.Diagf("sled: connected to %s", address)
	return nil
}

func (c *Client) receive(conn net.Conn, done chan struct{}) {
	defer close(done)
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Text()
		s, err := tracker.ParseLine(line)
		if errors.Is(err, tracker.ErrNoSample) {
			continue
		}
		if err != nil {
			monitoring.Diagf("sled: ignoring line %q: %v", line, err)
			continue
		}
		c.hist.Publish(s)
	}
	if err := sc.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		monitoring.Opsf("sled: connection lost: %v", err)
	}
}

// SendCommand sends one command line.
func (c *Client) SendCommand(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := fmt.Fprintf(c.conn, "%s\n", text); err != nil {
		return fmt.Errorf("sending %q to sled: %w", text, err)
	}
	monitoring.Diagf("sled: sent %q", text)
	return nil
}

// StartStream asks the server to stream positions.
func (c *Client) StartStream(ctx context.Context) error {
	if err := c.SendCommand("Stream Start"); err != nil {
		return err
	}
	c.mu.Lock()
	c.stream = true
	c.mu.Unlock()
	return nil
}

// StopStream asks the server to stop streaming.
func (c *Client) StopStream() {
	c.mu.Lock()
	streaming := c.stream
	c.stream = false
	c.mu.Unlock()
	if !streaming {
		return
	}
	if err := c.SendCommand("Stream Stop"); err != nil {
		monitoring.Diagf("sled: %v", err)
	}
}

// Goto moves the sled to position.
func (c *Client) Goto(position float64) error {
	return c.SendCommand(GotoCommand(position, MoveTime))
}

// Close stops streaming and closes the connection.
func (c *Client) Close() error {
	c.StopStream()
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn, c.done = nil, nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close()
	<-done
	return err
}

// Time returns the current sled time estimate.
func (c *Client) Time() float64 { return c.hist.Time() }

// GetPosition returns the sled position extrapolated to sled time t.
func (c *Client) GetPosition(t float64) ([]r3.Vec, bool) {
	return c.hist.Position(t)
}
