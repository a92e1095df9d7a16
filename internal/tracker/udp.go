package tracker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/wilberth/SledBalls/internal/monitoring"
	"github.com/wilberth/SledBalls/internal/timeutil"
)

// UDPClient listens for tracker datagrams, one sample per datagram.
type UDPClient struct {
	address string
	rcvBuf  int

	hist    *History
	dropped uint64

	mu     sync.Mutex
	conn   *net.UDPConn
	cancel context.CancelFunc
	done   chan struct{}
}

// UDPClientConfig configures a UDPClient.
type UDPClientConfig struct {
	Address string
	RcvBuf  int
	Clock   timeutil.Clock
}

// NewUDPClient returns a client that listens on config.Address once
// StartStream is called.
func NewUDPClient(config UDPClientConfig) *UDPClient {
	rcvBuf := config.RcvBuf
	if rcvBuf == 0 {
		rcvBuf = 1 << 16
	}
	return &UDPClient{
		address: config.Address,
		rcvBuf:  rcvBuf,
		hist:    NewHistory(config.Clock),
	}
}

// StartStream binds the socket and starts receiving in the background.
func (c *UDPClient) StartStream(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	addr, err := net.ResolveUDPAddr("udp", c.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	if err := conn.SetReadBuffer(c.rcvBuf); err != nil {
		monitoring.Opsf("tracker: failed to set UDP receive buffer to %d: %v", c.rcvBuf, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.conn = conn
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.receive(ctx, conn, c.done)

	monitoring.Diagf("tracker: listening for UDP samples on %s", conn.LocalAddr())
	return nil
}

// LocalAddr returns the bound address, or nil before StartStream.
func (c *UDPClient) LocalAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.LocalAddr()
}

func (c *UDPClient) receive(ctx context.Context, conn *net.UDPConn, done chan struct{}) {
	defer close(done)
	defer conn.Close()

	buffer := make([]byte, 2048)
	for {
		if ctx.Err() != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, from, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			monitoring.Opsf("tracker: UDP read error: %v", err)
			continue
		}

		s, err := ParseLine(strings.TrimSpace(string(buffer[:n])))
		if err != nil {
			c.mu.Lock()
			c.dropped++
			c.mu.Unlock()
			monitoring.Diagf("tracker: dropping datagram from %v: %v", from, err)
			continue
		}
		c.hist.Publish(s)
		monitoring.Tracef("tracker: t=%.4f markers=%d", s.Time, len(s.Markers))
	}
}

// StopStream stops receiving and waits for the receiver to exit.
func (c *UDPClient) StopStream() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.conn, c.cancel, c.done = nil, nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Time returns the current tracker time estimate.
func (c *UDPClient) Time() float64 { return c.hist.Time() }

// GetPosition returns the marker positions extrapolated to tracker time t.
func (c *UDPClient) GetPosition(t float64) ([]r3.Vec, bool) {
	return c.hist.Position(t)
}

// Stats returns the number of accepted and rejected datagrams.
func (c *UDPClient) Stats() (received, dropped uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hist.Count(), c.dropped
}
