package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/wilberth/SledBalls/internal/monitoring"
	"github.com/wilberth/SledBalls/internal/timeutil"
)

// Message is the JSON frame sent by a websocket tracker server.
type Message struct {
	T       float64      `json:"t"`
	Markers [][3]float64 `json:"markers"`
}

// Sample converts the message.
func (m Message) Sample() *Sample {
	s := &Sample{Time: m.T, Markers: make([]r3.Vec, len(m.Markers))}
	for i, p := range m.Markers {
		s.Markers[i] = r3.Vec{X: p[0], Y: p[1], Z: p[2]}
	}
	return s
}

// WSClient reads tracker samples from a websocket server.
type WSClient struct {
	url    string
	dialer websocket.Dialer
	hist   *History

	mu   sync.Mutex
	ws   *websocket.Conn
	done chan struct{}
}

// NewWSClient returns a client for the ws:// or wss:// url.
func NewWSClient(url string, clock timeutil.Clock) *WSClient {
	return &WSClient{
		url: url,
		dialer: websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
		},
		hist: NewHistory(clock),
	}
}

// StartStream connects and starts reading in the background.
func (c *WSClient) StartStream(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws != nil {
		return nil
	}

	ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to tracker %s: %w", c.url, err)
	}
	c.ws = ws
	c.done = make(chan struct{})
	go c.handleMessages(ws, c.done)

	monitoring.Diagf("tracker: connected to %s", c.url)
	return nil
}

func (c *WSClient) handleMessages(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				monitoring.Opsf("tracker: websocket read error: %v", err)
			}
			return
		}
		if len(msg.Markers) == 0 {
			continue
		}
		c.hist.Publish(msg.Sample())
	}
}

// StopStream closes the connection and waits for the reader to exit.
func (c *WSClient) StopStream() {
	c.mu.Lock()
	ws, done := c.ws, c.done
	c.ws, c.done = nil, nil
	c.mu.Unlock()

	if ws == nil {
		return
	}
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	ws.Close()
	<-done
}

// Time returns the current tracker time estimate.
func (c *WSClient) Time() float64 { return c.hist.Time() }

// GetPosition returns the marker positions extrapolated to tracker time t.
func (c *WSClient) GetPosition(t float64) ([]r3.Vec, bool) {
	return c.hist.Position(t)
}

// Received returns the number of samples accepted so far.
func (c *WSClient) Received() uint64 { return c.hist.Count() }
