// Package buttonbox drives the serial response box: four buttons the subject
// presses and eight LED outputs, two of which gate the shutter glasses.
package buttonbox

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"tailscale.com/tsweb"

	"github.com/wilberth/SledBalls/internal/httputil"
	"github.com/wilberth/SledBalls/internal/monitoring"
)

var ErrWriteFailed = errors.New("failed to write to button box")

// Button is a physical button, numbered from 1 on the box.
type Button int

const (
	Confirm    Button = 1
	ScrollDown Button = 2
	ScrollUp   Button = 3
	StartStop  Button = 4
)

func (b Button) String() string {
	switch b {
	case Confirm:
		return "confirm"
	case ScrollDown:
		return "scroll-down"
	case ScrollUp:
		return "scroll-up"
	case StartStop:
		return "start-stop"
	default:
		return "button-" + strconv.Itoa(int(b))
	}
}

// ParseButton parses a "B<n>" line sent by the box.
func ParseButton(line string) (Button, error) {
	line = strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(line, "B")
	if !ok {
		return 0, fmt.Errorf("not a button line: %q", line)
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < int(Confirm) || n > int(StartStop) {
		return 0, fmt.Errorf("invalid button in %q", line)
	}
	return Button(n), nil
}

// LedCommand formats an LED pattern as "L" followed by one 0/1 per LED.
func LedCommand(leds [8]bool) string {
	var b strings.Builder
	b.WriteByte('L')
	for _, on := range leds {
		if on {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// ParseLeds parses an 8 character 0/1 pattern, with or without the leading L.
func ParseLeds(s string) ([8]bool, error) {
	var leds [8]bool
	s = strings.TrimPrefix(strings.TrimSpace(s), "L")
	if len(s) != len(leds) {
		return leds, fmt.Errorf("LED pattern %q must have %d digits", s, len(leds))
	}
	for i, c := range s {
		switch c {
		case '0':
		case '1':
			leds[i] = true
		default:
			return leds, fmt.Errorf("LED pattern %q may only contain 0 and 1", s)
		}
	}
	return leds, nil
}

// Box is what the trial controller needs from a button box.
type Box interface {
	// SetLeds switches the LEDs. Unchanged patterns are not resent.
	SetLeds([8]bool) error
	// Buttons delivers button presses. Presses are dropped while the
	// channel is full.
	Buttons() <-chan Button
	// Monitor reads from the device until ctx is done or the device fails.
	Monitor(context.Context) error
	Close() error
	// AttachAdminRoutes attaches debugging endpoints served at /debug/.
	AttachAdminRoutes(*http.ServeMux)
}

// Device is a button box on a serial port.
type Device[T SerialPorter] struct {
	port    T
	buttons chan Button

	commandMu sync.Mutex
	leds      [8]bool
	ledsSent  bool

	closingMu sync.Mutex
	closing   bool
}

// NewDevice returns a Device talking over port.
func NewDevice[T SerialPorter](port T) *Device[T] {
	return &Device[T]{
		port:    port,
		buttons: make(chan Button, 16),
	}
}

// SendCommand writes one command line to the box.
func (d *Device[T]) SendCommand(command string) error {
	d.commandMu.Lock()
	defer d.commandMu.Unlock()
	return d.send(command)
}

func (d *Device[T]) send(command string) error {
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := d.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// SetLeds implements Box.
func (d *Device[T]) SetLeds(leds [8]bool) error {
	d.commandMu.Lock()
	defer d.commandMu.Unlock()
	if d.ledsSent && leds == d.leds {
		return nil
	}
	if err := d.send(LedCommand(leds)); err != nil {
		return fmt.Errorf("setting LEDs: %w", err)
	}
	d.leds, d.ledsSent = leds, true
	return nil
}

// Leds returns the last pattern sent.
func (d *Device[T]) Leds() [8]bool {
	d.commandMu.Lock()
	defer d.commandMu.Unlock()
	return d.leds
}

// Buttons implements Box.
func (d *Device[T]) Buttons() <-chan Button { return d.buttons }

// Monitor implements Box.
func (d *Device[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(d.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking Scan runs on its own goroutine so that cancellation is
	// noticed without waiting for the next line.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			if d.isClosing() {
				return nil
			}
			return err

		case line, ok := <-lineChan:
			if !ok || d.isClosing() {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			b, err := ParseButton(line)
			if err != nil {
				monitoring.Diagf("buttonbox: %v", err)
				continue
			}
			select {
			case d.buttons <- b:
			default:
				monitoring.Opsf("buttonbox: dropping %v, consumer is not keeping up", b)
			}
		}
	}
}

func (d *Device[T]) isClosing() bool {
	d.closingMu.Lock()
	defer d.closingMu.Unlock()
	return d.closing
}

// Close closes the serial port.
func (d *Device[T]) Close() error {
	d.closingMu.Lock()
	d.closing = true
	d.closingMu.Unlock()
	return d.port.Close()
}

// AttachAdminRoutes implements Box.
func (d *Device[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("leds", "show or set the button box LEDs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httputil.WriteJSONOK(w, map[string]string{"leds": LedCommand(d.Leds())[1:]})
		case http.MethodPost:
			leds, err := ParseLeds(r.FormValue("pattern"))
			if err != nil {
				httputil.BadRequest(w, err.Error())
				return
			}
			if err := d.SetLeds(leds); err != nil {
				httputil.InternalServerError(w, "failed to write LEDs")
				return
			}
			httputil.WriteJSONOK(w, map[string]string{"leds": LedCommand(leds)[1:]})
		default:
			httputil.MethodNotAllowed(w)
		}
	})
}
