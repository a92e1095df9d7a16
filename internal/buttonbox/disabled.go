package buttonbox

import (
	"context"
	"net/http"
	"sync"

	"github.com/wilberth/SledBalls/internal/httputil"
)

// Disabled is a Box that does nothing, used when no button box is attached.
// Buttons never fires; input then comes from the keyboard only.
type Disabled struct {
	mu      sync.Mutex
	leds    [8]bool
	buttons chan Button
}

// NewDisabled returns a no-op box.
func NewDisabled() *Disabled {
	return &Disabled{buttons: make(chan Button)}
}

// SetLeds records the pattern without sending it anywhere.
func (d *Disabled) SetLeds(leds [8]bool) error {
	d.mu.Lock()
	d.leds = leds
	d.mu.Unlock()
	return nil
}

// Leds returns the last pattern set.
func (d *Disabled) Leds() [8]bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.leds
}

func (d *Disabled) Buttons() <-chan Button { return d.buttons }

func (d *Disabled) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *Disabled) Close() error { return nil }

func (d *Disabled) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/buttonbox-disabled", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, map[string]string{"button_box": "disabled"})
	})
}
