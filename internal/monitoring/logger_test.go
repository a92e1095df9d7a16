package monitoring

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogWriters(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag, Trace: &trace})
	defer SetLogWriters(LogWriters{})

	Opsf("sled unreachable: %s", "10.0.0.2")
	Diagf("state %s", "Wait")
	Tracef("frame %d", 12)

	assert.Contains(t, ops.String(), "sled unreachable: 10.0.0.2")
	assert.Contains(t, diag.String(), "state Wait")
	assert.Contains(t, trace.String(), "frame 12")
	assert.True(t, TraceEnabled())
}

func TestSetLogWriters_NilMutesStream(t *testing.T) {
	var ops bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops})
	defer SetLogWriters(LogWriters{})

	// Must not panic with nil loggers.
	Diagf("dropped")
	Tracef("dropped")
	Opsf("kept")

	assert.Equal(t, 1, bytes.Count(ops.Bytes(), []byte("\n")))
	assert.False(t, TraceEnabled())
}
