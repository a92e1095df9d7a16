// Package triallog writes and reads the per-frame ball trajectory log.
//
// A log holds one block per trial:
//
//	{"TrialData": [
//	[0.016667,x0,y0,z0,x1,y1,z1],
//	...
//	]}
//
// Every frame line ends in a comma, including the last one of a block.
package triallog

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrLogWrite wraps every failure to write to the underlying log.
var ErrLogWrite = errors.New("trial log write failed")

const (
	blockOpen  = `{"TrialData": [`
	blockClose = `]}`
)

// Logger appends trial blocks to a writer. It is not safe for concurrent use.
type Logger struct {
	w      io.Writer
	open   bool
	frames int
	buf    []byte
}

// NewLogger returns a logger appending to w.
func NewLogger(w io.Writer) *Logger {
	return &Logger{w: w}
}

// IsOpen reports whether a block has been opened and not yet closed.
func (l *Logger) IsOpen() bool { return l.open }

// Frames returns the number of frames recorded in the current block.
func (l *Logger) Frames() int { return l.frames }

// Open starts a new trial block.
func (l *Logger) Open() error {
	if err := l.write(blockOpen + "\n"); err != nil {
		return err
	}
	l.open = true
	l.frames = 0
	return nil
}

// Record appends one frame with the elapsed trial time in seconds and the
// flattened ball positions.
func (l *Logger) Record(elapsed float64, positions []r3.Vec) error {
	b := l.buf[:0]
	b = append(b, '[')
	b = strconv.AppendFloat(b, elapsed, 'f', 6, 64)
	for _, p := range positions {
		for _, v := range [3]float64{p.X, p.Y, p.Z} {
			b = append(b, ',')
			b = strconv.AppendFloat(b, v, 'f', 6, 64)
		}
	}
	b = append(b, "],\n"...)
	l.buf = b
	if _, err := l.w.Write(b); err != nil {
		return fmt.Errorf("%w: frame %d: %v", ErrLogWrite, l.frames, err)
	}
	l.frames++
	return nil
}

// Close ends the current block. Closing without an open block is a no-op.
func (l *Logger) Close() error {
	if !l.open {
		return nil
	}
	l.open = false
	return l.write(blockClose + "\n")
}

func (l *Logger) write(s string) error {
	if _, err := io.WriteString(l.w, s); err != nil {
		return fmt.Errorf("%w: %v", ErrLogWrite, err)
	}
	return nil
}

// Frame is one recorded frame of a block.
type Frame struct {
	Elapsed   float64
	Positions []r3.Vec
}

// Block is the frame series of one trial.
type Block []Frame

// ReadBlocks parses a log written by Logger. An unterminated final block is
// returned as is, so a log cut short by a crash can still be plotted.
func ReadBlocks(r io.Reader) ([]Block, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading trial log: %w", err)
	}

	var (
		blocks []Block
		cur    Block
		inside bool
	)
	for n, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == blockOpen:
			if inside {
				blocks = append(blocks, cur)
			}
			cur, inside = nil, true
		case line == blockClose:
			if !inside {
				return blocks, fmt.Errorf("line %d: block closed without being opened", n+1)
			}
			blocks = append(blocks, cur)
			cur, inside = nil, false
		default:
			if !inside {
				return blocks, fmt.Errorf("line %d: frame outside a block", n+1)
			}
			f, err := parseFrame(line)
			if err != nil {
				return blocks, fmt.Errorf("line %d: %w", n+1, err)
			}
			cur = append(cur, f)
		}
	}
	if inside {
		blocks = append(blocks, cur)
	}
	return blocks, nil
}

func parseFrame(line string) (Frame, error) {
	line = strings.TrimSuffix(line, ",")
	if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "]") {
		return Frame{}, fmt.Errorf("malformed frame %q", line)
	}
	fields := strings.Split(line[1:len(line)-1], ",")
	if (len(fields)-1)%3 != 0 {
		return Frame{}, fmt.Errorf("frame has %d coordinates, want a multiple of 3", len(fields)-1)
	}
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Frame{}, fmt.Errorf("field %d: %w", i, err)
		}
		vals[i] = v
	}
	frame := Frame{Elapsed: vals[0]}
	for i := 1; i+2 < len(vals); i += 3 {
		frame.Positions = append(frame.Positions, r3.Vec{X: vals[i], Y: vals[i+1], Z: vals[i+2]})
	}
	return frame, nil
}
