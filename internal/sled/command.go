// Package sled talks to the motion platform the subject sits on, or
// simulates it when there is none.
package sled

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotConnected is returned when a command is sent before Connect.
var ErrNotConnected = errors.New("sled not connected")

// MoveTime is how long a Goto takes.
const MoveTime = 1.5

// Commands understood by the sled server.
const (
	LightsOn     = "Lights On"
	LightsOff    = "Lights Off"
	SinusoidStop = "Sinusoid Stop"
)

// SinusoidStart returns the command that starts a sinusoidal movement with
// the given amplitude in metres and period in seconds.
func SinusoidStart(amplitude, period float64) string {
	return fmt.Sprintf("Sinusoid Start %g %g", amplitude, period)
}

// GotoCommand returns the command that moves the sled to position in
// duration seconds.
func GotoCommand(position, duration float64) string {
	return fmt.Sprintf("Goto %g %g", position, duration)
}

// Command is a parsed sled command.
type Command struct {
	Name string
	Args []float64
}

// ParseCommand splits text into a known command name and its numeric
// arguments.
func ParseCommand(text string) (Command, error) {
	text = strings.TrimSpace(text)
	for _, c := range []struct {
		name  string
		nArgs int
	}{
		{LightsOn, 0},
		{LightsOff, 0},
		{SinusoidStop, 0},
		{"Sinusoid Start", 2},
		{"Goto", 2},
	} {
		rest, ok := strings.CutPrefix(text, c.name)
		if !ok || (rest != "" && rest[0] != ' ') {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) != c.nArgs {
			return Command{}, fmt.Errorf("%s takes %d arguments, got %d", c.name, c.nArgs, len(fields))
		}
		cmd := Command{Name: c.name}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Command{}, fmt.Errorf("%s: %w", c.name, err)
			}
			cmd.Args = append(cmd.Args, v)
		}
		return cmd, nil
	}
	return Command{}, fmt.Errorf("unknown sled command %q", text)
}
