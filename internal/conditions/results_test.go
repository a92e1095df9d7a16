package conditions

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteResults_AppendsSessions(t *testing.T) {
	p := NewStatic("s01", DefaultTrial(), DefaultTrial())
	require.True(t, p.Next())
	p.AddData(Result{PCorrect: 0.5, Response: []int{3, 1}, TrajectFile: "s01_traject.json"})
	require.True(t, p.Next())
	p.AddData(Result{PCorrect: 1, Response: []int{0, 2}, TrajectFile: "s01_traject.json"})

	var buf bytes.Buffer
	finished := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, WriteResults(&buf, "s01", "a", finished, p.Results()[:1]))
	require.NoError(t, WriteResults(&buf, "s01", "b", finished, p.Results()))

	text := buf.String()
	assert.Contains(t, text, "pCorrect: 0.5")
	assert.Contains(t, text, "response: [3, 1]")
	assert.Contains(t, text, "nBalls: 4")
	assert.Equal(t, 2, strings.Count(text, "---\n"))

	sessions, err := ReadResults(&buf)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	if diff := cmp.Diff(p.Results(), sessions[1]); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, sessions[0], 1)
}

func TestReadResults_Malformed(t *testing.T) {
	_, err := ReadResults(strings.NewReader("trials: [[["))
	assert.ErrorIs(t, err, ErrMalformed)
}
