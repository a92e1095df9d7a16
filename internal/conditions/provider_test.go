package conditions

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilberth/SledBalls/internal/fsutil"
)

const experiment = `
subject: s07
trials:
  - nBalls: 8
    nTargets: 3
    sBalls: 0.2
    lTrial: 6
    amplitude: 0.1
    period: 1.6
    repeat: 2
  - nBalls: 4
    nTargets: 1
    sBalls: 0.1
    lTrial: 4
`

func loadString(t *testing.T, content string) (*Provider, error) {
	t.Helper()
	fs := fsutil.NewMemoryFileSystem()
	fs.WriteFile("/exp/mot.yaml", []byte(content))
	p := NewProvider(fs)
	return p, p.Load("/exp/mot.yaml")
}

func TestProvider_Load(t *testing.T) {
	p, err := loadString(t, experiment)
	require.NoError(t, err)

	assert.Equal(t, 3, p.NTrial())
	assert.Equal(t, -1, p.ITrial())
	assert.Equal(t, "s07", p.Subject())
	assert.Equal(t, Trial{}, p.Trial())

	var got []Trial
	for p.Next() {
		got = append(got, p.Trial())
	}
	want := []Trial{
		{Subject: "s07", NBalls: 8, NTargets: 3, SBalls: 0.2, LTrial: 6, Amplitude: 0.1, Period: 1.6},
		{Subject: "s07", NBalls: 8, NTargets: 3, SBalls: 0.2, LTrial: 6, Amplitude: 0.1, Period: 1.6},
		{Subject: "s07", NBalls: 4, NTargets: 1, SBalls: 0.1, LTrial: 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("trials mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, p.Next())
	assert.Equal(t, Trial{}, p.Trial())
}

func TestProvider_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", "trials: [unclosed"},
		{"unknown key", "trials:\n  - nBalls: 4\n    nTargets: 1\n    lTrial: 1\n    colour: red\n"},
		{"no trials", "subject: s01\n"},
		{"too many targets", "trials:\n  - nBalls: 2\n    nTargets: 3\n    lTrial: 1\n"},
		{"no duration", "trials:\n  - nBalls: 2\n    nTargets: 1\n"},
		{"amplitude without period", "trials:\n  - nBalls: 2\n    nTargets: 1\n    lTrial: 1\n    amplitude: 0.1\n"},
		{"negative repeat", "trials:\n  - nBalls: 2\n    nTargets: 1\n    lTrial: 1\n    repeat: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadString(t, tt.content)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestProvider_MissingFile(t *testing.T) {
	p := NewProvider(fsutil.NewMemoryFileSystem())
	err := p.Load("/nope.yaml")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformed)
}

func TestProvider_ShuffleIsSeeded(t *testing.T) {
	content := `
shuffle: true
seed: 42
trials:
  - {nBalls: 2, nTargets: 1, lTrial: 1}
  - {nBalls: 3, nTargets: 1, lTrial: 1}
  - {nBalls: 4, nTargets: 1, lTrial: 1}
  - {nBalls: 5, nTargets: 1, lTrial: 1}
  - {nBalls: 6, nTargets: 1, lTrial: 1}
`
	order := func() []int {
		p, err := loadString(t, content)
		require.NoError(t, err)
		var n []int
		for p.Next() {
			n = append(n, p.Trial().NBalls)
		}
		return n
	}
	first := order()
	assert.Equal(t, first, order())
	assert.ElementsMatch(t, []int{2, 3, 4, 5, 6}, first)
}

func TestProvider_Results(t *testing.T) {
	p := NewStatic("s01", DefaultTrial(), DefaultTrial())

	p.AddData(Result{PCorrect: 1})
	assert.Empty(t, p.Results(), "no current trial before Next")

	require.True(t, p.Next())
	resp := []int{1, 0}
	p.AddData(Result{PCorrect: 0.5, Response: resp, TrajectFile: "s01.log"})
	resp[0] = 9

	require.True(t, p.Next())
	p.AddData(Result{PCorrect: 1, Response: []int{0, 1}, TrajectFile: "s01.log"})
	p.AddData(Result{PCorrect: 0, Response: []int{2, 3}, TrajectFile: "s01.log"})

	got := p.Results()
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, []int{1, 0}, got[0].Response)
	assert.Equal(t, "s01", got[0].Subject)
	assert.Equal(t, 1, got[1].Index)
	assert.Zero(t, got[1].PCorrect, "later data replaces earlier data")
}

func TestNewStatic_TrialsTakeProviderSubject(t *testing.T) {
	own := DefaultTrial()
	own.Subject = "s02"
	p := NewStatic("s01", DefaultTrial(), own)

	require.True(t, p.Next())
	assert.Equal(t, "s01", p.Trial().Subject)
	p.AddData(Result{PCorrect: 1})
	require.True(t, p.Next())
	assert.Equal(t, "s02", p.Trial().Subject, "a trial's own subject is kept")

	got := p.Results()
	require.Len(t, got, 1)
	assert.Equal(t, p.Subject(), got[0].Subject)
}

func TestProvider_SetSubject(t *testing.T) {
	p := NewStatic(DefaultSubject, DefaultTrial())
	p.SetSubject("s12")
	require.True(t, p.Next())
	assert.Equal(t, "s12", p.Trial().Subject)
	assert.Equal(t, "s12", p.Subject())
}

func TestTrial_Validate(t *testing.T) {
	assert.NoError(t, DefaultTrial().Validate())
	tr := DefaultTrial()
	tr.NBalls = 0
	assert.Error(t, tr.Validate())
}
