// Package conditions loads the list of trials of an experiment and keeps the
// subject's results for each of them.
package conditions

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/wilberth/SledBalls/internal/fsutil"
)

// ErrMalformed is returned when an experiment file cannot be used.
var ErrMalformed = errors.New("malformed experiment file")

// Trial holds the parameters of one trial.
type Trial struct {
	Subject   string  `yaml:"subject,omitempty" json:"subject"`
	NBalls    int     `yaml:"nBalls" json:"nBalls"`
	NTargets  int     `yaml:"nTargets" json:"nTargets"`
	SBalls    float64 `yaml:"sBalls" json:"sBalls"`
	LTrial    float64 `yaml:"lTrial" json:"lTrial"`
	Amplitude float64 `yaml:"amplitude" json:"amplitude"`
	Period    float64 `yaml:"period" json:"period"`
}

// Validate reports whether the trial can be run.
func (t Trial) Validate() error {
	switch {
	case t.NBalls < 1:
		return fmt.Errorf("nBalls must be positive, got %d", t.NBalls)
	case t.NTargets < 1 || t.NTargets > t.NBalls:
		return fmt.Errorf("nTargets must be in [1, nBalls=%d], got %d", t.NBalls, t.NTargets)
	case t.SBalls < 0:
		return fmt.Errorf("sBalls must be non-negative, got %g", t.SBalls)
	case t.LTrial <= 0:
		return fmt.Errorf("lTrial must be positive, got %g", t.LTrial)
	case t.Amplitude < 0:
		return fmt.Errorf("amplitude must be non-negative, got %g", t.Amplitude)
	case t.Amplitude > 0 && t.Period <= 0:
		return fmt.Errorf("period must be positive when amplitude is set, got %g", t.Period)
	}
	return nil
}

// DefaultSubject is the subject id used when neither the experiment file
// nor the command line names one.
const DefaultSubject = "unknown"

// DefaultTrial is run when no experiment file is given. It has no subject of
// its own and takes the provider's.
func DefaultTrial() Trial {
	return Trial{
		NBalls:    4,
		NTargets:  2,
		SBalls:    0.1,
		LTrial:    10,
		Amplitude: 0.1,
		Period:    1.6,
	}
}

// Result is what the subject produced in one trial.
type Result struct {
	PCorrect    float64 `yaml:"pCorrect" json:"pCorrect"`
	Response    []int   `yaml:"response,flow" json:"response"`
	TrajectFile string  `yaml:"trajectFile" json:"trajectFile"`
}

// Record pairs a trial with its result.
type Record struct {
	Index  int `yaml:"iTrial" json:"iTrial"`
	Trial  `yaml:",inline"`
	Result `yaml:",inline"`
}

type trialSpec struct {
	Trial  `yaml:",inline"`
	Repeat int `yaml:"repeat,omitempty"`
}

type experimentFile struct {
	Subject string      `yaml:"subject"`
	Shuffle bool        `yaml:"shuffle"`
	Seed    uint64      `yaml:"seed"`
	Trials  []trialSpec `yaml:"trials"`
}

// Provider hands out trials in order.
type Provider struct {
	fs      fsutil.FileSystem
	subject string
	trials  []Trial
	index   int
	results map[int]Result
}

// NewProvider returns an empty provider reading files through fs.
func NewProvider(fs fsutil.FileSystem) *Provider {
	return &Provider{fs: fs, index: -1, results: make(map[int]Result)}
}

// NewStatic returns a provider over a fixed list of trials.
func NewStatic(subject string, trials ...Trial) *Provider {
	p := NewProvider(fsutil.OSFileSystem{})
	p.setTrials(subject, trials)
	return p
}

// SetSubject sets the subject of the experiment and of every trial.
func (p *Provider) SetSubject(subject string) {
	p.subject = subject
	for i := range p.trials {
		p.trials[i].Subject = subject
	}
}

// Subject returns the experiment's subject id.
func (p *Provider) Subject() string { return p.subject }

// Load replaces the trial list with the contents of the YAML file at path
// and rewinds to before the first trial.
func (p *Provider) Load(path string) error {
	data, err := p.fs.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading experiment %s: %w", path, err)
	}

	var f experimentFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	if len(f.Trials) == 0 {
		return fmt.Errorf("%w: %s: no trials", ErrMalformed, path)
	}

	var trials []Trial
	for i, ts := range f.Trials {
		if err := ts.Trial.Validate(); err != nil {
			return fmt.Errorf("%w: %s: trial %d: %v", ErrMalformed, path, i, err)
		}
		if ts.Repeat < 0 {
			return fmt.Errorf("%w: %s: trial %d: negative repeat", ErrMalformed, path, i)
		}
		for range max(ts.Repeat, 1) {
			trials = append(trials, ts.Trial)
		}
	}
	if f.Shuffle {
		seed := f.Seed
		if seed == 0 {
			seed = 1
		}
		rng := rand.New(rand.NewPCG(seed, seed))
		rng.Shuffle(len(trials), func(i, j int) { trials[i], trials[j] = trials[j], trials[i] })
	}

	subject := f.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	p.setTrials(subject, trials)
	return nil
}

func (p *Provider) setTrials(subject string, trials []Trial) {
	p.subject = subject
	p.trials = slices.Clone(trials)
	for i := range p.trials {
		if p.trials[i].Subject == "" {
			p.trials[i].Subject = subject
		}
	}
	p.index = -1
	p.results = make(map[int]Result)
}

// Next advances to the next trial and reports whether there is one.
func (p *Provider) Next() bool {
	if p.index+1 >= len(p.trials) {
		p.index = len(p.trials)
		return false
	}
	p.index++
	return true
}

// Trial returns the current trial. It is the zero Trial before the first
// Next and after the last.
func (p *Provider) Trial() Trial {
	if p.index < 0 || p.index >= len(p.trials) {
		return Trial{}
	}
	return p.trials[p.index]
}

// ITrial returns the zero-based index of the current trial.
func (p *Provider) ITrial() int { return p.index }

// NTrial returns the number of trials.
func (p *Provider) NTrial() int { return len(p.trials) }

// AddData stores the result of the current trial.
func (p *Provider) AddData(r Result) {
	if p.index < 0 || p.index >= len(p.trials) {
		return
	}
	r.Response = slices.Clone(r.Response)
	p.results[p.index] = r
}

// Results returns the stored results in trial order.
func (p *Provider) Results() []Record {
	out := make([]Record, 0, len(p.results))
	for i, t := range p.trials {
		r, ok := p.results[i]
		if !ok {
			continue
		}
		out = append(out, Record{Index: i, Trial: t, Result: r})
	}
	return out
}
