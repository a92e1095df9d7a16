package session

import (
	"time"
)

// Scheduler is a single-threaded deadline queue. Each entry remembers the
// generation it was scheduled under and is dropped if the generation has
// moved on by the time it falls due.
type Scheduler struct {
	gen     uint64
	seq     uint64
	pending []scheduled
}

type scheduled struct {
	at  time.Time
	gen uint64
	seq uint64
	fn  func(now time.Time) error
}

// Generation returns the current generation.
func (s *Scheduler) Generation() uint64 { return s.gen }

// Bump starts a new generation, invalidating everything scheduled so far.
func (s *Scheduler) Bump() uint64 {
	s.gen++
	return s.gen
}

// After schedules fn to run at the first Fire at or after at. fn is called
// with at.
func (s *Scheduler) After(at time.Time, fn func(now time.Time) error) {
	s.seq++
	s.pending = append(s.pending, scheduled{at: at, gen: s.gen, seq: s.seq, fn: fn})
}

// Pending returns the number of entries of the current generation.
func (s *Scheduler) Pending() int {
	n := 0
	for _, e := range s.pending {
		if e.gen == s.gen {
			n++
		}
	}
	return n
}

// Fire runs every current-generation entry due at now, earliest first. Each
// callback receives its own deadline, so chained delays do not accumulate
// frame latency. Entries scheduled by a callback run in the same call when
// they are already due. Entries made stale by an earlier callback in the
// same call are skipped. The first error stops the run and is returned.
func (s *Scheduler) Fire(now time.Time) error {
	for {
		i := s.next(now)
		if i < 0 {
			return nil
		}
		e := s.pending[i]
		s.pending = append(s.pending[:i], s.pending[i+1:]...)
		if e.gen != s.gen {
			continue
		}
		if err := e.fn(e.at); err != nil {
			return err
		}
	}
}

// next returns the index of the earliest due entry, or -1. Stale entries
// are discarded on the way.
func (s *Scheduler) next(now time.Time) int {
	live := s.pending[:0]
	for _, e := range s.pending {
		if e.gen == s.gen {
			live = append(live, e)
		}
	}
	s.pending = live

	best := -1
	for i, e := range s.pending {
		if e.at.After(now) {
			continue
		}
		if best < 0 || e.at.Before(s.pending[best].at) ||
			(e.at.Equal(s.pending[best].at) && e.seq < s.pending[best].seq) {
			best = i
		}
	}
	return best
}
