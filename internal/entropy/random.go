// Package entropy provides the random sources that drive every probabilistic
// outcome in the simulation. A seeded source makes runs reproducible for tests;
// the random.org pool is available for runs that want true randomness.
package entropy

import mrand "math/rand"

// Source yields uniform random numbers. Implementations need not be safe for
// concurrent use unless noted; the simulation steps on a single goroutine.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// Intn returns a value in [0, n). n must be positive.
	Intn(n int) int
}

// Seeded is a reproducible pseudo-random source.
type Seeded struct {
	rng *mrand.Rand
}

// NewSeeded creates a pseudo-random source from seed.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{rng: mrand.New(mrand.NewSource(seed))}
}

func (s *Seeded) Float64() float64 { return s.rng.Float64() }

func (s *Seeded) Intn(n int) int { return s.rng.Intn(n) }

// Scripted replays a fixed list of floats in order and then repeats the last
// one. Tests use it to force specific branches.
type Scripted struct {
	values []float64
	next   int
}

// NewScripted creates a scripted source. With no values it always returns 0.5.
func NewScripted(values ...float64) *Scripted {
	if len(values) == 0 {
		values = []float64{0.5}
	}
	return &Scripted{values: values}
}

func (s *Scripted) Float64() float64 {
	v := s.values[s.next]
	if s.next < len(s.values)-1 {
		s.next++
	}
	return v
}

func (s *Scripted) Intn(n int) int {
	return scale(s.Float64(), n)
}

// scale maps v in [0, 1) onto [0, n).
func scale(v float64, n int) int {
	return min(int(v*float64(n)), n-1)
}

// Chance reports whether an event with probability p happens.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}

// Uniform returns a value in [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}
