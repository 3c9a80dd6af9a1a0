package random

import (
	"math/rand/v2"
	"sync"
)

// Picker chooses an index in [0, n).
type Picker interface {
	Intn(n int) int
}

// SeededPicker is a goroutine-safe Picker over a PCG source.
type SeededPicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPicker returns a Picker seeded with seed.
func NewPicker(seed int64) *SeededPicker {
	return &SeededPicker{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))}
}

// Intn returns a uniform index in [0, n); it returns 0 when n <= 0.
func (p *SeededPicker) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.IntN(n)
}

// Sequence replays fixed indexes, wrapping each into range. Tests use it to
// force a choice.
type Sequence struct {
	mu      sync.Mutex
	indexes []int
	next    int
}

// NewSequence returns a Picker that yields indexes in order, cycling.
func NewSequence(indexes ...int) *Sequence {
	return &Sequence{indexes: indexes}
}

// Intn implements Picker.
func (s *Sequence) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.indexes) == 0 {
		return 0
	}
	value := s.indexes[s.next%len(s.indexes)]
	s.next++
	value %= n
	if value < 0 {
		value += n
	}
	return value
}

// Pick returns a uniformly chosen element of items. The zero value is
// returned for an empty slice.
func Pick[T any](picker Picker, items []T) T {
	var zero T
	if len(items) == 0 || picker == nil {
		return zero
	}
	return items[picker.Intn(len(items))]
}
