package game

import (
	"math/rand/v2"
	"sync"
)

// Random is the source of every shuffle and tie-break pick.
type Random interface {
	IntN(n int) int
	Perm(n int) []int
}

type globalRandom struct{}

func (globalRandom) IntN(n int) int { return rand.IntN(n) }
func (globalRandom) Perm(n int) []int { return rand.Perm(n) }

// GlobalRandom uses the runtime-seeded, goroutine-safe top level generator.
func GlobalRandom() Random {
	return globalRandom{}
}

type seededRandom struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// SeededRandom is deterministic for a given seed and safe for concurrent use.
func SeededRandom(seed uint64) Random {
	return &seededRandom{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *seededRandom) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.IntN(n)
}

func (s *seededRandom) Perm(n int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Perm(n)
}
