package conversation

import (
	"math/rand"
	"time"
)

// Scheduler chooses the next speaker under a no-immediate-repeat policy:
// uniform-random over the available identities minus the previous speaker,
// falling back to the full set when only one identity is available.
type Scheduler struct {
	rng      *rand.Rand
	previous string
}

// NewScheduler creates a scheduler seeded from the wall clock.
func NewScheduler() *Scheduler {
	return NewSchedulerWithSeed(time.Now().UnixNano())
}

// NewSchedulerWithSeed creates a scheduler with a fixed seed, for
// reproducible runs and tests.
func NewSchedulerWithSeed(seed int64) *Scheduler {
	return &Scheduler{rng: rand.New(rand.NewSource(seed))}
}

// SelectNext picks the next speaker and remembers it as the new previous
// speaker. An empty available set is a programming error and panics.
func (s *Scheduler) SelectNext(available []string) string {
	if len(available) == 0 {
		panic("conversation: SelectNext called with an empty available set")
	}

	candidates := make([]string, 0, len(available))
	for _, name := range available {
		if name != s.previous {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		candidates = available
	}

	next := candidates[s.rng.Intn(len(candidates))]
	s.previous = next
	return next
}

// Previous returns the last selected speaker, or "" before the first call.
func (s *Scheduler) Previous() string {
	return s.previous
}
