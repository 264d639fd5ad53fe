package kpi

import (
	"sort"
	"sync"

	"github.com/tinytelemetry/callstat/internal/model"
)

// Set maps hour buckets to accumulators. Accumulators are created lazily on
// the first event of an hour. All methods are safe for concurrent use.
type Set struct {
	mu    sync.Mutex
	hours map[int]*Accumulator
}

// NewSet creates an empty hour set.
func NewSet() *Set {
	return &Set{hours: make(map[int]*Accumulator)}
}

// Absorb routes ev to the accumulator of its hour.
func (s *Set) Absorb(ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucket(ev.Hour).Absorb(ev)
}

// Merge folds every hour of other into s. Merging is associative and
// commutative, so deltas from independent sources can arrive in any order.
func (s *Set) Merge(other *Set) {
	if other == nil || other == s {
		return
	}
	snapshot := other.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range snapshot {
		s.bucket(acc.Hour).Merge(acc)
	}
}

// Hours returns the populated hours in ascending order.
func (s *Set) Hours() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	hours := make([]int, 0, len(s.hours))
	for h := range s.hours {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	return hours
}

// Get returns a copy of the accumulator for hour.
func (s *Set) Get(hour int) (*Accumulator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.hours[hour]
	if !ok {
		return nil, false
	}
	return acc.Clone(), true
}

// Snapshot returns deep copies of all accumulators, ascending by hour.
func (s *Set) Snapshot() []*Accumulator {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Accumulator, 0, len(s.hours))
	for _, acc := range s.hours {
		out = append(out, acc.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}

// Len returns the number of populated hours.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hours)
}

func (s *Set) bucket(hour int) *Accumulator {
	acc, ok := s.hours[hour]
	if !ok {
		acc = NewAccumulator(hour)
		s.hours[hour] = acc
	}
	return acc
}
