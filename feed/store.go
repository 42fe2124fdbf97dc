package feed

import (
	"strings"
	"sync"
)

// DefaultCapacity is the number of trades the store retains.
const DefaultCapacity = 100

// Store is a bounded, newest-first buffer of normalized trades. Pushing is
// O(1) amortized: the trade is prepended and the tail beyond the capacity is
// dropped. Reads never mutate the buffer.
//
// The store is owned by the consuming layer; the connection side only hands
// it trades through the owner. A mutex still guards it because owners read
// (render) concurrently with the delivery goroutine.
type Store struct {
	mu     sync.RWMutex
	cap    int
	trades []Trade
}

// NewStore returns an empty store with DefaultCapacity.
func NewStore() *Store {
	return NewStoreWithCapacity(DefaultCapacity)
}

// NewStoreWithCapacity returns an empty store retaining at most capacity
// trades.
func NewStoreWithCapacity(capacity int) *Store {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Store{
		cap:    capacity,
		trades: make([]Trade, 0, capacity+1),
	}
}

// Push prepends t and drops the oldest entry if the store is full. The
// newest trade is never the one dropped.
func (s *Store) Push(t Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, Trade{})
	copy(s.trades[1:], s.trades)
	s.trades[0] = t
	if len(s.trades) > s.cap {
		s.trades = s.trades[:s.cap]
	}
}

// Len returns the number of stored trades.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trades)
}

// Trades returns the stored trades, newest first, that match f.
func (s *Store) Trades(f Filter) []Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Trade, 0, len(s.trades))
	for _, t := range s.trades {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Clear empties the store. It has no effect on the connection feeding it.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = s.trades[:0]
}

// Filter is a conjunction of independent trade predicates. Zero values leave
// the corresponding dimension unfiltered, so the zero Filter matches every
// trade. The predicates are pure, so their evaluation order does not affect
// the result set.
type Filter struct {
	// Symbol and Exchange are case-insensitive substring matches.
	Symbol   string
	Exchange string
	// Inclusive bounds; nil means the bound is open.
	MinPrice *float64
	MaxPrice *float64
	MinSize  *float64
	MaxSize  *float64
	// Sides is a set; empty means both sides match.
	Sides []Side
}

// Match reports whether t satisfies every predicate of f.
func (f Filter) Match(t Trade) bool {
	if !containsFold(t.Symbol, f.Symbol) {
		return false
	}
	if !containsFold(t.Exchange, f.Exchange) {
		return false
	}
	if !inRange(t.Price, f.MinPrice, f.MaxPrice) {
		return false
	}
	if !inRange(t.Size, f.MinSize, f.MaxSize) {
		return false
	}
	if len(f.Sides) > 0 && !containsSide(f.Sides, t.Side) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func inRange(v float64, min, max *float64) bool {
	if min != nil && v < *min {
		return false
	}
	if max != nil && v > *max {
		return false
	}
	return true
}

func containsSide(sides []Side, s Side) bool {
	for _, side := range sides {
		if side == s {
			return true
		}
	}
	return false
}
