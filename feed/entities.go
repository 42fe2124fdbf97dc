package feed

import "time"

// Side is the aggressor side of a trade.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Trade is the canonical record of one market event. Every upstream payload
// shape is mapped into this struct before it reaches the store.
type Trade struct {
	ID        string  `json:"id"`
	Timestamp int64   `json:"timestamp"` // milliseconds since epoch
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	Side      Side    `json:"side"`
	Exchange  string  `json:"exchange"`
}

// Time returns the trade timestamp as a time.Time.
func (t Trade) Time() time.Time {
	return time.UnixMilli(t.Timestamp)
}
