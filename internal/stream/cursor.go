package stream

import "time"

// Cursor tracks the last emitted bar timestamp per symbol. It is owned by
// the session loop and is not safe for concurrent use.
type Cursor struct {
	last map[string]time.Time
}

// NewCursor creates an empty cursor.
func NewCursor() *Cursor {
	return &Cursor{last: make(map[string]time.Time)}
}

// Advance records ts for symbol and reports whether the bar should be
// emitted. A bar at or before the last emitted timestamp is rejected.
func (c *Cursor) Advance(symbol string, ts time.Time) bool {
	if last, ok := c.last[symbol]; ok && !ts.After(last) {
		return false
	}
	c.last[symbol] = ts
	return true
}

// Last returns the last emitted timestamp for symbol.
func (c *Cursor) Last(symbol string) (time.Time, bool) {
	ts, ok := c.last[symbol]
	return ts, ok
}

// Len returns the number of symbols seen.
func (c *Cursor) Len() int {
	return len(c.last)
}
