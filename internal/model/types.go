package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BarRecord is one normalized OHLCV observation.
type BarRecord struct {
	Symbol     string          // Ticker (e.g., "AAPL")
	Timestamp  time.Time       // Bar start, UTC
	Open       decimal.Decimal // > 0
	High       decimal.Decimal // >= max(open, close)
	Low        decimal.Decimal // <= min(open, close)
	Close      decimal.Decimal // > 0
	Volume     int64           // >= 0
	TradeCount int64           // >= 0, 0 if unknown
	VWAP       decimal.Decimal // >= 0, zero if unknown
}

// Change returns close minus open.
func (b BarRecord) Change() decimal.Decimal {
	return b.Close.Sub(b.Open)
}

// ChangePercent returns the close-to-open change as a percentage of open.
func (b BarRecord) ChangePercent() decimal.Decimal {
	if b.Open.IsZero() {
		return decimal.Zero
	}
	return b.Change().Div(b.Open).Mul(decimal.NewFromInt(100))
}

// Equal reports whether two records carry the same values field by field.
func (b BarRecord) Equal(o BarRecord) bool {
	return b.Symbol == o.Symbol &&
		b.Timestamp.Equal(o.Timestamp) &&
		b.Open.Equal(o.Open) &&
		b.High.Equal(o.High) &&
		b.Low.Equal(o.Low) &&
		b.Close.Equal(o.Close) &&
		b.Volume == o.Volume &&
		b.TradeCount == o.TradeCount &&
		b.VWAP.Equal(o.VWAP)
}

// String implements fmt.Stringer for log output.
func (b BarRecord) String() string {
	return fmt.Sprintf("%s@%s", b.Symbol, b.Timestamp.Format(time.RFC3339))
}

// barJSON is the canonical JSON shape. Field order matches the CSV header.
type barJSON struct {
	Symbol     string      `json:"symbol"`
	Timestamp  string      `json:"timestamp"`
	Open       json.Number `json:"open"`
	High       json.Number `json:"high"`
	Low        json.Number `json:"low"`
	Close      json.Number `json:"close"`
	Volume     json.Number `json:"volume"`
	TradeCount json.Number `json:"trade_count"`
	VWAP       json.Number `json:"vwap"`
}

// MarshalJSON encodes prices as JSON numbers rather than quoted strings.
func (b BarRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(barJSON{
		Symbol:     b.Symbol,
		Timestamp:  b.Timestamp.UTC().Format(time.RFC3339Nano),
		Open:       json.Number(b.Open.String()),
		High:       json.Number(b.High.String()),
		Low:        json.Number(b.Low.String()),
		Close:      json.Number(b.Close.String()),
		Volume:     json.Number(fmt.Sprint(b.Volume)),
		TradeCount: json.Number(fmt.Sprint(b.TradeCount)),
		VWAP:       json.Number(b.VWAP.String()),
	})
}

// UnmarshalJSON decodes the canonical shape and runs it through Normalize,
// so a decoded record satisfies the same invariants as a fetched one.
func (b *BarRecord) UnmarshalJSON(data []byte) error {
	var v barJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	rec, err := Normalize(RawBar{
		Symbol:     v.Symbol,
		Timestamp:  v.Timestamp,
		Open:       v.Open,
		High:       v.High,
		Low:        v.Low,
		Close:      v.Close,
		Volume:     v.Volume,
		TradeCount: v.TradeCount,
		VWAP:       v.VWAP,
	})
	if err != nil {
		return err
	}
	*b = rec
	return nil
}

// RawBar is a bar as delivered by the provider, before validation.
// Numeric fields keep their literal text; an empty value means absent.
type RawBar struct {
	Symbol     string      `json:"S,omitempty"`
	Timestamp  string      `json:"t"`
	Open       json.Number `json:"o"`
	High       json.Number `json:"h"`
	Low        json.Number `json:"l"`
	Close      json.Number `json:"c"`
	Volume     json.Number `json:"v"`
	TradeCount json.Number `json:"n,omitempty"`
	VWAP       json.Number `json:"vw,omitempty"`
}

// DateRange is an inclusive range of UTC calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a range, truncating both ends to UTC midnight.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: truncateDay(start), End: truncateDay(end)}
	if r.Start.After(r.End) {
		return DateRange{}, fmt.Errorf("start date %s must not be after end date %s",
			r.Start.Format(DateLayout), r.End.Format(DateLayout))
	}
	return r, nil
}

// ParseDateRange parses two YYYY-MM-DD dates into a range.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, fmt.Errorf("start: %w", err)
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, fmt.Errorf("end: %w", err)
	}
	return NewDateRange(s, e)
}

// QueryEnd returns the exclusive upper bound for provider queries: midnight
// after End, so bars stamped on the end date are included.
func (r DateRange) QueryEnd() time.Time {
	return r.End.AddDate(0, 0, 1)
}

// String formats the range as "start..end".
func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// DateLayout is the accepted date format.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
