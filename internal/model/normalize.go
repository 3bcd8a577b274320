package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NormalizationError reports a raw bar that cannot become a BarRecord.
type NormalizationError struct {
	Symbol string // Symbol of the offending bar, if known
	Field  string // Field that failed (e.g., "low")
	Reason string
}

func (e *NormalizationError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("normalize %s: field %s: %s", e.Symbol, e.Field, e.Reason)
	}
	return fmt.Sprintf("normalize: field %s: %s", e.Field, e.Reason)
}

// Normalize validates a raw bar and converts it into a BarRecord.
//
// Required: symbol, timestamp, open, high, low, close, volume.
// Optional: trade count and vwap (zero when absent).
// Prices must be positive, counts non-negative, and low <= open,close <= high.
func Normalize(raw RawBar) (BarRecord, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw.Symbol))
	fail := func(field, format string, args ...any) (BarRecord, error) {
		return BarRecord{}, &NormalizationError{Symbol: symbol, Field: field, Reason: fmt.Sprintf(format, args...)}
	}

	if symbol == "" {
		return fail("symbol", "missing")
	}

	if raw.Timestamp == "" {
		return fail("timestamp", "missing")
	}
	ts, err := time.Parse(time.RFC3339Nano, raw.Timestamp)
	if err != nil {
		return fail("timestamp", "invalid RFC 3339 time %q", raw.Timestamp)
	}

	open, err := requiredPrice(raw.Open)
	if err != nil {
		return fail("open", "%v", err)
	}
	high, err := requiredPrice(raw.High)
	if err != nil {
		return fail("high", "%v", err)
	}
	low, err := requiredPrice(raw.Low)
	if err != nil {
		return fail("low", "%v", err)
	}
	closePrice, err := requiredPrice(raw.Close)
	if err != nil {
		return fail("close", "%v", err)
	}

	if low.GreaterThan(high) {
		return fail("low", "low %s exceeds high %s", low, high)
	}
	if open.LessThan(low) || open.GreaterThan(high) {
		return fail("open", "open %s outside [%s, %s]", open, low, high)
	}
	if closePrice.LessThan(low) || closePrice.GreaterThan(high) {
		return fail("close", "close %s outside [%s, %s]", closePrice, low, high)
	}

	if raw.Volume == "" {
		return fail("volume", "missing")
	}
	volume, err := count(raw.Volume)
	if err != nil {
		return fail("volume", "%v", err)
	}

	var tradeCount int64
	if raw.TradeCount != "" {
		if tradeCount, err = count(raw.TradeCount); err != nil {
			return fail("trade_count", "%v", err)
		}
	}

	vwap := decimal.Zero
	if raw.VWAP != "" {
		if vwap, err = decimal.NewFromString(string(raw.VWAP)); err != nil {
			return fail("vwap", "not numeric: %q", raw.VWAP)
		}
		if vwap.IsNegative() {
			return fail("vwap", "negative: %s", vwap)
		}
	}

	return BarRecord{
		Symbol:     symbol,
		Timestamp:  ts.UTC(),
		Open:       open,
		High:       high,
		Low:        low,
		Close:      closePrice,
		Volume:     volume,
		TradeCount: tradeCount,
		VWAP:       vwap,
	}, nil
}

func requiredPrice(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, fmt.Errorf("missing")
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero, fmt.Errorf("not numeric: %q", string(n))
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}

var maxCount = decimal.NewFromInt(math.MaxInt64)

// count parses a non-negative whole number. Values such as "1e3" or "10.0"
// are accepted as long as they are integral.
func count(n json.Number) (int64, error) {
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return 0, fmt.Errorf("not numeric: %q", string(n))
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative: %s", d)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("not a whole number: %s", d)
	}
	if d.GreaterThan(maxCount) {
		return 0, fmt.Errorf("out of range: %s", d)
	}
	return d.IntPart(), nil
}
