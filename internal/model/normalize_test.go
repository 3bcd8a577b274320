package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validRaw() RawBar {
	return RawBar{
		Symbol:     "aapl",
		Timestamp:  "2024-01-15T10:00:00Z",
		Open:       "150",
		High:       "155",
		Low:        "149",
		Close:      "153",
		Volume:     "10000",
		TradeCount: "500",
		VWAP:       "152.5",
	}
}

func TestNormalize(t *testing.T) {
	rec, err := Normalize(validRaw())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if rec.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want %q", rec.Symbol, "AAPL")
	}
	want := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	if !rec.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", rec.Timestamp, want)
	}
	if rec.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp location = %v, want UTC", rec.Timestamp.Location())
	}
	if !rec.Open.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Open = %s, want 150", rec.Open)
	}
	if !rec.VWAP.Equal(decimal.RequireFromString("152.5")) {
		t.Errorf("VWAP = %s, want 152.5", rec.VWAP)
	}
	if rec.Volume != 10000 {
		t.Errorf("Volume = %d, want 10000", rec.Volume)
	}
	if rec.TradeCount != 500 {
		t.Errorf("TradeCount = %d, want 500", rec.TradeCount)
	}
}

func TestNormalizeOptionalFields(t *testing.T) {
	raw := validRaw()
	raw.TradeCount = ""
	raw.VWAP = ""

	rec, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if rec.TradeCount != 0 {
		t.Errorf("TradeCount = %d, want 0", rec.TradeCount)
	}
	if !rec.VWAP.IsZero() {
		t.Errorf("VWAP = %s, want 0", rec.VWAP)
	}
}

func TestNormalizeTimezone(t *testing.T) {
	raw := validRaw()
	raw.Timestamp = "2024-01-15T05:00:00-05:00"

	rec, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	want := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	if !rec.Timestamp.Equal(want) || rec.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp = %v, want %v", rec.Timestamp, want)
	}
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RawBar)
		field  string
	}{
		{"missing symbol", func(r *RawBar) { r.Symbol = " " }, "symbol"},
		{"missing timestamp", func(r *RawBar) { r.Timestamp = "" }, "timestamp"},
		{"bad timestamp", func(r *RawBar) { r.Timestamp = "yesterday" }, "timestamp"},
		{"missing open", func(r *RawBar) { r.Open = "" }, "open"},
		{"non-numeric high", func(r *RawBar) { r.High = "abc" }, "high"},
		{"zero low", func(r *RawBar) { r.Low = "0" }, "low"},
		{"negative close", func(r *RawBar) { r.Close = "-1" }, "close"},
		{"low above high", func(r *RawBar) { r.Low = "160"; r.Open = "160"; r.Close = "160" }, "low"},
		{"open above high", func(r *RawBar) { r.Open = "156" }, "open"},
		{"close below low", func(r *RawBar) { r.Close = "148" }, "close"},
		{"missing volume", func(r *RawBar) { r.Volume = "" }, "volume"},
		{"negative volume", func(r *RawBar) { r.Volume = "-5" }, "volume"},
		{"fractional volume", func(r *RawBar) { r.Volume = "1.5" }, "volume"},
		{"volume beyond int64", func(r *RawBar) { r.Volume = "9223372036854775808" }, "volume"},
		{"negative trade count", func(r *RawBar) { r.TradeCount = "-1" }, "trade_count"},
		{"trade count beyond int64", func(r *RawBar) { r.TradeCount = "1e30" }, "trade_count"},
		{"non-numeric vwap", func(r *RawBar) { r.VWAP = "n/a" }, "vwap"},
		{"negative vwap", func(r *RawBar) { r.VWAP = "-0.01" }, "vwap"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(&raw)

			_, err := Normalize(raw)
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			var nerr *NormalizationError
			if !errors.As(err, &nerr) {
				t.Fatalf("error type = %T, want *NormalizationError", err)
			}
			if nerr.Field != tt.field {
				t.Errorf("Field = %q, want %q", nerr.Field, tt.field)
			}
		})
	}
}

// TestNormalizeOrderingInvariant checks every accepted bar against
// low <= open,close <= high over a grid of price combinations.
func TestNormalizeOrderingInvariant(t *testing.T) {
	prices := []string{"1", "9.99", "10", "10.01", "20"}

	for _, o := range prices {
		for _, h := range prices {
			for _, l := range prices {
				for _, c := range prices {
					raw := validRaw()
					raw.Open, raw.High, raw.Low, raw.Close = json.Number(o), json.Number(h), json.Number(l), json.Number(c)

					rec, err := Normalize(raw)

					open := decimal.RequireFromString(o)
					high := decimal.RequireFromString(h)
					low := decimal.RequireFromString(l)
					cl := decimal.RequireFromString(c)
					valid := low.LessThanOrEqual(high) &&
						low.LessThanOrEqual(open) && open.LessThanOrEqual(high) &&
						low.LessThanOrEqual(cl) && cl.LessThanOrEqual(high)

					if valid && err != nil {
						t.Errorf("o=%s h=%s l=%s c=%s: unexpected error %v", o, h, l, c, err)
					}
					if !valid {
						var nerr *NormalizationError
						if !errors.As(err, &nerr) {
							t.Errorf("o=%s h=%s l=%s c=%s: error = %v, want *NormalizationError", o, h, l, c, err)
						}
						continue
					}
					if rec.Low.GreaterThan(rec.Open) || rec.Open.GreaterThan(rec.High) ||
						rec.Low.GreaterThan(rec.Close) || rec.Close.GreaterThan(rec.High) {
						t.Errorf("record %v violates ordering invariant", rec)
					}
				}
			}
		}
	}
}

func TestBarRecordJSONRoundTrip(t *testing.T) {
	orig, err := Normalize(validRaw())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal into map failed: %v", err)
	}
	if _, ok := fields["open"].(float64); !ok {
		t.Errorf("open encoded as %T, want JSON number", fields["open"])
	}
	if fields["timestamp"] != "2024-01-15T10:00:00Z" {
		t.Errorf("timestamp = %v, want 2024-01-15T10:00:00Z", fields["timestamp"])
	}

	var decoded BarRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !decoded.Equal(orig) {
		t.Errorf("round trip = %+v, want %+v", decoded, orig)
	}
}

func TestBarRecordUnmarshalRejectsInvalid(t *testing.T) {
	line := `{"symbol":"AAPL","timestamp":"2024-01-15T10:00:00Z","open":150,"high":140,"low":149,"close":153,"volume":1,"trade_count":0,"vwap":0}`

	var rec BarRecord
	err := json.Unmarshal([]byte(line), &rec)
	var nerr *NormalizationError
	if !errors.As(err, &nerr) {
		t.Fatalf("error = %v, want *NormalizationError", err)
	}
}

func TestChangePercent(t *testing.T) {
	rec, _ := Normalize(validRaw())

	if got := rec.Change().StringFixed(2); got != "3.00" {
		t.Errorf("Change = %s, want 3.00", got)
	}
	if got := rec.ChangePercent().StringFixed(2); got != "2.00" {
		t.Errorf("ChangePercent = %s, want 2.00", got)
	}
}
