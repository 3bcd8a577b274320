package model

import (
	"fmt"
	"sort"
	"strings"
)

// Timeframe is the aggregation interval of a bar.
type Timeframe string

const (
	Timeframe1Min   Timeframe = "1Min"
	Timeframe5Min   Timeframe = "5Min"
	Timeframe15Min  Timeframe = "15Min"
	Timeframe30Min  Timeframe = "30Min"
	Timeframe1Hour  Timeframe = "1Hour"
	Timeframe1Day   Timeframe = "1Day"
	Timeframe1Week  Timeframe = "1Week"
	Timeframe1Month Timeframe = "1Month"
)

// ParseTimeframe accepts any supported timeframe case-insensitively, plus the
// short aliases 1h, 1d, 1w and 1m (month).
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1min":
		return Timeframe1Min, nil
	case "5min":
		return Timeframe5Min, nil
	case "15min":
		return Timeframe15Min, nil
	case "30min":
		return Timeframe30Min, nil
	case "1hour", "1h":
		return Timeframe1Hour, nil
	case "1day", "1d":
		return Timeframe1Day, nil
	case "1week", "1w":
		return Timeframe1Week, nil
	case "1month", "1m":
		return Timeframe1Month, nil
	}
	return "", fmt.Errorf("invalid timeframe: %s. Supported: 1Min, 5Min, 15Min, 30Min, 1Hour, 1Day, 1Week, 1Month", s)
}

// Feed is the upstream aggregation venue.
type Feed string

const (
	FeedSIP        Feed = "sip"
	FeedIEX        Feed = "iex"
	FeedBOATS      Feed = "boats"
	FeedOTC        Feed = "otc"
	FeedDelayedSIP Feed = "delayed_sip"
)

// ParseFeed validates a historical data feed.
func ParseFeed(s string) (Feed, error) {
	switch f := Feed(strings.ToLower(strings.TrimSpace(s))); f {
	case FeedSIP, FeedIEX, FeedBOATS, FeedOTC:
		return f, nil
	}
	return "", fmt.Errorf("invalid feed: %s. Supported: sip, iex, boats, otc", s)
}

// ParseStreamFeed validates a real-time feed. Unknown or empty values fall
// back to iex, matching the provider's free tier.
func ParseStreamFeed(s string) Feed {
	switch f := Feed(strings.ToLower(strings.TrimSpace(s))); f {
	case FeedSIP, FeedDelayedSIP:
		return f
	}
	return FeedIEX
}

// ParseSymbols splits a comma-separated list, trimming and upper-casing each
// entry. Empty entries and repeats are dropped; first-seen order is kept.
func ParseSymbols(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(s, ",") {
		sym := strings.ToUpper(strings.TrimSpace(part))
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

// SortedSymbols returns a deduplicated, ascending copy of symbols.
func SortedSymbols(symbols []string) []string {
	out := ParseSymbols(strings.Join(symbols, ","))
	sort.Strings(out)
	return out
}
