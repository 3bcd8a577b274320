package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/kyungseopkim/algorithm-trading/internal/model"
)

// MaxPageLimit is the largest page size the bars endpoint accepts.
const MaxPageLimit = 10000

// GetBarsOptions selects one page of bars for a symbol.
type GetBarsOptions struct {
	Timeframe  model.Timeframe
	Start      time.Time
	End        time.Time // Exclusive
	Limit      int
	PageToken  string
	Feed       model.Feed
	Adjustment string // "raw", "split", "dividend", "all"; empty = provider default
}

// BarsResponse is one page from the single-symbol bars endpoint.
type BarsResponse struct {
	Symbol        string         `json:"symbol"`
	Bars          []model.RawBar `json:"bars"`
	NextPageToken *string        `json:"next_page_token"`
}

// NextToken returns the continuation token, or "" on the last page.
func (r *BarsResponse) NextToken() string {
	if r.NextPageToken == nil {
		return ""
	}
	return *r.NextPageToken
}

// GetBars fetches one page of bars for a single symbol.
func (c *Client) GetBars(ctx context.Context, symbol string, opts GetBarsOptions) (*BarsResponse, error) {
	query := url.Values{}
	query.Set("timeframe", string(opts.Timeframe))
	if !opts.Start.IsZero() {
		query.Set("start", opts.Start.UTC().Format(time.RFC3339))
	}
	if !opts.End.IsZero() {
		query.Set("end", opts.End.UTC().Format(time.RFC3339))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.PageToken != "" {
		query.Set("page_token", opts.PageToken)
	}
	if opts.Feed != "" {
		query.Set("feed", string(opts.Feed))
	}
	if opts.Adjustment != "" {
		query.Set("adjustment", opts.Adjustment)
	}

	var resp BarsResponse
	if err := c.get(ctx, "/stocks/"+url.PathEscape(symbol)+"/bars", query, &resp); err != nil {
		return nil, fmt.Errorf("get bars %s: %w", symbol, err)
	}

	// The single-symbol endpoint omits S on each bar.
	for i := range resp.Bars {
		if resp.Bars[i].Symbol == "" {
			resp.Bars[i].Symbol = symbol
		}
	}

	return &resp, nil
}
