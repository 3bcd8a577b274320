package gateway

import (
	"context"

	"github.com/kyungseopkim/algorithm-trading/internal/api"
)

// REST serves historical queries from the market data REST API.
type REST struct {
	client     *api.Client
	adjustment string
}

// NewREST wraps an API client. adjustment may be empty for the provider default.
func NewREST(client *api.Client, adjustment string) *REST {
	return &REST{client: client, adjustment: adjustment}
}

// QueryHistorical fetches one page.
func (g *REST) QueryHistorical(ctx context.Context, q HistoricalQuery) (Page, error) {
	resp, err := g.client.GetBars(ctx, q.Symbol, api.GetBarsOptions{
		Timeframe:  q.Timeframe,
		Start:      q.Start,
		End:        q.End,
		Limit:      q.PageSize,
		PageToken:  q.PageToken,
		Feed:       q.Feed,
		Adjustment: g.adjustment,
	})
	if err != nil {
		return Page{}, err
	}
	return Page{Bars: resp.Bars, NextPageToken: resp.NextToken()}, nil
}
