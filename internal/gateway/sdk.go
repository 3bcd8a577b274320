package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/kyungseopkim/algorithm-trading/internal/auth"
	"github.com/kyungseopkim/algorithm-trading/internal/model"
)

// ErrPageTokenUnsupported is returned when a resume token is passed to a
// gateway that pages internally.
var ErrPageTokenUnsupported = errors.New("page tokens are not supported by this gateway")

// barsClient is the subset of *marketdata.Client used here.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// SDK serves historical queries through the official marketdata client.
// The SDK follows page tokens itself, so every query returns a single page
// with an empty continuation token.
type SDK struct {
	client barsClient
}

// NewSDK creates an SDK gateway. baseURL may carry a trailing /v2, which the
// SDK adds on its own.
func NewSDK(creds auth.Credentials, baseURL string) *SDK {
	opts := marketdata.ClientOpts{
		APIKey:    creds.KeyID,
		APISecret: creds.SecretKey,
	}
	if baseURL != "" {
		opts.BaseURL = strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/v2")
	}
	return &SDK{client: marketdata.NewClient(opts)}
}

// QueryHistorical fetches every bar in the query window.
func (g *SDK) QueryHistorical(ctx context.Context, q HistoricalQuery) (Page, error) {
	if q.PageToken != "" {
		return Page{}, ErrPageTokenUnsupported
	}
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	tf, err := sdkTimeFrame(q.Timeframe)
	if err != nil {
		return Page{}, err
	}

	bars, err := g.client.GetBars(q.Symbol, marketdata.GetBarsRequest{
		TimeFrame: tf,
		Start:     q.Start,
		End:       q.End,
		PageLimit: q.PageSize,
		Feed:      marketdata.Feed(q.Feed),
	})
	if err != nil {
		return Page{}, fmt.Errorf("sdk get bars %s: %w", q.Symbol, err)
	}

	raw := make([]model.RawBar, 0, len(bars))
	for _, b := range bars {
		raw = append(raw, model.RawBar{
			Symbol:     q.Symbol,
			Timestamp:  b.Timestamp.UTC().Format(time.RFC3339Nano),
			Open:       floatNumber(b.Open),
			High:       floatNumber(b.High),
			Low:        floatNumber(b.Low),
			Close:      floatNumber(b.Close),
			Volume:     json.Number(fmt.Sprint(b.Volume)),
			TradeCount: json.Number(fmt.Sprint(b.TradeCount)),
			VWAP:       floatNumber(b.VWAP),
		})
	}
	return Page{Bars: raw}, nil
}

func floatNumber(f float64) json.Number {
	return json.Number(strconv.FormatFloat(f, 'f', -1, 64))
}

func sdkTimeFrame(tf model.Timeframe) (marketdata.TimeFrame, error) {
	switch tf {
	case model.Timeframe1Min:
		return marketdata.NewTimeFrame(1, marketdata.Min), nil
	case model.Timeframe5Min:
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case model.Timeframe15Min:
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case model.Timeframe30Min:
		return marketdata.NewTimeFrame(30, marketdata.Min), nil
	case model.Timeframe1Hour:
		return marketdata.NewTimeFrame(1, marketdata.Hour), nil
	case model.Timeframe1Day:
		return marketdata.NewTimeFrame(1, marketdata.Day), nil
	case model.Timeframe1Week:
		return marketdata.NewTimeFrame(1, marketdata.Week), nil
	case model.Timeframe1Month:
		return marketdata.NewTimeFrame(1, marketdata.Month), nil
	}
	return marketdata.TimeFrame{}, fmt.Errorf("unsupported timeframe %q", tf)
}
