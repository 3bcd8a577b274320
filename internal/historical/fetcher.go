package historical

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kyungseopkim/algorithm-trading/internal/api"
	"github.com/kyungseopkim/algorithm-trading/internal/gateway"
	"github.com/kyungseopkim/algorithm-trading/internal/model"
)

const (
	// DefaultPageSize is used when a request leaves PageSize unset.
	DefaultPageSize = 1000

	// MaxPageSize is the provider's page limit. Larger requests are clamped.
	MaxPageSize = api.MaxPageLimit

	// DefaultPageDelay spaces consecutive page requests for one symbol.
	DefaultPageDelay = 100 * time.Millisecond
)

// Request describes one historical fetch.
type Request struct {
	Symbols   []string
	Range     model.DateRange
	Timeframe model.Timeframe
	Feed      model.Feed
	PageSize  int
}

// BarHandler receives bars in order. Returning an error aborts the symbol.
type BarHandler interface {
	HandleBar(ctx context.Context, rec model.BarRecord) error
}

// BarHandlerFunc adapts a function to BarHandler.
type BarHandlerFunc func(ctx context.Context, rec model.BarRecord) error

func (f BarHandlerFunc) HandleBar(ctx context.Context, rec model.BarRecord) error {
	return f(ctx, rec)
}

// SymbolResult summarizes one symbol.
type SymbolResult struct {
	Symbol    string
	Bars      int
	Pages     int
	Last      time.Time // Timestamp of the last emitted bar
	PageToken string    // Token of the page being fetched when an error stopped the symbol
}

// SymbolFailure records a symbol skipped under WithKeepGoing.
type SymbolFailure struct {
	Symbol string
	Err    error
}

// Result summarizes a fetch.
type Result struct {
	Symbols  []SymbolResult
	Failures []SymbolFailure
	Bars     int
	Pages    int
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithConcurrency fetches up to n symbols at once. Handler calls stay
// serialized and each symbol keeps its own order.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithPageDelay sets the minimum spacing between page requests of a symbol.
// Zero disables pacing.
func WithPageDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		if d >= 0 {
			f.pageDelay = d
		}
	}
}

// WithKeepGoing records per-symbol failures and moves on to the next symbol
// instead of stopping. Cancellation still stops the whole fetch.
func WithKeepGoing(keepGoing bool) Option {
	return func(f *Fetcher) {
		f.keepGoing = keepGoing
	}
}

// WithResume retries a failed page request from its own page token using
// the backoff policy returned by newBackOff. Non-retryable API errors are
// not retried. Retries are off by default.
func WithResume(newBackOff func() backoff.BackOff) Option {
	return func(f *Fetcher) {
		f.newBackOff = newBackOff
	}
}

// Fetcher pages historical bars through a gateway.
type Fetcher struct {
	gw          gateway.HistoricalGateway
	logger      *slog.Logger
	concurrency int
	pageDelay   time.Duration
	keepGoing   bool
	newBackOff  func() backoff.BackOff
}

// New creates a Fetcher.
func New(gw gateway.HistoricalGateway, opts ...Option) *Fetcher {
	f := &Fetcher{
		gw:          gw,
		logger:      slog.Default(),
		concurrency: 1,
		pageDelay:   DefaultPageDelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// PageSize applies the page size policy: unset means DefaultPageSize and
// anything above MaxPageSize is clamped with a warning.
func PageSize(n int, logger *slog.Logger) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		if logger != nil {
			logger.Warn("page size above provider limit, clamping",
				"requested", n,
				"max", MaxPageSize,
			)
		}
		return MaxPageSize
	}
	return n
}

// Fetch retrieves every bar for every requested symbol. Symbols are
// deduplicated and processed in ascending order; with concurrency 1 the
// handler sees bars ordered by (symbol, timestamp).
func (f *Fetcher) Fetch(ctx context.Context, req Request, h BarHandler) (Result, error) {
	symbols := model.SortedSymbols(req.Symbols)
	req.PageSize = PageSize(req.PageSize, f.logger)

	var result Result
	if len(symbols) == 0 {
		return result, nil
	}

	f.logger.Info("historical fetch starting",
		"symbols", len(symbols),
		"range", req.Range.String(),
		"timeframe", req.Timeframe,
		"page_size", req.PageSize,
		"concurrency", f.concurrency,
	)

	if f.concurrency <= 1 || len(symbols) == 1 {
		return f.fetchSequential(ctx, req, symbols, h)
	}
	return f.fetchConcurrent(ctx, req, symbols, h)
}

func (f *Fetcher) fetchSequential(ctx context.Context, req Request, symbols []string, h BarHandler) (Result, error) {
	var result Result
	var errs []error

	for _, sym := range symbols {
		sr, err := f.FetchSymbol(ctx, req, sym, Position{}, h)
		result.add(sr)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrCancelled) || !f.keepGoing {
			return result, err
		}
		f.logger.Error("symbol failed, continuing", "symbol", sym, "error", err)
		result.Failures = append(result.Failures, SymbolFailure{Symbol: sym, Err: err})
		errs = append(errs, err)
	}

	return result, errors.Join(errs...)
}

func (f *Fetcher) fetchConcurrent(ctx context.Context, req Request, symbols []string, h BarHandler) (Result, error) {
	var (
		mu     sync.Mutex // Guards result and serializes handler calls
		result Result
	)
	serial := BarHandlerFunc(func(ctx context.Context, rec model.BarRecord) error {
		mu.Lock()
		defer mu.Unlock()
		return h.HandleBar(ctx, rec)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for _, sym := range symbols {
		g.Go(func() error {
			sr, err := f.FetchSymbol(gctx, req, sym, Position{}, serial)

			mu.Lock()
			defer mu.Unlock()
			result.add(sr)
			if err == nil {
				return nil
			}
			if f.keepGoing && !errors.Is(err, ErrCancelled) {
				f.logger.Error("symbol failed, continuing", "symbol", sym, "error", err)
				result.Failures = append(result.Failures, SymbolFailure{Symbol: sym, Err: err})
				return nil
			}
			return err
		})
	}

	err := g.Wait()

	sort.Slice(result.Symbols, func(i, j int) bool { return result.Symbols[i].Symbol < result.Symbols[j].Symbol })
	sort.Slice(result.Failures, func(i, j int) bool { return result.Failures[i].Symbol < result.Failures[j].Symbol })

	if err != nil {
		return result, err
	}

	errs := make([]error, 0, len(result.Failures))
	for _, fl := range result.Failures {
		errs = append(errs, fl.Err)
	}
	return result, errors.Join(errs...)
}

func (r *Result) add(sr SymbolResult) {
	if sr.Symbol == "" {
		return
	}
	r.Symbols = append(r.Symbols, sr)
	r.Bars += sr.Bars
	r.Pages += sr.Pages
}

// Position is where FetchSymbol starts. After is the timestamp of the last
// bar already handled; bars older than it are an ordering violation. The
// zero Position is the first page.
type Position struct {
	PageToken string
	After     time.Time
}

// FetchSymbol pages one symbol starting at from. It is the restart point
// after a FetchError, see FetchError.Position.
func (f *Fetcher) FetchSymbol(ctx context.Context, req Request, symbol string, from Position, h BarHandler) (SymbolResult, error) {
	sr := SymbolResult{Symbol: symbol, Last: from.After}
	logger := f.logger.With("symbol", symbol)

	var limiter *rate.Limiter
	if f.pageDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(f.pageDelay), 1)
	}

	q := gateway.HistoricalQuery{
		Symbol:    symbol,
		Timeframe: req.Timeframe,
		Feed:      req.Feed,
		Start:     req.Range.Start,
		End:       req.Range.QueryEnd(),
		PageSize:  PageSize(req.PageSize, nil),
		PageToken: from.PageToken,
	}

	prev := from.After
	for {
		sr.PageToken = q.PageToken

		if err := ctxErr(ctx); err != nil {
			return sr, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				if cerr := ctxErr(ctx); cerr != nil {
					return sr, cerr
				}
				return sr, fmt.Errorf("pace %s: %w", symbol, err)
			}
		}

		page, err := f.query(ctx, q)
		if err != nil {
			if cerr := ctxErr(ctx); cerr != nil {
				return sr, cerr
			}
			return sr, &FetchError{Symbol: symbol, PageToken: q.PageToken, Last: sr.Last, Err: err}
		}
		sr.Pages++

		logger.Debug("page received",
			"page_token", q.PageToken,
			"bars", len(page.Bars),
			"next_page_token", page.NextPageToken,
		)

		for _, raw := range page.Bars {
			if raw.Symbol == "" {
				raw.Symbol = symbol
			}
			rec, err := model.Normalize(raw)
			if err != nil {
				return sr, &BarError{Symbol: symbol, PageToken: q.PageToken, Err: err}
			}
			if !prev.IsZero() && rec.Timestamp.Before(prev) {
				return sr, &OrderingViolation{Symbol: symbol, PageToken: q.PageToken, Prev: prev, Got: rec.Timestamp}
			}
			if err := h.HandleBar(ctx, rec); err != nil {
				if cerr := ctxErr(ctx); cerr != nil {
					return sr, cerr
				}
				return sr, &BarError{Symbol: symbol, PageToken: q.PageToken, Err: err}
			}
			prev = rec.Timestamp
			sr.Last = rec.Timestamp
			sr.Bars++
		}

		if page.NextPageToken == "" {
			sr.PageToken = ""
			logger.Info("symbol complete", "bars", sr.Bars, "pages", sr.Pages)
			return sr, nil
		}
		q.PageToken = page.NextPageToken
	}
}

// query runs one page request, retrying from the same token when a resume
// policy is configured.
func (f *Fetcher) query(ctx context.Context, q gateway.HistoricalQuery) (gateway.Page, error) {
	if f.newBackOff == nil {
		return f.gw.QueryHistorical(ctx, q)
	}

	var page gateway.Page
	op := func() error {
		var err error
		page, err = f.gw.QueryHistorical(ctx, q)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Warn("page request failed, resuming",
			"symbol", q.Symbol,
			"page_token", q.PageToken,
			"wait", wait,
			"error", err,
		)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(f.newBackOff(), ctx), notify)
	return page, err
}

func retryable(err error) bool {
	if errors.Is(err, gateway.ErrPageTokenUnsupported) {
		return false
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return true
}
