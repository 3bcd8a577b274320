// historical downloads bars for a date range and writes them to stdout or a file.
// Usage: go run ./cmd/historical -symbols AAPL,MSFT -start 2024-01-01 -end 2024-01-31 -timeframe 1Hour -format csv -output bars.csv
//
// Credentials are read from APCA_API_KEY_ID and APCA_API_SECRET_KEY (or a .env file).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kyungseopkim/algorithm-trading/internal/auth"
	"github.com/kyungseopkim/algorithm-trading/internal/config"
	"github.com/kyungseopkim/algorithm-trading/internal/database"
	"github.com/kyungseopkim/algorithm-trading/internal/encoder"
	"github.com/kyungseopkim/algorithm-trading/internal/historical"
	"github.com/kyungseopkim/algorithm-trading/internal/logging"
	"github.com/kyungseopkim/algorithm-trading/internal/model"
	"github.com/kyungseopkim/algorithm-trading/internal/version"
	"github.com/kyungseopkim/algorithm-trading/internal/writer"
)

type options struct {
	configPath  string
	symbols     string
	start       string
	end         string
	timeframe   string
	output      string
	format      string
	appendMode  bool
	pageSize    int
	feed        string
	gateway     string
	concurrency int
	retries     int
	useDB       bool

	set map[string]bool // Flags given on the command line
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to config file (default: environment only)")
	flag.StringVar(&opts.symbols, "symbols", "", "comma-separated symbols (required)")
	flag.StringVar(&opts.start, "start", "", "start date, YYYY-MM-DD (required)")
	flag.StringVar(&opts.end, "end", "", "end date, YYYY-MM-DD, inclusive (required)")
	flag.StringVar(&opts.timeframe, "timeframe", config.DefaultTimeframe, "1Min, 5Min, 15Min, 30Min, 1Hour, 1Day, 1Week, 1Month")
	flag.StringVar(&opts.output, "output", "", "output file (default: stdout)")
	flag.StringVar(&opts.format, "format", "plain", "output format: plain, json, csv, parquet")
	flag.BoolVar(&opts.appendMode, "append", false, "append to the output file instead of truncating it")
	flag.IntVar(&opts.pageSize, "page-size", config.DefaultPageSize, "bars per page, at most 10000")
	flag.StringVar(&opts.feed, "feed", config.DefaultHistoricalFeed, "data feed: sip, iex, boats, otc")
	flag.StringVar(&opts.gateway, "gateway", config.DefaultGateway, "historical gateway: rest or sdk")
	flag.IntVar(&opts.concurrency, "concurrency", config.DefaultConcurrency, "symbols fetched in parallel")
	flag.IntVar(&opts.retries, "retries", 0, "resume attempts per failed page (0 disables)")
	flag.BoolVar(&opts.useDB, "db", false, "also write bars to TimescaleDB")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	opts.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	if err := run(opts, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// request validates the range flags and builds the fetch request.
func (o options) request(cfg *config.Config) (historical.Request, error) {
	symbols := model.ParseSymbols(o.symbols)
	if len(symbols) == 0 {
		return historical.Request{}, errors.New("-symbols is required")
	}
	if o.start == "" || o.end == "" {
		return historical.Request{}, errors.New("-start and -end are required")
	}
	dr, err := model.ParseDateRange(o.start, o.end)
	if err != nil {
		return historical.Request{}, err
	}
	tf, err := model.ParseTimeframe(cfg.Historical.Timeframe)
	if err != nil {
		return historical.Request{}, err
	}
	feed, err := model.ParseFeed(cfg.Historical.Feed)
	if err != nil {
		return historical.Request{}, err
	}
	return historical.Request{
		Symbols:   symbols,
		Range:     dr,
		Timeframe: tf,
		Feed:      feed,
		PageSize:  cfg.Historical.PageSize,
	}, nil
}

// apply copies explicitly given flags over the config.
func (o options) apply(cfg *config.Config) {
	if o.set["timeframe"] {
		cfg.Historical.Timeframe = o.timeframe
	}
	if o.set["page-size"] {
		cfg.Historical.PageSize = o.pageSize
	}
	if o.set["feed"] {
		cfg.Historical.Feed = o.feed
	}
	if o.set["gateway"] {
		cfg.Historical.Gateway = o.gateway
	}
	if o.set["concurrency"] {
		cfg.Historical.Concurrency = o.concurrency
	}
	if o.set["retries"] {
		cfg.Historical.Retries = o.retries
	}
	if o.useDB {
		cfg.Database.Enabled = true
	}
}

func run(opts options, stderr io.Writer) error {
	if err := auth.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	req, err := opts.request(cfg)
	if err != nil {
		return err
	}
	format, err := encoder.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	// Set up structured logging
	logger, logCloser, err := logging.New(cfg.Logging, stderr)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	app, err := InitializeApp(cfg, logger)
	if err != nil {
		return err
	}

	sink, err := openSink(opts.output, format, opts.appendMode)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Error("close output", "error", err)
		}
	}()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	var barWriter *writer.BarWriter
	if cfg.Database.Enabled {
		var stopDB func()
		barWriter, stopDB, err = startDBSink(ctx, cfg, string(req.Timeframe), logger)
		if err != nil {
			return err
		}
		defer stopDB()
	}

	printHeader(stderr, req, format, opts.output)

	handler := historical.BarHandlerFunc(func(ctx context.Context, rec model.BarRecord) error {
		if err := sink.Write(rec); err != nil {
			return err
		}
		if barWriter != nil {
			return barWriter.Write(ctx, rec)
		}
		return nil
	})

	result, fetchErr := app.Fetcher.Fetch(ctx, req, handler)

	printSummary(stderr, req, result, opts.output)

	if fetchErr != nil {
		if errors.Is(fetchErr, historical.ErrCancelled) {
			return errors.New("fetch cancelled; output is incomplete")
		}
		return fetchErr
	}
	return nil
}

func openSink(path string, format encoder.Format, appendMode bool) (*encoder.Writer, error) {
	if path == "" {
		return encoder.NewConsole(os.Stdout, format)
	}
	return encoder.Open(path, format, appendMode)
}

func printHeader(w io.Writer, req historical.Request, format encoder.Format, output string) {
	fmt.Fprintln(w, "Historical Data Retrieval")
	fmt.Fprintln(w, "============================")
	fmt.Fprintf(w, "Symbols: %s\n", strings.Join(model.SortedSymbols(req.Symbols), ", "))
	fmt.Fprintf(w, "Date range: %s to %s\n", req.Range.Start.Format(model.DateLayout), req.Range.End.Format(model.DateLayout))
	fmt.Fprintf(w, "Timeframe: %s\n", req.Timeframe)
	fmt.Fprintf(w, "Data feed: %s\n", req.Feed)
	fmt.Fprintf(w, "Output format: %s\n", format)
	if output != "" {
		fmt.Fprintf(w, "Output file: %s\n", output)
	}
	fmt.Fprintln(w)
}

func printSummary(w io.Writer, req historical.Request, result historical.Result, output string) {
	for _, sr := range result.Symbols {
		if sr.Bars == 0 {
			fmt.Fprintf(w, "No data found for symbol: %s\n", sr.Symbol)
			continue
		}
		fmt.Fprintf(w, "Retrieved %d bars for %s\n", sr.Bars, sr.Symbol)
	}
	for _, fl := range result.Failures {
		fmt.Fprintf(w, "Error fetching data for %s: %v\n", fl.Symbol, fl.Err)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary")
	fmt.Fprintln(w, "==========")
	fmt.Fprintf(w, "Total symbols processed: %d\n", len(model.SortedSymbols(req.Symbols)))
	fmt.Fprintf(w, "Total bars retrieved: %d\n", result.Bars)
	if output != "" {
		fmt.Fprintf(w, "Data saved to: %s\n", output)
	}
}

// startDBSink connects the bar writer. The returned func flushes the writer
// and closes the pool.
func startDBSink(ctx context.Context, cfg *config.Config, timeframe string, logger *slog.Logger) (*writer.BarWriter, func(), error) {
	pool, err := database.Connect(ctx, cfg.Database.Timescale)
	if err != nil {
		return nil, nil, fmt.Errorf("connect timescale: %w", err)
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	w := writer.NewBarWriter(writer.Config{
		BatchSize:     cfg.Writer.BatchSize,
		FlushInterval: cfg.Writer.FlushInterval,
		BufferSize:    cfg.Writer.BufferSize,
		Timeframe:     timeframe,
		Source:        "historical",
	}, pool, logger)
	if err := w.Start(context.Background()); err != nil {
		pool.Close()
		return nil, nil, err
	}

	stop := func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := w.Stop(stopCtx); err != nil {
			logger.Error("final database flush failed", "error", err)
		}
		pool.Close()
	}
	return w, stop, nil
}
