// stream subscribes to real-time minute bars and writes them to stdout or a file.
// Usage: go run ./cmd/stream -symbols AAPL,SPY -format csv -output bars.csv -append
//
// Required environment variables (or a .env file):
//
//	APCA_API_KEY_ID     - API key ID from the Alpaca dashboard
//	APCA_API_SECRET_KEY - API secret key
//
// Optional: APCA_API_BASE_URL, ALPACA_FEED (iex, sip, delayed_sip),
// BAR_SYMBOLS (default AAPL,SPY), LOG_LEVEL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kyungseopkim/algorithm-trading/internal/auth"
	"github.com/kyungseopkim/algorithm-trading/internal/config"
	"github.com/kyungseopkim/algorithm-trading/internal/connection"
	"github.com/kyungseopkim/algorithm-trading/internal/database"
	"github.com/kyungseopkim/algorithm-trading/internal/encoder"
	"github.com/kyungseopkim/algorithm-trading/internal/logging"
	"github.com/kyungseopkim/algorithm-trading/internal/model"
	"github.com/kyungseopkim/algorithm-trading/internal/stream"
	"github.com/kyungseopkim/algorithm-trading/internal/version"
	"github.com/kyungseopkim/algorithm-trading/internal/writer"
)

type options struct {
	configPath string
	output     string
	appendMode bool
	format     string
	symbols    string
	feed       string
	healthAddr string
	useDB      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to config file (default: environment only)")
	flag.StringVar(&opts.output, "output", "", "output file (default: stdout)")
	flag.BoolVar(&opts.appendMode, "append", false, "append to the output file instead of truncating it")
	flag.StringVar(&opts.format, "format", "plain", "output format: plain, json, csv, parquet")
	flag.StringVar(&opts.symbols, "symbols", "", "comma-separated symbols (default: BAR_SYMBOLS or AAPL,SPY)")
	flag.StringVar(&opts.feed, "feed", "", "stream feed: iex, sip, delayed_sip (default: ALPACA_FEED or iex)")
	flag.StringVar(&opts.healthAddr, "health-addr", "", "serve /health on this address (e.g., :8080)")
	flag.BoolVar(&opts.useDB, "db", false, "also write bars to TimescaleDB")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if err := auth.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.symbols != "" {
		cfg.Stream.Symbols = model.ParseSymbols(opts.symbols)
	}
	if opts.feed != "" {
		cfg.Stream.Feed = string(model.ParseStreamFeed(opts.feed))
	}
	if opts.healthAddr != "" {
		cfg.Stream.HealthAddr = opts.healthAddr
	}
	if opts.useDB {
		cfg.Database.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	format, err := encoder.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	// Set up structured logging
	logger, logCloser, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting stream",
		"version", version.Version,
		"commit", version.Commit,
		"feed", cfg.Stream.Feed,
		"symbols", cfg.Stream.Symbols,
		"key_id", cfg.Credentials().Redacted(),
	)

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
		barWriter, stopDB, err = startDBSink(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer stopDB()
	}

	gw := connection.NewStream(connection.StreamConfig{
		Client: connection.ClientConfig{
			URL:              connection.StreamURL(cfg.API.StreamURL, model.Feed(cfg.Stream.Feed)),
			PingTimeout:      cfg.Stream.PingTimeout,
			WriteTimeout:     connection.DefaultClientConfig().WriteTimeout,
			HandshakeTimeout: connection.DefaultClientConfig().HandshakeTimeout,
			BufferSize:       cfg.Stream.BufferSize,
		},
		AuthTimeout: cfg.Stream.AuthTimeout,
		SubTimeout:  cfg.Stream.SubscribeTimeout,
	}, cfg.Credentials(), logger)

	session := stream.NewSession(gw, stream.Config{
		Symbols:          cfg.Stream.Symbols,
		SubscribeTimeout: cfg.Stream.SubscribeTimeout,
		IdleTimeout:      cfg.Stream.IdleTimeout,
		Backoff: stream.NewExponentialBackoff(
			cfg.Stream.ReconnectBaseDelay,
			cfg.Stream.ReconnectMaxDelay,
			uint64(time.Now().UnixNano()),
		),
		BufferSize: cfg.Stream.BufferSize,
	}, logger)

	if cfg.Stream.HealthAddr != "" {
		var dbStatus writerStatus
		if barWriter != nil {
			dbStatus = barWriter
		}
		healthServer := &http.Server{
			Addr:              cfg.Stream.HealthAddr,
			Handler:           createHealthHandler(session, dbStatus),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("starting health server", "addr", cfg.Stream.HealthAddr)
			if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error("health server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			healthServer.Shutdown(shutdownCtx)
		}()
	}

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	for rec := range session.Bars() {
		if err := sink.Write(rec); err != nil {
			cancel()
			session.Stop(context.Background())
			return fmt.Errorf("write bar: %w", err)
		}
		if barWriter != nil {
			if err := barWriter.Write(ctx, rec); err != nil && ctx.Err() == nil {
				logger.Warn("database sink rejected bar", "symbol", rec.Symbol, "error", err)
			}
		}
	}

	stats := session.Stats()
	logger.Info("stream stopped",
		"emitted", stats.Emitted,
		"duplicates", stats.Duplicates,
		"invalid", stats.Invalid,
		"reconnects", stats.Reconnects,
	)

	if err := session.Err(); err != nil && !errors.Is(err, stream.ErrCancelled) {
		return err
	}
	return nil
}

func openSink(path string, format encoder.Format, appendMode bool) (*encoder.Writer, error) {
	if path == "" {
		return encoder.NewConsole(os.Stdout, format)
	}
	fmt.Fprintf(os.Stderr, "Output will be written to: %s in %s format\n", path, format)
	return encoder.Open(path, format, appendMode)
}

// startDBSink connects the bar writer. The returned func flushes the writer
// and closes the pool.
func startDBSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*writer.BarWriter, func(), error) {
	logger.Info("connecting to database",
		"host", cfg.Database.Timescale.Host,
		"port", cfg.Database.Timescale.Port,
		"database", cfg.Database.Timescale.Name,
	)

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
		Timeframe:     string(model.Timeframe1Min),
		Source:        "stream",
	}, pool, logger)

	// Not tied to ctx: Stop drains and flushes after a shutdown signal.
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
