package writer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/kyungseopkim/algorithm-trading/internal/model"
)

// ErrStopped is returned by Write after Stop.
var ErrStopped = errors.New("bar writer stopped")

const insertBar = `
	INSERT INTO bars (symbol, timeframe, ts, open, high, low, close, volume, trade_count, vwap, source, batch_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (symbol, timeframe, ts) DO NOTHING
`

// DB is the subset of *pgxpool.Pool used by the writer.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// BarWriter consumes bar records and writes them to the bars table in batches.
type BarWriter struct {
	cfg    Config
	logger *slog.Logger

	input chan model.BarRecord
	db    DB

	// Batching
	batch   []barRow
	batchMu sync.Mutex

	// Lifecycle. Loop flushes run on flushCtx, which Stop does not cancel,
	// so an insert in flight at shutdown completes.
	ctx      context.Context
	cancel   context.CancelFunc
	flushCtx context.Context
	wg       sync.WaitGroup
	stopped  chan struct{}
	stopOnce sync.Once

	// Metrics
	metrics Metrics
}

// NewBarWriter creates a new BarWriter.
func NewBarWriter(cfg Config, db DB, logger *slog.Logger) *BarWriter {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = def.Timeframe
	}
	if cfg.Source == "" {
		cfg.Source = def.Source
	}
	return &BarWriter{
		cfg:     cfg,
		db:      db,
		logger:  logger.With("component", "bar_writer", "source", cfg.Source),
		input:   make(chan model.BarRecord, cfg.BufferSize),
		batch:   make([]barRow, 0, cfg.BatchSize),
		stopped: make(chan struct{}),
	}
}

// Start begins consuming records and writing to the database.
func (w *BarWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushCtx = context.WithoutCancel(ctx)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("bar writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Write queues a record, blocking while the queue is full.
func (w *BarWriter) Write(ctx context.Context, rec model.BarRecord) error {
	select {
	case <-w.stopped:
		return ErrStopped
	default:
	}
	select {
	case w.input <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stopped:
		return ErrStopped
	}
}

// Stop drains queued records, performs a final flush and shuts down.
// The final flush uses ctx, so it still runs after the Start context ends.
func (w *BarWriter) Stop(ctx context.Context) error {
	var err error
	w.stopOnce.Do(func() {
		w.logger.Info("stopping bar writer")
		close(w.stopped)

		if w.cancel != nil {
			w.cancel()
		}

		// Wait for goroutines
		done := make(chan struct{})
		go func() {
			w.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			w.logger.Warn("bar writer stop timed out")
		}

		w.drain()
		err = w.flush(ctx)

		stats := w.Stats()
		w.logger.Info("bar writer stopped",
			"inserts", stats.Inserts,
			"conflicts", stats.Conflicts,
			"errors", stats.Errors,
		)
	})
	return err
}

// Stats returns current metrics.
func (w *BarWriter) Stats() Metrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input queue and accumulates batches.
func (w *BarWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case rec := <-w.input:
			w.handle(rec)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *BarWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.flushCtx)
		}
	}
}

func (w *BarWriter) drain() {
	for {
		select {
		case rec := <-w.input:
			w.add(rec)
		default:
			return
		}
	}
}

// handle adds a record to the batch and flushes when it is full.
func (w *BarWriter) handle(rec model.BarRecord) {
	if w.add(rec) {
		w.flush(w.flushCtx)
	}
}

func (w *BarWriter) add(rec model.BarRecord) (full bool) {
	row := w.transform(rec)

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, row)
	return len(w.batch) >= w.cfg.BatchSize
}

// transform converts a BarRecord to a barRow.
func (w *BarWriter) transform(rec model.BarRecord) barRow {
	return barRow{
		Symbol:     rec.Symbol,
		Timeframe:  w.cfg.Timeframe,
		Ts:         rec.Timestamp.UTC(),
		Open:       numeric(rec.Open),
		High:       numeric(rec.High),
		Low:        numeric(rec.Low),
		Close:      numeric(rec.Close),
		Volume:     rec.Volume,
		TradeCount: rec.TradeCount,
		VWAP:       numeric(rec.VWAP),
		Source:     w.cfg.Source,
	}
}

// flush writes the current batch to the database. Rows of a batch that
// failed because ctx ended are put back for the next flush.
func (w *BarWriter) flush(ctx context.Context) error {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return nil
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]barRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()
	batchID := uuid.New()

	conflicts, err := w.batchInsert(ctx, batchID, batch)
	if err != nil {
		requeue := ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		w.logger.Error("batch insert failed",
			"error", err,
			"count", len(batch),
			"batch_id", batchID,
			"requeued", requeue,
		)
		w.batchMu.Lock()
		w.metrics.Errors++
		if requeue {
			w.batch = append(batch, w.batch...)
		}
		w.batchMu.Unlock()
		return err
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.metrics.LastBatchID = batchID.String()
	w.batchMu.Unlock()

	w.logger.Debug("flushed bars",
		"count", len(batch),
		"conflicts", conflicts,
		"batch_id", batchID,
		"duration", time.Since(start),
	)
	return nil
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *BarWriter) batchInsert(ctx context.Context, batchID uuid.UUID, rows []barRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertBar,
			r.Symbol, r.Timeframe, r.Ts, r.Open, r.High, r.Low, r.Close,
			r.Volume, r.TradeCount, r.VWAP, r.Source, batchID)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}
