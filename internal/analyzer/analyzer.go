// Package analyzer reads encoder output back and summarizes it per symbol.
package analyzer

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kyungseopkim/algorithm-trading/internal/encoder"
	"github.com/kyungseopkim/algorithm-trading/internal/model"
)

// ErrPlainUnsupported is returned for plain text input.
var ErrPlainUnsupported = errors.New("plain text format analysis is not supported; convert to json or csv first")

// DefaultTop is the number of symbols listed in a report.
const DefaultTop = 10

// SymbolStats summarizes one symbol.
type SymbolStats struct {
	Symbol      string
	Count       int
	First       time.Time
	Last        time.Time
	Low         decimal.Decimal // Lowest low
	High        decimal.Decimal // Highest high
	TotalVolume int64

	closeSum  decimal.Decimal
	prevClose decimal.Decimal

	// Welford accumulators over close-to-close returns
	returns int
	mean    float64
	m2      float64
}

// MeanClose returns the average close.
func (s *SymbolStats) MeanClose() decimal.Decimal {
	if s.Count == 0 {
		return decimal.Zero
	}
	return s.closeSum.Div(decimal.NewFromInt(int64(s.Count)))
}

// Volatility returns the sample standard deviation of close-to-close
// returns, or 0 with fewer than two returns.
func (s *SymbolStats) Volatility() float64 {
	if s.returns < 2 {
		return 0
	}
	return math.Sqrt(s.m2 / float64(s.returns-1))
}

func (s *SymbolStats) add(rec model.BarRecord) {
	if s.Count == 0 {
		s.First, s.Last = rec.Timestamp, rec.Timestamp
		s.Low, s.High = rec.Low, rec.High
	} else {
		if rec.Timestamp.Before(s.First) {
			s.First = rec.Timestamp
		}
		if rec.Timestamp.After(s.Last) {
			s.Last = rec.Timestamp
		}
		if rec.Low.LessThan(s.Low) {
			s.Low = rec.Low
		}
		if rec.High.GreaterThan(s.High) {
			s.High = rec.High
		}

		r, _ := rec.Close.Sub(s.prevClose).Div(s.prevClose).Float64()
		s.returns++
		delta := r - s.mean
		s.mean += delta / float64(s.returns)
		s.m2 += delta * (r - s.mean)
	}

	s.Count++
	s.TotalVolume += rec.Volume
	s.closeSum = s.closeSum.Add(rec.Close)
	s.prevClose = rec.Close
}

// Report is the result of an analysis.
type Report struct {
	Total   int
	Skipped int
	Symbols map[string]*SymbolStats
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{Symbols: make(map[string]*SymbolStats)}
}

// Add folds one record into the report.
func (r *Report) Add(rec model.BarRecord) {
	st, ok := r.Symbols[rec.Symbol]
	if !ok {
		st = &SymbolStats{Symbol: rec.Symbol}
		r.Symbols[rec.Symbol] = st
	}
	st.add(rec)
	r.Total++
}

// Ranked returns symbols by descending bar count, then name.
func (r *Report) Ranked() []*SymbolStats {
	out := make([]*SymbolStats, 0, len(r.Symbols))
	for _, st := range r.Symbols {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Print writes a human readable summary listing at most top symbols.
func (r *Report) Print(w io.Writer, top int) {
	if top <= 0 {
		top = DefaultTop
	}

	fmt.Fprintln(w, "Data Analysis Summary")
	fmt.Fprintln(w, "========================")
	fmt.Fprintf(w, "Total bars: %d\n", r.Total)
	fmt.Fprintf(w, "Skipped lines: %d\n", r.Skipped)
	fmt.Fprintf(w, "Symbols: %d\n", len(r.Symbols))

	if len(r.Symbols) == 0 {
		return
	}

	fmt.Fprintln(w, "\nSymbol breakdown:")
	ranked := r.Ranked()
	for i, st := range ranked {
		if i == top {
			break
		}
		fmt.Fprintf(w, "  %s: %d bars | %s .. %s | Low: $%s High: $%s | Mean close: $%s | Volatility: %.4f%% | Volume: %d\n",
			st.Symbol,
			st.Count,
			st.First.Format(time.RFC3339),
			st.Last.Format(time.RFC3339),
			st.Low.StringFixed(2),
			st.High.StringFixed(2),
			st.MeanClose().StringFixed(2),
			st.Volatility()*100,
			st.TotalVolume,
		)
	}
	if len(ranked) > top {
		fmt.Fprintf(w, "  ... and %d more\n", len(ranked)-top)
	}
}

// Analyzer reads encoded bar files.
type Analyzer struct {
	logger *slog.Logger
}

// New creates an Analyzer.
func New(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger}
}

// AnalyzeFile reads path in the given format.
func (a *Analyzer) AnalyzeFile(path string, format encoder.Format) (*Report, error) {
	switch format {
	case encoder.FormatPlain:
		return nil, ErrPlainUnsupported
	case encoder.FormatParquet:
		return a.analyzeParquet(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	return a.Analyze(f, format)
}

// Analyze reads a JSON-lines or CSV stream. Lines that do not decode into a
// valid bar are counted as skipped.
func (a *Analyzer) Analyze(r io.Reader, format encoder.Format) (*Report, error) {
	switch format {
	case encoder.FormatJSON:
		return a.analyzeJSON(r)
	case encoder.FormatCSV:
		return a.analyzeCSV(r)
	case encoder.FormatPlain:
		return nil, ErrPlainUnsupported
	}
	return nil, fmt.Errorf("unsupported input format %q", format)
}

func (a *Analyzer) analyzeJSON(r io.Reader) (*Report, error) {
	report := NewReport()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "{") {
			report.Skipped++
			continue
		}

		var rec model.BarRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			a.logger.Debug("skipping line", "line", lineNo, "error", err)
			report.Skipped++
			continue
		}
		report.Add(rec)
	}
	if err := sc.Err(); err != nil {
		return report, fmt.Errorf("read input: %w", err)
	}
	return report, nil
}

func (a *Analyzer) analyzeCSV(r io.Reader) (*Report, error) {
	report := NewReport()

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	lineNo := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		lineNo++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				report.Skipped++
				continue
			}
			return report, fmt.Errorf("read input: %w", err)
		}
		if strings.Join(row, ",") == encoder.CSVHeader {
			continue
		}
		if len(row) < 7 {
			report.Skipped++
			continue
		}

		raw := model.RawBar{
			Symbol:    row[0],
			Timestamp: row[1],
			Open:      json.Number(row[2]),
			High:      json.Number(row[3]),
			Low:       json.Number(row[4]),
			Close:     json.Number(row[5]),
			Volume:    json.Number(row[6]),
		}
		if len(row) > 7 {
			raw.TradeCount = json.Number(row[7])
		}
		if len(row) > 8 {
			raw.VWAP = json.Number(row[8])
		}

		rec, err := model.Normalize(raw)
		if err != nil {
			a.logger.Debug("skipping row", "line", lineNo, "error", err)
			report.Skipped++
			continue
		}
		report.Add(rec)
	}
	return report, nil
}

func (a *Analyzer) analyzeParquet(path string) (*Report, error) {
	rows, err := encoder.ReadParquet(path)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}

	report := NewReport()
	for i, row := range rows {
		rec, err := row.Record()
		if err != nil {
			a.logger.Debug("skipping row", "row", i, "error", err)
			report.Skipped++
			continue
		}
		report.Add(rec)
	}
	return report, nil
}
