package encoder

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kyungseopkim/algorithm-trading/internal/model"
)

// Format is an output encoding.
type Format string

const (
	FormatPlain   Format = "plain"
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// CSVHeader is the first row of every CSV file.
const CSVHeader = "symbol,timestamp,open,high,low,close,volume,trade_count,vwap"

// ErrLineFormat is returned when a columnar format is asked for a text line.
var ErrLineFormat = errors.New("format has no line encoding")

// ParseFormat accepts plain, json, csv and parquet, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPlain, FormatJSON, FormatCSV, FormatParquet:
		return f, nil
	}
	return "", fmt.Errorf("invalid format: %s. Supported: plain, json, csv, parquet", s)
}

// Encode renders one record as a single line without the trailing newline.
func Encode(rec model.BarRecord, f Format) (string, error) {
	switch f {
	case FormatPlain:
		return encodePlain(rec), nil
	case FormatJSON:
		data, err := json.Marshal(rec)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case FormatCSV:
		var sb strings.Builder
		w := csv.NewWriter(&sb)
		if err := w.Write(csvFields(rec)); err != nil {
			return "", err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return "", err
		}
		return strings.TrimSuffix(sb.String(), "\n"), nil
	case FormatParquet:
		return "", fmt.Errorf("%s: %w", f, ErrLineFormat)
	}
	return "", fmt.Errorf("unknown format %q", f)
}

func encodePlain(rec model.BarRecord) string {
	return fmt.Sprintf("%s: %s | O: $%s H: $%s L: $%s C: $%s | Vol: %d | Change: $%s (%s%%)",
		rec.Symbol,
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.Open.StringFixed(2),
		rec.High.StringFixed(2),
		rec.Low.StringFixed(2),
		rec.Close.StringFixed(2),
		rec.Volume,
		rec.Change().StringFixed(2),
		rec.ChangePercent().StringFixed(2),
	)
}

// csvPrice pads to cents but never rounds: sub-penny prices keep every digit.
func csvPrice(d decimal.Decimal) string {
	if d.Equal(d.Round(2)) {
		return d.StringFixed(2)
	}
	return d.String()
}

func csvFields(rec model.BarRecord) []string {
	return []string{
		rec.Symbol,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		csvPrice(rec.Open),
		csvPrice(rec.High),
		csvPrice(rec.Low),
		csvPrice(rec.Close),
		strconv.FormatInt(rec.Volume, 10),
		strconv.FormatInt(rec.TradeCount, 10),
		rec.VWAP.String(),
	}
}
