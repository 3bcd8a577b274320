package encoder

import (
	"encoding/json"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"github.com/kyungseopkim/algorithm-trading/internal/model"
)

// Row is the parquet shape of a bar. Prices are doubles and the timestamp
// is Unix milliseconds.
type Row struct {
	Symbol     string  `parquet:"symbol"`
	Timestamp  int64   `parquet:"t"`
	Open       float64 `parquet:"o"`
	High       float64 `parquet:"h"`
	Low        float64 `parquet:"l"`
	Close      float64 `parquet:"c"`
	Volume     int64   `parquet:"v"`
	TradeCount int64   `parquet:"n,optional"`
	VWAP       float64 `parquet:"vw,optional"`
}

// ToRow converts a record.
func ToRow(rec model.BarRecord) Row {
	return Row{
		Symbol:     rec.Symbol,
		Timestamp:  rec.Timestamp.UnixMilli(),
		Open:       rec.Open.InexactFloat64(),
		High:       rec.High.InexactFloat64(),
		Low:        rec.Low.InexactFloat64(),
		Close:      rec.Close.InexactFloat64(),
		Volume:     rec.Volume,
		TradeCount: rec.TradeCount,
		VWAP:       rec.VWAP.InexactFloat64(),
	}
}

// Record converts a row back, normalizing it like any other raw bar.
func (r Row) Record() (model.BarRecord, error) {
	num := func(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }
	raw := model.RawBar{
		Symbol:    r.Symbol,
		Timestamp: time.UnixMilli(r.Timestamp).UTC().Format(time.RFC3339Nano),
		Open:      jsonNumber(num(r.Open)),
		High:      jsonNumber(num(r.High)),
		Low:       jsonNumber(num(r.Low)),
		Close:     jsonNumber(num(r.Close)),
		Volume:    jsonNumber(decimal.NewFromInt(r.Volume)),
	}
	if r.TradeCount != 0 {
		raw.TradeCount = jsonNumber(decimal.NewFromInt(r.TradeCount))
	}
	if r.VWAP != 0 {
		raw.VWAP = jsonNumber(num(r.VWAP))
	}
	return model.Normalize(raw)
}

// WriteParquet writes rows to path, replacing any existing file.
func WriteParquet(path string, rows []Row) error {
	return parquet.WriteFile(path, rows)
}

// ReadParquet loads every row from path.
func ReadParquet(path string) ([]Row, error) {
	return parquet.ReadFile[Row](path)
}

func jsonNumber(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
