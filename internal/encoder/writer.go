package encoder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/kyungseopkim/algorithm-trading/internal/model"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("writer closed")

// Writer is a sink for bar records. All methods are safe for concurrent
// use; each record is written as one complete line.
type Writer struct {
	mu     sync.Mutex
	format Format
	out    io.Writer
	file   *os.File // nil for console sinks
	csv    *csv.Writer

	// Parquet is not appendable line by line, rows are written on Close.
	path string
	rows []Row

	written int
	closed  bool
}

// NewConsole writes to w. CSV output starts with the header row.
func NewConsole(w io.Writer, format Format) (*Writer, error) {
	if format == FormatParquet {
		return nil, fmt.Errorf("%s output needs a file", format)
	}
	wr := &Writer{format: format, out: w}
	if format == FormatCSV {
		wr.csv = csv.NewWriter(w)
		if err := wr.writeLine(CSVHeader); err != nil {
			return nil, err
		}
	}
	return wr, nil
}

// Open creates a file sink. With append the file is extended, otherwise it
// is truncated. The CSV header is written only when the file ends up empty,
// so appending never duplicates it. Parquet files cannot be appended.
func Open(path string, format Format, appendMode bool) (*Writer, error) {
	if format == FormatParquet {
		if appendMode {
			return nil, fmt.Errorf("%s output does not support append", format)
		}
		return &Writer{format: format, path: path}, nil
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat output: %w", err)
	}

	w := &Writer{format: format, out: f, file: f, path: path}
	if format == FormatCSV {
		w.csv = csv.NewWriter(f)
		if info.Size() == 0 {
			if err := w.writeLine(CSVHeader); err != nil {
				f.Close()
				return nil, err
			}
		}
	}
	return w, nil
}

// Format returns the sink format.
func (w *Writer) Format() Format { return w.format }

// Written returns the number of records written so far.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Write appends one record.
func (w *Writer) Write(rec model.BarRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.write(rec)
}

// WriteBatch appends records in order under a single lock.
func (w *Writer) WriteBatch(recs []model.BarRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, rec := range recs {
		if err := w.write(rec); err != nil {
			return err
		}
	}
	return nil
}

// WriteLine writes a raw text line. It is a no-op for parquet sinks.
func (w *Writer) WriteLine(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.format == FormatParquet {
		return nil
	}
	return w.writeLine(line)
}

func (w *Writer) write(rec model.BarRecord) error {
	if w.closed {
		return ErrClosed
	}

	switch w.format {
	case FormatParquet:
		w.rows = append(w.rows, ToRow(rec))
	case FormatCSV:
		if err := w.csv.Write(csvFields(rec)); err != nil {
			return err
		}
		w.csv.Flush()
		if err := w.csv.Error(); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	default:
		line, err := Encode(rec, w.format)
		if err != nil {
			return err
		}
		if err := w.writeLine(line); err != nil {
			return err
		}
	}

	w.written++
	return nil
}

func (w *Writer) writeLine(line string) error {
	if _, err := io.WriteString(w.out, line+"\n"); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	return nil
}

// Close flushes buffered rows and releases the file. Console sinks leave
// the underlying writer open.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.format == FormatParquet {
		return WriteParquet(w.path, w.rows)
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
