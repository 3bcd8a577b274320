// analyzer summarizes a bar file written by the stream or historical commands.
// Usage: go run ./cmd/analyzer -input bars.json -format json -top 5
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kyungseopkim/algorithm-trading/internal/analyzer"
	"github.com/kyungseopkim/algorithm-trading/internal/config"
	"github.com/kyungseopkim/algorithm-trading/internal/encoder"
	"github.com/kyungseopkim/algorithm-trading/internal/logging"
	"github.com/kyungseopkim/algorithm-trading/internal/version"
)

func main() {
	input := flag.String("input", "", "input file produced by stream or historical (required)")
	format := flag.String("format", "json", "input format: json, csv, parquet")
	top := flag.Int("top", analyzer.DefaultTop, "number of symbols to list")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := run(*input, *format, *top, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(input, format string, top int, stdout, stderr io.Writer) error {
	if input == "" {
		return errors.New("-input is required")
	}
	f, err := encoder.ParseFormat(format)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(config.LoggingConfig{
		Level:  os.Getenv(config.EnvLogLevel),
		Format: config.DefaultLogFormat,
	}, stderr)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	report, err := analyzer.New(logger).AnalyzeFile(input, f)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Analyzing %s (%s)\n\n", input, f)
	report.Print(stdout, top)
	return nil
}
