// Package encoder renders bar records as plain text, JSON lines, CSV or
// parquet, and writes them to the console or a file.
package encoder
