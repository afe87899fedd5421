// Package output writes converted rows as CSV.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// WriteOptions configures where rows are written
type WriteOptions struct {
	FilePath string // Output path (empty = stdout)
}

// WriteRows writes an optional header followed by rows as CSV. A nil header
// writes no header row.
func WriteRows(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)

	if header != nil {
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	for i, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV output: %w", err)
	}
	return nil
}

// WriteRowsToFile writes rows to a file or stdout based on options. The
// destination is created or truncated.
func WriteRowsToFile(header []string, rows [][]string, opts WriteOptions) (err error) {
	// Write to stdout if no file path specified
	if opts.FilePath == "" {
		return WriteRows(os.Stdout, header, rows)
	}

	f, err := os.Create(opts.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", opts.FilePath, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file %s: %w", opts.FilePath, closeErr)
		}
	}()

	if err = WriteRows(f, header, rows); err != nil {
		return fmt.Errorf("failed to write rows to %s: %w", opts.FilePath, err)
	}

	return nil
}
