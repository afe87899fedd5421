package parser

import (
	"context"
	"io"

	"github.com/rumor-ml/commons.systems/txconv/internal/config"
)

// Parser is the strategy interface for all row sources
type Parser interface {
	// Name returns parser identifier (e.g., "csv", "ofx")
	Name() string

	// DataFormat returns the configuration data format this parser reads
	DataFormat() config.DataFormat

	// CanParse checks if parser can handle this file
	// Returns true if this parser should be used for the file
	CanParse(path string, header []byte) bool

	// Parse extracts the rows of one file in source order
	Parse(ctx context.Context, r io.Reader, meta *Metadata) ([]Row, error)
}

// Row is one source record keyed by column name. Columns that a record does
// not carry are absent from Fields rather than empty.
type Row struct {
	// Line is the 1-based position of the record in the file (the header, when
	// present, is line 1).
	Line   int
	Fields map[string]string
}

// NewRow creates a row for the given line
func NewRow(line int, fields map[string]string) Row {
	if fields == nil {
		fields = map[string]string{}
	}
	return Row{Line: line, Fields: fields}
}

// Get returns a column value and whether the column is present
func (r Row) Get(field string) (string, bool) {
	v, ok := r.Fields[field]
	return v, ok
}
