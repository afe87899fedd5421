// Package csv reads delimited text exports into column-keyed rows
package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rumor-ml/commons.systems/txconv/internal/config"
	"github.com/rumor-ml/commons.systems/txconv/internal/parser"
)

// Parser reads CSV files whose first record is a header.
// The struct has no fields because CSV parsing requires no configuration state,
// which makes the parser safe for concurrent use without locking.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared CSV parser instance.
func NewParser() *Parser {
	return parserInstance
}

var utf8BOM = []byte("\xef\xbb\xbf")

// getFileInfo returns a formatted file path string for error messages
func getFileInfo(meta *parser.Metadata) string {
	if meta != nil && meta.FilePath() != "" {
		return fmt.Sprintf(" from %s", meta.FilePath())
	}
	return ""
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "csv"
}

// DataFormat returns config.DataFormatCSV
func (p *Parser) DataFormat() config.DataFormat {
	return config.DataFormatCSV
}

// CanParse accepts .csv and .txt files and standard input, unless the header
// is recognizably OFX.
func (p *Parser) CanParse(path string, header []byte) bool {
	if path != parser.StdinPath {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv", ".txt":
		default:
			return false
		}
	}

	upper := bytes.ToUpper(bytes.TrimSpace(bytes.TrimPrefix(header, utf8BOM)))
	if bytes.HasPrefix(upper, []byte("OFXHEADER")) || bytes.HasPrefix(upper, []byte("<?XML")) || bytes.HasPrefix(upper, []byte("<OFX")) {
		return false
	}
	return true
}

// Parse reads the header and returns one row per following record. Header
// names and values have surrounding whitespace removed. Records shorter than
// the header leave the missing columns absent; unnamed columns and blank lines
// are skipped.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) ([]parser.Row, error) {
	// Check if context was cancelled before parsing
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("CSV file is empty%s", getFileInfo(meta))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header%s: %w", getFileInfo(meta), err)
	}

	columns, err := parseHeader(header)
	if err != nil {
		return nil, fmt.Errorf("invalid CSV header%s: %w", getFileInfo(meta), err)
	}

	var rows []parser.Row
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV content%s: %w", getFileInfo(meta), err)
		}

		line, _ := csvReader.FieldPos(0)
		fields := make(map[string]string, len(columns))
		for i, value := range record {
			if i >= len(columns) {
				break
			}
			if columns[i] == "" {
				continue
			}
			fields[columns[i]] = strings.TrimSpace(value)
		}
		rows = append(rows, parser.NewRow(line, fields))
	}

	return rows, nil
}

func parseHeader(record []string) ([]string, error) {
	columns := make([]string, len(record))
	seen := make(map[string]bool, len(record))
	for i, name := range record {
		if i == 0 {
			name = strings.TrimPrefix(name, string(utf8BOM))
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if seen[name] {
			return nil, fmt.Errorf("column %q appears more than once", name)
		}
		seen[name] = true
		columns[i] = name
	}
	return columns, nil
}
