// Package registry selects the row source for an input file.
package registry

import (
	"fmt"
	"io"
	"os"

	"github.com/rumor-ml/commons.systems/txconv/internal/config"
	"github.com/rumor-ml/commons.systems/txconv/internal/parser"
	"github.com/rumor-ml/commons.systems/txconv/internal/parsers/csv"
	"github.com/rumor-ml/commons.systems/txconv/internal/parsers/ofx"
)

// HeaderSize is the number of leading bytes inspected for format detection.
// This is sufficient to detect the OFX header and a CSV header line.
const HeaderSize = 512

// Registry holds all registered parsers
type Registry struct {
	parsers []parser.Parser
}

// New creates a registry with all built-in parsers
func New() (*Registry, error) {
	r := &Registry{}
	for _, p := range []parser.Parser{ofx.NewParser(), csv.NewParser()} {
		if err := r.Register(p); err != nil {
			return nil, fmt.Errorf("failed to register built-in parser: %w", err)
		}
	}
	return r, nil
}

// MustNew is like New but panics on error. Built-in registration only fails
// on a programming error.
func MustNew() *Registry {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds a parser. Names must be unique.
func (r *Registry) Register(p parser.Parser) error {
	if p == nil {
		return fmt.Errorf("cannot register nil parser")
	}
	for _, existing := range r.parsers {
		if existing.Name() == p.Name() {
			return fmt.Errorf("parser %q is already registered", p.Name())
		}
	}
	r.parsers = append(r.parsers, p)
	return nil
}

// Detect returns the first parser for dataFormat that accepts the path and
// header.
func (r *Registry) Detect(path string, header []byte, dataFormat config.DataFormat) (parser.Parser, error) {
	for _, p := range r.parsers {
		if p.DataFormat() == dataFormat && p.CanParse(path, header) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no %s parser accepts file: %s", dataFormat, path)
}

// FindParser opens path, reads up to HeaderSize bytes and returns the parser
// for dataFormat that accepts it.
func (r *Registry) FindParser(path string, dataFormat config.DataFormat) (parser.Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	header := make([]byte, HeaderSize)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		f.Close() // Best-effort close, ignore error since we're already failing
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}
	// Short files are fine; parsers handle variable header sizes.
	header = header[:n]

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file %s: %w", path, err)
	}
	return r.Detect(path, header, dataFormat)
}

// ListParsers returns all registered parsers
func (r *Registry) ListParsers() []string {
	names := make([]string, len(r.parsers))
	for i, p := range r.parsers {
		names[i] = p.Name()
	}
	return names
}
