// Package scanner lists the input files of a directory source.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/txconv/internal/config"
	"github.com/rumor-ml/commons.systems/txconv/internal/parser"
)

// Scanner walks directory tree and finds statement files
type Scanner struct {
	rootDir    string
	extensions []string
}

// New creates a scanner for files of the given data format
func New(rootDir string, dataFormat config.DataFormat) *Scanner {
	return &Scanner{rootDir: rootDir, extensions: Extensions(dataFormat)}
}

// Extensions returns the lowercase file extensions of a data format
func Extensions(dataFormat config.DataFormat) []string {
	switch dataFormat {
	case config.DataFormatOFX:
		return []string{".ofx", ".qfx"}
	case config.DataFormatCSV:
		return []string{".csv", ".txt"}
	}
	return nil
}

// ScanResult represents a found file with metadata
type ScanResult struct {
	Path     string
	Metadata *parser.Metadata
}

// Scan walks the directory tree and returns matching files sorted by path.
// Hidden files and directories are skipped.
func (s *Scanner) Scan() ([]ScanResult, error) {
	rootDir, err := s.expandHome(s.rootDir)
	if err != nil {
		return nil, err
	}
	var paths []string

	err = filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("error accessing %s: %w", path, err)
		}

		hidden := path != rootDir && strings.HasPrefix(d.Name(), ".")
		if d.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || !s.isStatementFile(path) {
			return nil
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	sort.Strings(paths)
	now := time.Now()
	results := make([]ScanResult, 0, len(paths))
	for _, path := range paths {
		meta, err := parser.NewMetadata(path, now)
		if err != nil {
			return nil, err
		}
		results = append(results, ScanResult{Path: path, Metadata: meta})
	}

	return results, nil
}

// isStatementFile checks if file has one of the scanner's extensions
func (s *Scanner) isStatementFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range s.extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// expandHome expands ~ to home directory
func (s *Scanner) expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
