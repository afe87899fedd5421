// Package pipeline is the import/export boundary of a conversion run. It
// reads source rows through the parser registry, maps them to transactions,
// runs the batch transforms and writes the destination rows.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rumor-ml/commons.systems/txconv/internal/config"
	"github.com/rumor-ml/commons.systems/txconv/internal/dedup"
	"github.com/rumor-ml/commons.systems/txconv/internal/domain"
	"github.com/rumor-ml/commons.systems/txconv/internal/enrich"
	"github.com/rumor-ml/commons.systems/txconv/internal/logger"
	"github.com/rumor-ml/commons.systems/txconv/internal/mapper"
	"github.com/rumor-ml/commons.systems/txconv/internal/output"
	"github.com/rumor-ml/commons.systems/txconv/internal/parser"
	"github.com/rumor-ml/commons.systems/txconv/internal/registry"
	"github.com/rumor-ml/commons.systems/txconv/internal/scanner"
	"github.com/rumor-ml/commons.systems/txconv/internal/transform"
	"github.com/rumor-ml/commons.systems/txconv/internal/validate"
)

// FileError reports a source or destination file that could not be used.
type FileError struct {
	Op   string // "open", "read", "close", "create" or "write"
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Report summarizes the last Import.
type Report struct {
	Files      int
	Rows       int
	Skipped    int
	Duplicates int
	Pending    int
	Enrichment transform.Stats
}

// TransactionIO runs the import and export halves of one conversion.
type TransactionIO struct {
	cfg         *config.Config
	registry    *registry.Registry
	normalizer  *enrich.Normalizer
	categorizer *enrich.Categorizer
	stdin       io.Reader
	stdout      io.Writer
	now         func() time.Time
	report      Report
}

// Option configures a TransactionIO.
type Option func(*TransactionIO)

// WithStdin replaces the reader used when no source path is configured.
func WithStdin(r io.Reader) Option {
	return func(t *TransactionIO) { t.stdin = r }
}

// WithStdout replaces the writer used when no destination path is configured.
func WithStdout(w io.Writer) Option {
	return func(t *TransactionIO) { t.stdout = w }
}

// New prepares a run. The prompter may be nil, in which case transactions
// with several candidate categories stay uncategorized.
func New(cfg *config.Config, prompter enrich.Prompter, opts ...Option) (*TransactionIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	reg, err := registry.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create parser registry: %w", err)
	}
	normalizer, err := enrich.NewNormalizer(cfg.Account())
	if err != nil {
		return nil, fmt.Errorf("failed to compile payee normalizers: %w", err)
	}

	t := &TransactionIO{
		cfg:         cfg,
		registry:    reg,
		normalizer:  normalizer,
		categorizer: enrich.NewCategorizer(cfg, prompter),
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Report returns the counters of the last Import.
func (t *TransactionIO) Report() Report {
	return t.report
}

type source struct {
	parser parser.Parser
	meta   *parser.Metadata
	open   func() (io.ReadCloser, error)
}

// Import reads every source file, maps the rows, drops cross-file duplicates
// and pending transactions as configured, and enriches the result.
func (t *TransactionIO) Import(ctx context.Context) ([]domain.Transaction, error) {
	log := logger.FromContext(ctx)
	t.report = Report{}

	sources, err := t.sources()
	if err != nil {
		return nil, err
	}
	t.report.Files = len(sources)

	state := dedup.NewState()
	var txns []domain.Transaction

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := t.readRows(ctx, src)
		if err != nil {
			return nil, err
		}
		log.Debug().
			Str("file", src.meta.FilePath()).
			Str("parser", src.parser.Name()).
			Int("rows", len(rows)).
			Msg("read source file")

		for i, row := range rows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			t.report.Rows++

			txn, err := mapper.RowToTransaction(row.Fields, t.cfg.SrcFormat())
			if err != nil {
				if t.cfg.RowErrorPolicy() == config.RowErrorSkip {
					t.report.Skipped++
					log.Warn().
						Err(err).
						Str("file", src.meta.FilePath()).
						Int("row", i+1).
						Int("line", row.Line).
						Msg("skipping row that could not be mapped")
					continue
				}
				return nil, fmt.Errorf("%s: row %d (line %d): %w", src.meta.Describe(), i+1, row.Line, err)
			}

			duplicate, err := state.Observe(dedup.Fingerprint(txn), src.meta.FilePath())
			if err != nil {
				return nil, fmt.Errorf("%s: row %d: %w", src.meta.Describe(), i+1, err)
			}
			if duplicate {
				t.report.Duplicates++
				log.Info().
					Str("file", src.meta.FilePath()).
					Int("row", i+1).
					Str("payee", txn.RawPayeeName()).
					Str("amount", txn.Amount().StringFixed(2)).
					Msg("dropping transaction already read from another file")
				continue
			}

			txns = append(txns, txn)
		}
	}

	kept := transform.FilterPending(t.cfg.IgnorePending(), txns)
	t.report.Pending = len(txns) - len(kept)

	enriched, stats, err := transform.Enrich(ctx, t.normalizer, t.categorizer, kept)
	t.report.Enrichment = stats
	if err != nil {
		return nil, fmt.Errorf("enrichment failed: %w", err)
	}

	return enriched, nil
}

// sources resolves the configured source path to the files to read.
func (t *TransactionIO) sources() ([]source, error) {
	dataFormat := t.cfg.SrcFormat().DataFormat
	path := t.cfg.SrcPath()
	now := t.now()

	if path == "" {
		data, err := io.ReadAll(t.stdin)
		if err != nil {
			return nil, &FileError{Op: "read", Path: parser.StdinPath, Err: err}
		}
		header := data
		if len(header) > registry.HeaderSize {
			header = header[:registry.HeaderSize]
		}
		p, err := t.registry.Detect(parser.StdinPath, header, dataFormat)
		if err != nil {
			return nil, err
		}
		meta, err := t.metadata(parser.StdinPath, now)
		if err != nil {
			return nil, err
		}
		return []source{{
			parser: p,
			meta:   meta,
			open: func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(data)), nil
			},
		}}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &FileError{Op: "open", Path: path, Err: err}
	}

	var paths []string
	if info.IsDir() {
		results, err := scanner.New(path, dataFormat).Scan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan directory %s: %w", path, err)
		}
		if len(results) == 0 {
			return nil, fmt.Errorf("no %s files found in %s", dataFormat, path)
		}
		for _, r := range results {
			paths = append(paths, r.Path)
		}
	} else {
		paths = []string{path}
	}

	sources := make([]source, 0, len(paths))
	for _, p := range paths {
		found, err := t.registry.FindParser(p, dataFormat)
		if err != nil {
			return nil, fmt.Errorf("failed to find parser for %s: %w", p, err)
		}
		meta, err := t.metadata(p, now)
		if err != nil {
			return nil, err
		}
		filePath := p
		sources = append(sources, source{
			parser: found,
			meta:   meta,
			open: func() (io.ReadCloser, error) {
				f, err := os.Open(filePath)
				if err != nil {
					return nil, &FileError{Op: "open", Path: filePath, Err: err}
				}
				return f, nil
			},
		})
	}
	return sources, nil
}

func (t *TransactionIO) metadata(path string, now time.Time) (*parser.Metadata, error) {
	meta, err := parser.NewMetadata(path, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata for %s: %w", path, err)
	}
	meta.SetAccountID(t.cfg.Account().ID)
	return meta, nil
}

// readRows parses one source. The file is closed before returning.
func (t *TransactionIO) readRows(ctx context.Context, src source) (rows []parser.Row, err error) {
	r, err := src.open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil && err == nil {
			err = &FileError{Op: "close", Path: src.meta.FilePath(), Err: closeErr}
		}
	}()

	rows, err = src.parser.Parse(ctx, r, src.meta)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("parse failed for %s: %w", src.meta.Describe(), err)
	}
	return rows, nil
}

// Export checks the batch, orders it and writes it in the destination format.
func (t *TransactionIO) Export(ctx context.Context, txns []domain.Transaction) error {
	log := logger.FromContext(ctx)

	result := validate.ValidateTransactions(txns, t.cfg.CategoryNames())
	if err := result.Err(); err != nil {
		return err
	}
	for _, w := range result.Warnings {
		log.Debug().Str("warning", w.String()).Msg("export check")
	}

	f := t.cfg.DstFormat()
	sorted := transform.Sort(t.cfg.Sort(), txns)
	rows := make([][]string, 0, len(sorted))
	for _, txn := range sorted {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows = append(rows, mapper.TransactionToRow(txn, f))
	}

	var header []string
	if t.cfg.IncludeHeader() {
		header = mapper.Header(f)
	}

	path := t.cfg.DstPath()
	if path == "" {
		if err := output.WriteRows(t.stdout, header, rows); err != nil {
			return &FileError{Op: "write", Path: "<stdout>", Err: err}
		}
		return nil
	}

	if err := output.WriteRowsToFile(header, rows, output.WriteOptions{FilePath: path}); err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) && pathErr.Op == "open" {
			return &FileError{Op: "create", Path: path, Err: pathErr.Err}
		}
		return &FileError{Op: "write", Path: path, Err: err}
	}

	log.Debug().Str("file", path).Int("rows", len(rows)).Msg("wrote destination file")
	return nil
}
