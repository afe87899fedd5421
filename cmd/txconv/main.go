package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"

	"github.com/rumor-ml/commons.systems/txconv/internal/config"
	"github.com/rumor-ml/commons.systems/txconv/internal/enrich"
	"github.com/rumor-ml/commons.systems/txconv/internal/logger"
	"github.com/rumor-ml/commons.systems/txconv/internal/pipeline"
	"github.com/rumor-ml/commons.systems/txconv/internal/prompt"
	"github.com/rumor-ml/commons.systems/txconv/internal/settings"
	"github.com/rumor-ml/commons.systems/txconv/internal/ui"
)

const (
	version = "0.1.0"
)

var (
	// Global flags
	versionFlag = flag.Bool("version", false, "Show version")

	// Run selection
	configFile  = flag.String("config", "", "Configuration document, YAML or JSON (required)")
	accountID   = flag.String("account", "", "Account id of the input files (required)")
	dstFormatID = flag.String("dst-format", "", "Output format id (required)")
	inputPath   = flag.String("input", "", "Input file or directory (default: stdin)")
	outputFile  = flag.String("output", "", "Output CSV file (default: stdout)")

	// Overrides of the configuration document
	sortBy        = flag.String("sort-by", "", "Sort key: date")
	sortOrder     = flag.String("sort-order", "", "Sort order: ascending or descending")
	includeHeader = flag.Bool("include-header", false, "Write a header row")
	excludeHeader = flag.Bool("exclude-header", false, "Do not write a header row")
	ignorePending = flag.Bool("ignore-pending", false, "Drop pending transactions")
	skipPrompts   = flag.Bool("skip-prompts", false, "Never ask for a category")
	onRowError    = flag.String("on-row-error", "", "Unmappable rows: abort or skip (default: abort)")

	dryRun  = flag.Bool("dry-run", false, "Read and enrich without writing output")
	verbose = flag.Bool("verbose", false, "Show detailed conversion logs")
)

func main() {
	// Custom usage message
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `txconv - Convert bank transaction exports between formats

Usage:
  txconv -config FILE -account ID -dst-format ID [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Environment:
  TXCONV_INCLUDE_HEADER, TXCONV_IGNORE_PENDING, TXCONV_SKIP_PROMPTS,
  TXCONV_SORT_BY, TXCONV_SORT_ORDER, TXCONV_ON_ROW_ERROR, TXCONV_VERBOSE
  Flags take precedence over the environment.

Examples:
  # Convert an Ally export into the ledger layout
  txconv -config txconv.yaml -account ally-checking -dst-format google-sheets \
    -input ally.csv -output ledger.csv

  # Convert every export in a directory, newest first
  txconv -config txconv.yaml -account citi-card -dst-format google-sheets \
    -input ~/statements/citi -sort-order descending

  # Read from stdin and skip rows that cannot be mapped
  txconv -config txconv.yaml -account ally-checking -dst-format ally \
    -on-row-error skip < ally.csv

`)
	}

	flag.Parse()

	// Handle version flag
	if *versionFlag {
		fmt.Printf("txconv version %s\n", version)
		os.Exit(0)
	}

	// Validate required flags
	if missing := missingFlags(); len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "Error: %s required\n\n", strings.Join(missing, ", "))
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx)
	stop()
	if err != nil {
		ui.Error(err.Error())
		os.Exit(1)
	}
}

func missingFlags() []string {
	var missing []string
	if *configFile == "" {
		missing = append(missing, "-config")
	}
	if *accountID == "" {
		missing = append(missing, "-account")
	}
	if *dstFormatID == "" {
		missing = append(missing, "-dst-format")
	}
	return missing
}

// passedFlags returns the names of the flags given on the command line
func passedFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// flagOverrides returns the overrides given on the command line. Boolean
// overrides are only set for flags named in set.
func flagOverrides(set map[string]bool) (config.Overrides, error) {
	var o config.Overrides
	if set["include-header"] && set["exclude-header"] {
		return o, fmt.Errorf("-include-header and -exclude-header cannot be used together")
	}
	if set["include-header"] {
		o.IncludeHeader = boolPtr(*includeHeader)
	}
	if set["exclude-header"] {
		o.IncludeHeader = boolPtr(!*excludeHeader)
	}
	if set["ignore-pending"] {
		o.IgnorePending = boolPtr(*ignorePending)
	}
	if set["skip-prompts"] {
		o.SkipPrompts = boolPtr(*skipPrompts)
	}
	if *sortBy != "" {
		by, err := config.ParseSortBy(*sortBy)
		if err != nil {
			return o, err
		}
		o.SortBy = &by
	}
	if *sortOrder != "" {
		order, err := config.ParseSortOrder(*sortOrder)
		if err != nil {
			return o, err
		}
		o.SortOrder = &order
	}
	return o, nil
}

func run(ctx context.Context) error {
	env, err := settings.Load()
	if err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	isVerbose := *verbose || env.Verbose

	runID := uuid.NewString()
	log := logger.WithFields(logger.New(isVerbose), map[string]interface{}{
		"run_id":  runID,
		"account": *accountID,
	})
	ctx = logger.WithContext(ctx, log)

	ui.Header("Converting Transactions")
	ui.Step(1, 3, "Loading configuration")

	doc, err := config.LoadFromFile(*configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	overrides, err := flagOverrides(passedFlags())
	if err != nil {
		return err
	}

	policy := env.RowErrorPolicy
	if *onRowError != "" {
		if policy, err = config.ParseRowErrorPolicy(*onRowError); err != nil {
			return err
		}
	}

	cfg, err := doc.Select(config.Selection{
		AccountID:      *accountID,
		DstFormatID:    *dstFormatID,
		SrcPath:        *inputPath,
		DstPath:        *outputFile,
		Overrides:      env.Overrides.Merge(overrides),
		RowErrorPolicy: policy,
	})
	if err != nil {
		return err
	}
	ui.BlueText(fmt.Sprintf("  %s (%s) -> %s", cfg.Account().Name, cfg.SrcFormat().Name, cfg.DstFormat().Name))
	log.Debug().
		Str("src_format", cfg.SrcFormat().ID).
		Str("dst_format", cfg.DstFormat().ID).
		Str("row_error_policy", string(cfg.RowErrorPolicy())).
		Msg("configuration selected")

	// Standard input carries the rows, so there is nothing to read answers from.
	var prompter enrich.Prompter
	if *inputPath != "" {
		prompter = prompt.NewConsole(os.Stdin, os.Stderr)
	} else if !cfg.SkipPrompts() {
		ui.Warning("Reading rows from stdin: transactions with several candidate categories stay uncategorized")
	}

	tio, err := pipeline.New(cfg, prompter)
	if err != nil {
		return err
	}

	source := *inputPath
	if source == "" {
		source = "stdin"
	}
	ui.Step(2, 3, fmt.Sprintf("Reading %s", source))

	txns, err := tio.Import(ctx)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	report := tio.Report()
	printReport(report, len(txns), isVerbose)

	if *dryRun {
		ui.Info(fmt.Sprintf("Dry run complete. Would write %d transactions as %s.", len(txns), cfg.DstFormat().ID))
		return nil
	}

	ui.Step(3, 3, fmt.Sprintf("Writing %s", cfg.DstFormat().Name))
	if err := tio.Export(ctx, txns); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if *outputFile != "" {
		ui.Success(fmt.Sprintf("Output written to %s", *outputFile))
	}
	return nil
}

func printReport(report pipeline.Report, kept int, isVerbose bool) {
	ui.Success(fmt.Sprintf("Read %d rows from %d file(s), kept %d transactions", report.Rows, report.Files, kept))

	if report.Skipped > 0 {
		ui.Warning(fmt.Sprintf("Skipped %d row(s) that could not be mapped", report.Skipped))
	}
	if report.Duplicates > 0 {
		ui.Info(fmt.Sprintf("Dropped %d transaction(s) already read from another file", report.Duplicates))
	}
	if report.Pending > 0 {
		ui.Info(fmt.Sprintf("Dropped %d pending transaction(s)", report.Pending))
	}

	stats := report.Enrichment
	total := stats.Normalized + stats.Unresolved
	if total == 0 {
		return
	}

	coverage := float64(stats.Normalized) / float64(total) * 100
	ui.Info(fmt.Sprintf("Payee coverage: %.1f%% (%d/%d matched)", coverage, stats.Normalized, total))
	if stats.Uncategorized > 0 {
		ui.Warning(fmt.Sprintf("%d transaction(s) have no category", stats.Uncategorized))
	}

	if examples := stats.UnmatchedExamples(5); len(examples) > 0 {
		if isVerbose {
			ui.Info("Example unmatched payees:")
			for _, desc := range examples {
				ui.YellowText("    - " + desc)
			}
		} else {
			ui.Info("Run with -verbose to see example unmatched payees")
		}
	}
}

func boolPtr(b bool) *bool { return &b }
