// Command recover runs the loan recovery pipeline over a borrower file, or a
// generated sample, and saves the scored report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"loanrecovery/internal/config"
	"loanrecovery/internal/dataset"
	apperrors "loanrecovery/internal/errors"
	"loanrecovery/internal/exporter"
	"loanrecovery/internal/infrastructure"
	"loanrecovery/internal/operations"
	"loanrecovery/pkg/contracts"
)

// options are the parsed command line flags
type options struct {
	input      string
	sample     int
	format     exporter.Format
	out        string
	seed       int64
	seedSet    bool
	configPath string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	flags := flag.NewFlagSet("recover", flag.ContinueOnError)
	flags.SetOutput(stderr)

	input := flags.String("input", "", "borrower file to score (.csv or .xlsx)")
	sample := flags.Int("sample", 0, "score a generated sample of this many borrowers instead of -input")
	format := flags.String("format", string(exporter.FormatCSV), "report format: csv or xlsx")
	out := flags.String("out", "", "report path (defaults to the configured report name)")
	seed := flags.Int64("seed", config.DefaultSeed, "random seed of the models and the sample")
	configPath := flags.String("config", "", "YAML config file")
	logLevel := flags.String("log-level", "warn", "log level: debug, info, warn or error")
	version := flags.Bool("version", false, "print version and exit")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if *version {
		fmt.Fprintln(stderr, contracts.GetFullVersionString())
		return nil, flag.ErrHelp
	}

	switch {
	case *input == "" && *sample <= 0:
		return nil, apperrors.NewAppValidationError("one of -input or -sample is required")
	case *input != "" && *sample > 0:
		return nil, apperrors.NewAppValidationError("-input and -sample are mutually exclusive")
	}

	seedSet := false
	flags.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			seedSet = true
		}
	})

	f, err := exporter.ParseFormat(*format)
	if err != nil {
		return nil, apperrors.NewAppValidationError(err.Error())
	}

	return &options{
		input:      *input,
		sample:     *sample,
		format:     f,
		out:        *out,
		seed:       *seed,
		seedSet:    seedSet,
		configPath: *configPath,
		logLevel:   *logLevel,
	}, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if opts.configPath != "" {
		if cfg, err = config.LoadFile(opts.configPath); err != nil {
			return apperrors.NewConfigError("failed to load "+opts.configPath, err)
		}
	}
	// An explicit -seed wins over the config file.
	if opts.seedSet || opts.configPath == "" {
		cfg.Pipeline.Seed = opts.seed
	}

	logger := infrastructure.NewLogger(stderr, opts.logLevel)
	ctx = infrastructure.EnsureTraceID(ctx)

	table, err := loadTable(opts, cfg.Pipeline.Seed)
	if err != nil {
		return err
	}

	manager := operations.NewManager(nil, operations.ConfigFromPipeline(cfg.Pipeline), logger)
	defer manager.Close()

	out := manager.Execute(ctx, table)
	if out.Err != nil {
		infrastructure.WithError(logger, out.Err).ErrorContext(ctx, "pipeline failed",
			slog.String("kind", string(out.Err.Type)),
			slog.String("step", out.Err.Step))
		return out.Err
	}

	exp := exporter.NewExporter(cfg.Export, logger)
	path := opts.out
	if path == "" {
		path = exp.FileName(opts.format)
	}
	if err := exp.WriteFile(ctx, path, opts.format, out.Risk); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	printSummary(stdout, out, path)
	return nil
}

func loadTable(opts *options, seed int64) (*dataset.Table, error) {
	if opts.sample > 0 {
		return dataset.GenerateSample(opts.sample, seed), nil
	}

	f, err := os.Open(opts.input)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewNotFoundError("input file " + opts.input)
	}
	if err != nil {
		return nil, apperrors.NewParsingError("failed to open input", err)
	}
	defer f.Close()

	table, err := dataset.ReadFile(filepath.Base(opts.input), f)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read "+filepath.Base(opts.input), err)
	}
	return table, nil
}

func printSummary(w io.Writer, out *operations.Outcome, path string) {
	fmt.Fprintf(w, "run %s: %d borrowers scored in %s\n", out.RunID, len(out.Risk), out.Summary.Duration)
	fmt.Fprintf(w, "report: %s\n\n", path)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEGMENT\tBORROWERS\tHIGH RISK\tMEAN SCORE\tLEGAL\tSETTLEMENT\tREMINDERS")
	for _, s := range exporter.Summarize(out.Risk) {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.3f\t%d\t%d\t%d\n",
			s.SegmentName, s.Borrowers, s.HighRisk, s.MeanRiskScore,
			s.LegalAction, s.Settlement, s.Reminders)
	}
	tw.Flush()
}
