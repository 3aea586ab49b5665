package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/address-lookup/internal/config"
	"github.com/jonathan/address-lookup/internal/export"
	"github.com/jonathan/address-lookup/internal/observability"
	"github.com/jonathan/address-lookup/internal/pipeline"
	"github.com/jonathan/address-lookup/internal/session"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Look up company addresses from the command line",
	Long:  "Read company names (one per line) from a file or stdin, look up their addresses and write a CSV or Excel file.",
	RunE:  runLookup,
}

var (
	lookupInputFile  string
	lookupOutputFile string
	lookupFormat     string
	lookupVerbose    bool
)

func init() {
	lookupCmd.Flags().StringVarP(&lookupInputFile, "in", "i", "", "Path to a file of company names (default: stdin)")
	lookupCmd.Flags().StringVarP(&lookupOutputFile, "out", "o", "", "Path to the output file (default: stdout)")
	lookupCmd.Flags().StringVarP(&lookupFormat, "format", "f", "csv", "Output format: csv or xlsx")
	lookupCmd.Flags().BoolVarP(&lookupVerbose, "verbose", "v", false, "Print progress and a summary to stderr")

	rootCmd.AddCommand(lookupCmd)
}

// lookupOptions are the resolved inputs of a lookup run.
type lookupOptions struct {
	Input   io.Reader
	Output  io.Writer
	Format  string
	Verbose io.Writer // nil disables progress output
}

func runLookup(cmd *cobra.Command, _ []string) error {
	format := strings.ToLower(lookupFormat)
	if format != "csv" && format != "xlsx" {
		return fmt.Errorf("unsupported format %q (want csv or xlsx)", lookupFormat)
	}
	if format == "xlsx" && lookupOutputFile == "" {
		return fmt.Errorf("--out is required for xlsx output")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Progress goes to stderr; keep zap quiet unless asked so stdout stays clean CSV.
	logger := zap.NewNop()
	if lookupVerbose {
		if logger, err = newLogger(cfg); err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()
	}

	opts := lookupOptions{Input: os.Stdin, Output: os.Stdout, Format: format}
	if lookupInputFile != "" {
		f, err := os.Open(lookupInputFile)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer func() { _ = f.Close() }()
		opts.Input = f
	}
	if lookupOutputFile != "" {
		f, err := os.Create(lookupOutputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		opts.Output = f
	}
	if lookupVerbose {
		opts.Verbose = cmd.ErrOrStderr()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return lookup(ctx, cfg, logger, opts)
}

// lookup runs the pipeline once against an in-memory store and writes the export.
func lookup(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts lookupOptions) error {
	raw, err := io.ReadAll(opts.Input)
	if err != nil {
		return fmt.Errorf("failed to read company names: %w", err)
	}

	store, err := session.NewMemoryStore(1)
	if err != nil {
		return err
	}

	var printer *observability.Printer
	var onProgress pipeline.ProgressCallback
	if opts.Verbose != nil {
		printer = observability.NewPrinter(opts.Verbose)
		onProgress = func(e pipeline.ProgressEvent) {
			if e.Step == pipeline.StepResolve {
				printer.PrintProgress(e.Index, e.Total, e.Company, e.Message)
			}
		}
	}

	p, closePipeline, err := buildPipeline(ctx, cfg, store, logger, onProgress)
	if err != nil {
		return err
	}
	defer closePipeline()

	runID := uuid.NewString()
	result, err := p.Process(ctx, string(raw), runID)
	if err != nil {
		return err
	}
	if printer != nil {
		printer.PrintResultSet(result.ResultSet, result.Notices)
	}

	writer := export.NewWriter(store, true, logger)
	var file *export.File
	if opts.Format == "xlsx" {
		file, err = writer.ExportXLSX(ctx, runID)
	} else {
		file, err = writer.Export(ctx, runID)
	}
	if err != nil {
		return err
	}

	if _, err := opts.Output.Write(file.Body); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
