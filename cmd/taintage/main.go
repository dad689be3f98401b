package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/viant/afs"

	"github.com/viant/taintage/registry"
	"github.com/viant/taintage/report"
	"github.com/viant/taintage/scanner"
	"github.com/viant/taintage/taint"
)

type options struct {
	format      string
	output      string
	registryURL string
	workers     int
	depth       int
	failFast    bool
	skipUnknown bool
	verbose     bool
}

func main() {
	opts := &options{}
	root := &cobra.Command{
		Use:          "taintage",
		Short:        "Static taint analyzer for insecure deserialization in Python projects",
		SilenceUsage: true,
	}
	scanCmd := &cobra.Command{
		Use:   "scan [location]",
		Short: "Scan a directory tree of Python sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), opts, args[0])
		},
	}
	flags := scanCmd.Flags()
	flags.StringVarP(&opts.format, "format", "f", "console", "output format: console, json or sarif")
	flags.StringVarP(&opts.output, "output", "o", "", "write the report to a file instead of stdout")
	flags.StringVar(&opts.registryURL, "registry", "", "URL of a YAML source/sink catalog merged over the defaults")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "number of files analyzed concurrently (default: CPU count)")
	flags.IntVar(&opts.depth, "depth", 0, "interprocedural descent limit")
	flags.BoolVar(&opts.failFast, "fail-fast", false, "abort the scan on the first per-file failure")
	flags.BoolVar(&opts.skipUnknown, "skip-unknown", false, "suppress low findings for values of unknown origin")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "print provenance traces and debug logs")
	root.AddCommand(scanCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runScan(ctx context.Context, opts *options, location string) error {
	level := hclog.Warn
	if opts.verbose {
		level = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{Name: "taintage", Level: level})

	reg := registry.Default()
	if opts.registryURL != "" {
		var err error
		// a broken catalog is fatal before any analysis starts
		reg, err = registry.Load(ctx, afs.New(), opts.registryURL)
		if err != nil {
			return err
		}
	}

	scannerOptions := []scanner.Option{scanner.WithLogger(logger)}
	if opts.workers > 0 {
		scannerOptions = append(scannerOptions, scanner.WithWorkers(opts.workers))
	}
	if opts.failFast {
		scannerOptions = append(scannerOptions, scanner.WithFailFast())
	}
	var analyzerOptions []taint.Option
	if opts.depth > 0 {
		analyzerOptions = append(analyzerOptions, taint.WithMaxDepth(opts.depth))
	}
	if opts.skipUnknown {
		analyzerOptions = append(analyzerOptions, taint.WithUnknownFindings(false))
	}
	scannerOptions = append(scannerOptions, scanner.WithAnalyzerOptions(analyzerOptions...))

	result, scanErr := scanner.New(reg, scannerOptions...).Scan(ctx, location)
	if result == nil {
		return scanErr
	}

	out := os.Stdout
	if opts.output != "" {
		file, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("failed to create %v: %w", opts.output, err)
		}
		defer func() { _ = file.Close() }()
		out = file
	}
	var writer report.Writer
	switch opts.format {
	case "console":
		writer = &report.Console{Out: out, Verbose: opts.verbose}
	case "json":
		writer = &report.JSON{Out: out}
	case "sarif":
		writer = &report.SARIF{Out: out}
	default:
		return fmt.Errorf("unsupported format %q", opts.format)
	}
	if err := writer.Write(result); err != nil {
		return err
	}
	if scanErr != nil {
		// cancellation or fail-fast after a partial report
		return scanErr
	}
	if result.Counts()[taint.High] > 0 {
		if opts.output != "" {
			logger.Warn("high risk findings present", "count", result.Counts()[taint.High])
		}
		os.Exit(2)
	}
	return nil
}
