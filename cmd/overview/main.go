// Command overview builds compiled and overview workbooks from report files
// on disk, using the same aggregation engine as the download service.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"noisereports/internal/dataprocessing"
	"noisereports/internal/exporter"
	"noisereports/internal/files"
	"noisereports/internal/infrastructure"
	"noisereports/internal/packaging"
	"noisereports/internal/table"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stderr); err != nil {
		slog.Error("overview failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

type options struct {
	inDir   string
	outDir  string
	format  string
	name    string
	compile bool
	verbose bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("overview", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.inDir, "in", ".", "directory containing .xlsx report files")
	fs.StringVar(&opts.outDir, "out", "out", "output directory")
	fs.StringVar(&opts.format, "format", "xlsx", "output format: xlsx | csv")
	fs.StringVar(&opts.name, "name", "", "campaign name used in compiled file names (defaults to the input directory name)")
	fs.BoolVar(&opts.compile, "compiled", false, "also write one compiled workbook per report sheet")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.format = strings.ToLower(opts.format)
	if opts.format != "xlsx" && opts.format != "csv" {
		return opts, fmt.Errorf("unknown format %q", opts.format)
	}
	if opts.name == "" {
		abs, err := filepath.Abs(opts.inDir)
		if err != nil {
			return opts, err
		}
		opts.name = filepath.Base(abs)
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := infrastructure.NewLogger(stderr, &slog.HandlerOptions{Level: level})
	ctx = infrastructure.EnsureTraceID(ctx)

	found, err := files.NewDiscovery("").FindReports(opts.inDir)
	if err != nil {
		return err
	}
	reports := files.Paths(found)
	if len(reports) == 0 {
		return fmt.Errorf("no .xlsx files in %s", opts.inDir)
	}
	logger.InfoContext(ctx, "building overview",
		slog.String("input_dir", opts.inDir),
		slog.Int("files", len(reports)),
		slog.String("format", opts.format))

	source := dataprocessing.TableSourceFunc(func(_ context.Context, path string) (table.Set, error) {
		return dataprocessing.ParseFile(path)
	})
	aggregator := dataprocessing.NewAggregator(source, logger, nil)

	if err := os.MkdirAll(opts.outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	overview, err := aggregator.Aggregate(ctx, reports, dataprocessing.Overview, table.AllCategories())
	if err != nil {
		return err
	}
	if overview.Failed() {
		logger.WarnContext(ctx, "some categories could not be aggregated",
			slog.String("reasons", overview.FailureSummary()))
	}
	if err := writeOverview(opts, overview, logger); err != nil {
		return err
	}

	if opts.compile {
		compiled, err := aggregator.Aggregate(ctx, reports, dataprocessing.Compiled, nil)
		if err != nil {
			return err
		}
		if err := writeCompiled(opts, compiled, logger); err != nil {
			return err
		}
	}

	logger.InfoContext(ctx, "overview written", slog.String("output_dir", opts.outDir))
	return nil
}

func writeOverview(opts options, result *dataprocessing.AggregateResult, logger *slog.Logger) error {
	if opts.format == "csv" {
		w := exporter.NewCSVWriter(opts.outDir, logger)
		for _, c := range result.Categories {
			if _, err := w.WriteFile(c.Spec().OverviewName+".csv", result.Table(c), exporter.WriteOptions{BOMPrefix: true}); err != nil {
				return err
			}
		}
		return nil
	}

	sheets := make([]exporter.NamedTable, 0, len(result.Categories))
	for _, c := range result.Categories {
		sheets = append(sheets, exporter.NamedTable{Name: c.Spec().OverviewName, Table: result.Table(c)})
	}
	return writeFile(filepath.Join(opts.outDir, packaging.OverviewFileName), func(w io.Writer) error {
		return exporter.WriteWorkbook(w, sheets)
	})
}

func writeCompiled(opts options, result *dataprocessing.AggregateResult, logger *slog.Logger) error {
	for _, c := range result.Categories {
		if result.Contributors[c] == 0 {
			continue
		}
		sheet := c.Spec().Sheet
		base := fmt.Sprintf("%s %s", sheet, opts.name)
		if opts.format == "csv" {
			if _, err := exporter.NewCSVWriter(opts.outDir, logger).WriteFile(base+".csv", result.Table(c), exporter.WriteOptions{BOMPrefix: true}); err != nil {
				return err
			}
			continue
		}
		err := writeFile(filepath.Join(opts.outDir, base+".xlsx"), func(w io.Writer) error {
			return exporter.WriteTable(w, sheet, result.Table(c))
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
