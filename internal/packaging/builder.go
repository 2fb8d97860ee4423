package packaging

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"noisereports/internal/cache"
	"noisereports/internal/dataprocessing"
	apierrors "noisereports/internal/errors"
	"noisereports/internal/exporter"
	"noisereports/internal/infrastructure"
	"noisereports/internal/table"
)

// Option selects one section of the download archive
type Option string

const (
	OptionOriginal Option = "original"
	OptionCompiled Option = "compiled"
	OptionOverview Option = "overview"
)

// Archive layout
const (
	IndividualDir    = "Individual reports"
	CompiledDir      = "Compiled files"
	OverviewDir      = "Overview"
	OverviewFileName = "Overview reports.xlsx"
)

// ParseOption validates an option name
func ParseOption(s string) (Option, error) {
	switch o := Option(strings.ToLower(strings.TrimSpace(s))); o {
	case OptionOriginal, OptionCompiled, OptionOverview:
		return o, nil
	default:
		return "", apierrors.NewAppValidationError(fmt.Sprintf("unknown archive option %q", s))
	}
}

// RecordSource returns a file's bytes together with its name
type RecordSource interface {
	Record(ctx context.Context, id string) (cache.FileRecord, error)
}

// FolderNamer resolves a folder id to its display name
type FolderNamer interface {
	Name(ctx context.Context, id string) (string, error)
}

// Request describes one archive build
type Request struct {
	FolderID string
	FileIDs  []string
	Options  []Option
}

func (r Request) has(o Option) bool {
	for _, opt := range r.Options {
		if opt == o {
			return true
		}
	}
	return false
}

// Result summarizes a written archive
type Result struct {
	BuildID string
	Entries []string
	// Overview is set when the overview section was requested
	Overview *dataprocessing.AggregateResult
}

// Builder writes download archives
type Builder struct {
	records    RecordSource
	aggregator *dataprocessing.Aggregator
	folders    FolderNamer
	logger     *slog.Logger
	metrics    *infrastructure.BusinessMetrics
}

// NewBuilder creates a Builder. metrics may be nil.
func NewBuilder(records RecordSource, aggregator *dataprocessing.Aggregator, folders FolderNamer, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		records:    records,
		aggregator: aggregator,
		folders:    folders,
		logger:     logger.With(slog.String("component", "archive_builder")),
		metrics:    metrics,
	}
}

// Build writes a zip archive with the requested sections to w. Sections are
// written in the order original, compiled, overview regardless of the order
// of req.Options. Nothing usable has been written to w when an error is returned.
func (b *Builder) Build(ctx context.Context, w io.Writer, req Request) (res *Result, err error) {
	start := time.Now()
	res = &Result{BuildID: uuid.NewString()}
	counts := make(map[string]int, 3)

	logger := b.logger.With(slog.String("build_id", res.BuildID))
	defer func() {
		infrastructure.RecordArchiveBuild(ctx, b.metrics, counts, time.Since(start), err)
		if err != nil {
			infrastructure.WithError(logger, err).ErrorContext(ctx, "archive build failed")
			return
		}
		logger.InfoContext(ctx, "archive built",
			slog.Int("files", len(req.FileIDs)),
			slog.Int("entries", len(res.Entries)),
			slog.Duration("duration", time.Since(start)))
	}()

	zw := zip.NewWriter(w)
	add := func(section, name string, data []byte) error {
		fw, err := zw.Create(name)
		if err != nil {
			return apierrors.NewStorageError("failed to create archive entry", err).WithContext("entry", name)
		}
		if _, err := fw.Write(data); err != nil {
			return apierrors.NewStorageError("failed to write archive entry", err).WithContext("entry", name)
		}
		res.Entries = append(res.Entries, name)
		counts[section]++
		return nil
	}

	if req.has(OptionOriginal) {
		if err := b.writeOriginals(ctx, req, add); err != nil {
			return nil, err
		}
	}
	if req.has(OptionCompiled) {
		if err := b.writeCompiled(ctx, req, add); err != nil {
			return nil, err
		}
	}
	if req.has(OptionOverview) {
		overview, err := b.writeOverview(ctx, req, add)
		if err != nil {
			return nil, err
		}
		res.Overview = overview
	}

	if err := zw.Close(); err != nil {
		return nil, apierrors.NewStorageError("failed to finalize archive", err)
	}
	return res, nil
}

type addFunc func(section, name string, data []byte) error

func (b *Builder) writeOriginals(ctx context.Context, req Request, add addFunc) error {
	for _, id := range req.FileIDs {
		rec, err := b.records.Record(ctx, id)
		if err != nil {
			return err
		}
		if err := add(string(OptionOriginal), path.Join(IndividualDir, entryName(rec.Name, id)), rec.Content); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) writeCompiled(ctx context.Context, req Request, add addFunc) error {
	result, err := b.aggregator.Aggregate(ctx, req.FileIDs, dataprocessing.Compiled, nil)
	if err != nil {
		return err
	}

	folderName, err := b.folders.Name(ctx, req.FolderID)
	if err != nil {
		return err
	}

	for _, c := range result.Categories {
		if result.Contributors[c] == 0 {
			continue
		}
		sheet := c.Spec().Sheet
		data, err := exporter.EncodeTable(sheet, result.Table(c))
		if err != nil {
			return apierrors.NewStorageError("failed to encode compiled workbook", err).WithContext("category", sheet)
		}
		name := path.Join(CompiledDir, entryName(fmt.Sprintf("%s %s.xlsx", sheet, folderName), sheet+".xlsx"))
		if err := add(string(OptionCompiled), name, data); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) writeOverview(ctx context.Context, req Request, add addFunc) (*dataprocessing.AggregateResult, error) {
	result, err := b.aggregator.Aggregate(ctx, req.FileIDs, dataprocessing.Overview, table.AllCategories())
	if err != nil {
		return nil, err
	}

	sheets := make([]exporter.NamedTable, 0, len(result.Categories))
	for _, c := range result.Categories {
		sheets = append(sheets, exporter.NamedTable{Name: c.Spec().OverviewName, Table: result.Table(c)})
	}
	data, err := exporter.EncodeWorkbook(sheets)
	if err != nil {
		return nil, apierrors.NewStorageError("failed to encode overview workbook", err)
	}
	if err := add(string(OptionOverview), path.Join(OverviewDir, OverviewFileName), data); err != nil {
		return nil, err
	}
	return result, nil
}

// entryName keeps a zip entry inside its directory
func entryName(name, fallback string) string {
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return fallback
	}
	return name
}
