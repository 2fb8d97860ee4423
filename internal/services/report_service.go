package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"noisereports/internal/cache"
	"noisereports/internal/drive"
	apierrors "noisereports/internal/errors"
	"noisereports/internal/packaging"
)

// FolderBrowser lists folders and files in the remote store
type FolderBrowser interface {
	ListFolders(ctx context.Context, parentID string) ([]drive.Folder, error)
	ListFiles(ctx context.Context, folderID string) ([]drive.FileInfo, error)
}

// ArchiveBuilder writes download archives
type ArchiveBuilder interface {
	Build(ctx context.Context, w io.Writer, req packaging.Request) (*packaging.Result, error)
}

// StatsProvider exposes cache statistics
type StatsProvider interface {
	Stats() cache.Stats
}

// DownloadRequest is the body of a download: the files of one folder and the
// archive sections to include. Form posts repeat the files and options fields.
type DownloadRequest struct {
	FolderID string   `json:"folder_id" validate:"omitempty,driveid"`
	FileIDs  []string `json:"files" validate:"required,min=1,dive,required,driveid"`
	Options  []string `json:"options" validate:"dive,archiveoption"`
}

// Archive is a fully built download
type Archive struct {
	FileName string
	Data     []byte
	Result   *packaging.Result
}

// OverviewFailures lists the overview categories that could not be aggregated
func (a *Archive) OverviewFailures() []string {
	if a.Result == nil || a.Result.Overview == nil {
		return nil
	}
	out := make([]string, 0, len(a.Result.Overview.Failures))
	for _, f := range a.Result.Overview.Failures {
		out = append(out, f.Category.Spec().Key)
	}
	return out
}

// CacheStats reports both cache tiers
type CacheStats struct {
	Bytes  cache.Stats `json:"bytes"`
	Tables cache.Stats `json:"tables"`
}

// ReportServiceConfig holds the settings of a ReportService
type ReportServiceConfig struct {
	ParentFolderID string
	MaxFiles       int
	DefaultOptions []string
	ArchiveName    string
}

// ReportService lists measurement reports and packages downloads
type ReportService struct {
	browser FolderBrowser
	builder ArchiveBuilder
	bytes   StatsProvider
	tables  StatsProvider
	cfg     ReportServiceConfig
	logger  *slog.Logger
}

// NewReportService creates a ReportService
func NewReportService(browser FolderBrowser, builder ArchiveBuilder, byteStats, tableStats StatsProvider, cfg ReportServiceConfig, logger *slog.Logger) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ArchiveName == "" {
		cfg.ArchiveName = "downloaded_files.zip"
	}
	return &ReportService{
		browser: browser,
		builder: builder,
		bytes:   byteStats,
		tables:  tableStats,
		cfg:     cfg,
		logger:  logger.With(slog.String("service", "report")),
	}
}

// ListFolders returns the measurement campaign folders under the parent folder
func (s *ReportService) ListFolders(ctx context.Context) ([]drive.Folder, error) {
	if s.cfg.ParentFolderID == "" {
		return nil, apierrors.NewWithDetails(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", ErrNoParentFolder.Error(), nil)
	}
	folders, err := s.browser.ListFolders(ctx, s.cfg.ParentFolderID)
	if err != nil {
		return nil, err
	}
	if folders == nil {
		folders = []drive.Folder{}
	}
	return folders, nil
}

// ListFiles returns the report files of a folder
func (s *ReportService) ListFiles(ctx context.Context, folderID string) ([]drive.FileInfo, error) {
	files, err := s.browser.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []drive.FileInfo{}
	}
	return files, nil
}

// BuildArchive validates req and builds the whole archive in memory, so a
// failure can still be reported before any byte reaches the client.
func (s *ReportService) BuildArchive(ctx context.Context, req DownloadRequest) (*Archive, error) {
	preq, err := s.packagingRequest(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var buf bytes.Buffer
	result, err := s.builder.Build(ctx, &buf, preq)
	if err != nil {
		return nil, err
	}

	archive := &Archive{FileName: s.cfg.ArchiveName, Data: buf.Bytes(), Result: result}
	if failures := archive.OverviewFailures(); len(failures) > 0 {
		s.logger.WarnContext(ctx, "overview built with failed categories",
			slog.String("build_id", result.BuildID),
			slog.Any("categories", failures),
			slog.String("reasons", result.Overview.FailureSummary()))
	}

	s.logger.InfoContext(ctx, "download prepared",
		slog.String("build_id", result.BuildID),
		slog.String("folder_id", req.FolderID),
		slog.Int("files", len(preq.FileIDs)),
		slog.Int("bytes", len(archive.Data)),
		slog.Duration("duration", time.Since(start)))
	return archive, nil
}

// packagingRequest applies defaults and the checks struct tags cannot express
func (s *ReportService) packagingRequest(req DownloadRequest) (packaging.Request, error) {
	if len(req.FileIDs) == 0 {
		return packaging.Request{}, apierrors.ErrValidation("files", ErrNoFilesSelected.Error())
	}
	if s.cfg.MaxFiles > 0 && len(req.FileIDs) > s.cfg.MaxFiles {
		return packaging.Request{}, apierrors.ErrValidation("files",
			fmt.Sprintf("%s: %d > %d", ErrTooManyFiles, len(req.FileIDs), s.cfg.MaxFiles))
	}

	names := req.Options
	if len(names) == 0 {
		names = s.cfg.DefaultOptions
	}

	options := make([]packaging.Option, 0, len(names))
	seen := make(map[packaging.Option]bool, len(names))
	for _, name := range names {
		opt, err := packaging.ParseOption(name)
		if err != nil {
			return packaging.Request{}, apierrors.ErrValidation("options", fmt.Sprintf("%s: %q", ErrUnknownOption, name))
		}
		if !seen[opt] {
			seen[opt] = true
			options = append(options, opt)
		}
	}
	if seen[packaging.OptionCompiled] && req.FolderID == "" {
		return packaging.Request{}, apierrors.ErrValidation("folder_id", ErrFolderRequired.Error())
	}

	return packaging.Request{FolderID: req.FolderID, FileIDs: req.FileIDs, Options: options}, nil
}

// CacheStats returns a snapshot of both cache tiers
func (s *ReportService) CacheStats() CacheStats {
	return CacheStats{Bytes: s.bytes.Stats(), Tables: s.tables.Stats()}
}
