package http

import (
	"context"

	"noisereports/internal/drive"
	"noisereports/internal/services"
)

// ReportServiceInterface defines the report operations served over HTTP
type ReportServiceInterface interface {
	ListFolders(ctx context.Context) ([]drive.Folder, error)
	ListFiles(ctx context.Context, folderID string) ([]drive.FileInfo, error)
	BuildArchive(ctx context.Context, req services.DownloadRequest) (*services.Archive, error)
	CacheStats() services.CacheStats
}

// RequestValidator validates decoded request bodies
type RequestValidator interface {
	ValidateStruct(v any) error
}
