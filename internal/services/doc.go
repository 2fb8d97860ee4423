// Package services holds the request-level logic between the HTTP handlers and
// the caches, the aggregation engine and the archive builder.
//
// ReportService lists campaign folders and their report files, validates
// download requests, and builds the zip archive in memory so errors can still
// be turned into a problem response. HealthService runs readiness checks
// against the remote store.
//
// Services take their collaborators as small interfaces and a *slog.Logger
// through their constructors:
//
//	svc := services.NewReportService(driveClient, builder, byteCache, tableCache, cfg, logger)
//	archive, err := svc.BuildArchive(ctx, services.DownloadRequest{
//		FolderID: folderID,
//		FileIDs:  []string{"a", "b"},
//		Options:  []string{"overview"},
//	})
package services
