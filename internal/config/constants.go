package config

import "time"

const (
	AppName    = "Noise Reports"
	AppVersion = "1.0.0"
)

// Archive options selectable per download request
const (
	ArchiveOptionOriginal = "original"
	ArchiveOptionCompiled = "compiled"
	ArchiveOptionOverview = "overview"
)

// ArchiveOptions lists every archive option in the order sections are written
var ArchiveOptions = []string{ArchiveOptionOriginal, ArchiveOptionCompiled, ArchiveOptionOverview}

const (
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	DefaultDriveTimeout           = 60 * time.Second
	DefaultDrivePageSize          = 100
	DefaultMaxConcurrentDownloads = 8
	DefaultCacheRemoteTimeout     = 2 * time.Minute

	DefaultArchiveMaxFiles = 500
	DefaultArchiveFileName = "downloaded_files.zip"
)
