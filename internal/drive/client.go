package drive

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	apierrors "noisereports/internal/errors"
)

const (
	folderMimeType  = "application/vnd.google-apps.folder"
	defaultPageSize = 100
	maxPageSize     = 1000
)

// FileMetadata is the subset of Drive file metadata the caches depend on.
// ModifiedAt is compared by exact equality only.
type FileMetadata struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at"`
}

// FileInfo describes a file listed inside a folder
type FileInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

// Folder describes a sub-folder of the parent folder
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Options configures a Client
type Options struct {
	CredentialsFile        string
	RequestTimeout         time.Duration
	PageSize               int
	MaxConcurrentDownloads int
	// ClientOptions are appended to the service options, mainly for tests
	ClientOptions []option.ClientOption
}

// Client reads folders, metadata and file content from Google Drive
type Client struct {
	service   *drive.Service
	timeout   time.Duration
	pageSize  int64
	downloads *semaphore.Weighted
	logger    *slog.Logger
}

// NewClient creates a read-only Drive client
func NewClient(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	clientOpts := []option.ClientOption{option.WithScopes(drive.DriveReadonlyScope)}
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)

	service, err := drive.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	c := &Client{
		service:  service,
		timeout:  opts.RequestTimeout,
		pageSize: int64(pageSize),
		logger:   logger.With(slog.String("component", "drive_client")),
	}
	if opts.MaxConcurrentDownloads > 0 {
		c.downloads = semaphore.NewWeighted(int64(opts.MaxConcurrentDownloads))
	}
	return c, nil
}

// Metadata returns the name and modification timestamp of a file
func (c *Client) Metadata(ctx context.Context, fileID string) (FileMetadata, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	f, err := c.service.Files.Get(fileID).
		Fields("id, name, modifiedTime").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return FileMetadata{}, apierrors.NewRemoteFetchError(fileID, "metadata", classify(err))
	}

	return FileMetadata{ID: f.Id, Name: f.Name, ModifiedAt: f.ModifiedTime}, nil
}

// Content downloads the full content of a file
func (c *Client) Content(ctx context.Context, fileID string) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if c.downloads != nil {
		if err := c.downloads.Acquire(ctx, 1); err != nil {
			return nil, apierrors.NewRemoteFetchError(fileID, "content", err)
		}
		defer c.downloads.Release(1)
	}

	start := time.Now()
	resp, err := c.service.Files.Get(fileID).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, apierrors.NewRemoteFetchError(fileID, "content", classify(err))
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, apierrors.NewRemoteFetchError(fileID, "content", err)
	}

	c.logger.DebugContext(ctx, "file downloaded",
		slog.String("file_id", fileID),
		slog.Int("bytes", buf.Len()),
		slog.Duration("duration", time.Since(start)))

	return buf.Bytes(), nil
}

// ListFolders lists the non-trashed sub-folders of parentID
func (c *Client) ListFolders(ctx context.Context, parentID string) ([]Folder, error) {
	q := fmt.Sprintf("'%s' in parents and mimeType = '%s' and trashed = false", escapeQuery(parentID), folderMimeType)

	var folders []Folder
	err := c.list(ctx, parentID, q, "nextPageToken, files(id, name)", func(f *drive.File) {
		folders = append(folders, Folder{ID: f.Id, Name: f.Name})
	})
	if err != nil {
		return nil, err
	}
	return folders, nil
}

// ListFiles lists every non-folder, non-trashed file in folderID, following pagination
func (c *Client) ListFiles(ctx context.Context, folderID string) ([]FileInfo, error) {
	q := fmt.Sprintf("'%s' in parents and mimeType != '%s' and trashed = false", escapeQuery(folderID), folderMimeType)

	var files []FileInfo
	err := c.list(ctx, folderID, q, "nextPageToken, files(id, name, size, modifiedTime)", func(f *drive.File) {
		files = append(files, FileInfo{ID: f.Id, Name: f.Name, Size: f.Size, ModifiedAt: f.ModifiedTime})
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (c *Client) list(ctx context.Context, parentID, q, fields string, fn func(*drive.File)) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	pageToken := ""
	pages := 0
	for {
		call := c.service.Files.List().
			Q(q).
			Fields(googleapi.Field(fields)).
			PageSize(c.pageSize).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return apierrors.NewRemoteFetchError(parentID, "list", classify(err))
		}
		for _, f := range resp.Files {
			fn(f)
		}
		pages++

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	c.logger.DebugContext(ctx, "folder listed",
		slog.String("parent_id", parentID),
		slog.Int("pages", pages))
	return nil
}

// Name returns the display name of any Drive item, used for folder names
func (c *Client) Name(ctx context.Context, id string) (string, error) {
	md, err := c.Metadata(ctx, id)
	if err != nil {
		return "", err
	}
	return md.Name, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// classify maps a 404 from the Drive API onto ErrFileNotFound while keeping the cause
func classify(err error) error {
	var gerr *googleapi.Error
	if stderrors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s", apierrors.ErrFileNotFound, gerr.Message)
	}
	return err
}

// escapeQuery escapes single quotes and backslashes for Drive query literals
func escapeQuery(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		if r == '\'' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
