package cache

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"noisereports/internal/drive"
	apierrors "noisereports/internal/errors"
	"noisereports/internal/infrastructure"
)

// Remote is the remote file store the caches read through
type Remote interface {
	Metadata(ctx context.Context, id string) (drive.FileMetadata, error)
	Content(ctx context.Context, id string) ([]byte, error)
}

// FileRecord is the cached content of one remote file. Content is shared
// between callers and must not be modified.
type FileRecord struct {
	ID         string
	Name       string
	ModifiedAt string
	Content    []byte
}

// ByteCache keeps the raw content of remote files for the life of the process
// and re-downloads a file only when its modification timestamp changes.
type ByteCache struct {
	remote  Remote
	opts    options
	locks   *keyedMutex
	mu      sync.RWMutex
	entries map[string]*FileRecord
	stats   counters
}

// NewByteCache creates an empty, unbounded byte cache
func NewByteCache(remote Remote, opts ...Option) *ByteCache {
	return &ByteCache{
		remote:  remote,
		opts:    buildOptions("byte_cache", opts),
		locks:   newKeyedMutex(),
		entries: make(map[string]*FileRecord),
	}
}

// Get returns the current content of id
func (c *ByteCache) Get(ctx context.Context, id string) ([]byte, error) {
	rec, err := c.Record(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Content, nil
}

// Record checks the remote modification timestamp of id and returns the cached
// record when it still matches, otherwise downloads and stores the new content.
// On failure the previous entry is left untouched.
func (c *ByteCache) Record(ctx context.Context, id string) (FileRecord, error) {
	unlock := c.locks.Lock(id)
	defer unlock()

	md, err := c.metadata(ctx, id)
	if err != nil {
		return FileRecord{}, c.fail(ctx, id, "metadata", err)
	}

	if cached := c.load(id); cached != nil && cached.ModifiedAt == md.ModifiedAt {
		c.stats.hits.Add(1)
		infrastructure.RecordCacheLookup(ctx, c.opts.metrics, "bytes", "hit")
		c.opts.logger.DebugContext(ctx, "byte cache hit",
			slog.String("file_id", id),
			slog.String("modified_at", md.ModifiedAt))
		return *cached, nil
	}
	c.stats.misses.Add(1)
	infrastructure.RecordCacheLookup(ctx, c.opts.metrics, "bytes", "miss")

	start := time.Now()
	content, err := c.content(ctx, id)
	if err != nil {
		return FileRecord{}, c.fail(ctx, id, "content", err)
	}
	c.stats.fetches.Add(1)
	infrastructure.RecordRemoteFetch(ctx, c.opts.metrics, "content", true)

	rec := &FileRecord{ID: id, Name: md.Name, ModifiedAt: md.ModifiedAt, Content: content}
	c.mu.Lock()
	c.entries[id] = rec
	c.mu.Unlock()

	c.opts.logger.InfoContext(ctx, "file content cached",
		slog.String("file_id", id),
		slog.String("modified_at", md.ModifiedAt),
		slog.Int("bytes", len(content)),
		slog.Duration("duration", time.Since(start)))

	return *rec, nil
}

// Stats returns a snapshot of the cache counters
func (c *ByteCache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return c.stats.snapshot(n)
}

// metadata and content each get their own remote deadline
func (c *ByteCache) metadata(ctx context.Context, id string) (drive.FileMetadata, error) {
	ctx, cancel := c.opts.remoteContext(ctx)
	defer cancel()
	return c.remote.Metadata(ctx, id)
}

func (c *ByteCache) content(ctx context.Context, id string) ([]byte, error) {
	ctx, cancel := c.opts.remoteContext(ctx)
	defer cancel()
	return c.remote.Content(ctx, id)
}

func (c *ByteCache) load(id string) *FileRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[id]
}

func (c *ByteCache) fail(ctx context.Context, id, op string, err error) error {
	c.stats.failures.Add(1)
	infrastructure.RecordRemoteFetch(ctx, c.opts.metrics, op, false)
	fetchErr := asRemoteFetchError(id, op, err)
	c.opts.logger.WarnContext(ctx, "remote fetch failed",
		slog.String("file_id", id),
		slog.String("op", op),
		slog.String("error", fetchErr.Error()))
	return fetchErr
}

// asRemoteFetchError keeps an existing RemoteFetchError and wraps anything else
func asRemoteFetchError(id, op string, err error) error {
	var fetchErr *apierrors.RemoteFetchError
	if stderrors.As(err, &fetchErr) {
		return err
	}
	return apierrors.NewRemoteFetchError(id, op, err)
}
