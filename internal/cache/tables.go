package cache

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	apierrors "noisereports/internal/errors"
	"noisereports/internal/infrastructure"
	"noisereports/internal/table"
)

// ParseFunc decodes workbook bytes into one table per sheet
type ParseFunc func(data []byte) (table.Set, error)

// TableSet is a parsed workbook labelled with the modification timestamp of
// the bytes it was parsed from
type TableSet struct {
	ID         string
	ModifiedAt string
	Sheets     table.Set
}

// TableSetCache keeps parsed workbooks. It checks remote freshness on its own
// rather than trusting the byte cache, and parses each file version once.
type TableSetCache struct {
	remote  Remote
	bytes   *ByteCache
	parse   ParseFunc
	opts    options
	locks   *keyedMutex
	mu      sync.RWMutex
	entries map[string]*TableSet
	stats   counters
}

// NewTableSetCache creates an empty table-set cache reading bytes through bc
func NewTableSetCache(remote Remote, bc *ByteCache, parse ParseFunc, opts ...Option) *TableSetCache {
	return &TableSetCache{
		remote:  remote,
		bytes:   bc,
		parse:   parse,
		opts:    buildOptions("table_cache", opts),
		locks:   newKeyedMutex(),
		entries: make(map[string]*TableSet),
	}
}

// Get returns the parsed sheets of id. A parse failure is returned as a
// ParseError; the previous entry is kept and remains available through Stale.
func (c *TableSetCache) Get(ctx context.Context, id string) (table.Set, error) {
	unlock := c.locks.Lock(id)
	defer unlock()

	mdCtx, cancel := c.opts.remoteContext(ctx)
	md, err := c.remote.Metadata(mdCtx, id)
	cancel()
	if err != nil {
		c.stats.failures.Add(1)
		infrastructure.RecordRemoteFetch(ctx, c.opts.metrics, "metadata", false)
		return nil, asRemoteFetchError(id, "metadata", err)
	}

	if cached := c.load(id); cached != nil && cached.ModifiedAt == md.ModifiedAt {
		c.stats.hits.Add(1)
		infrastructure.RecordCacheLookup(ctx, c.opts.metrics, "tables", "hit")
		c.opts.logger.DebugContext(ctx, "table cache hit",
			slog.String("file_id", id),
			slog.String("modified_at", md.ModifiedAt))
		return cached.Sheets, nil
	}
	c.stats.misses.Add(1)
	infrastructure.RecordCacheLookup(ctx, c.opts.metrics, "tables", "miss")

	rec, err := c.bytes.Record(ctx, id)
	if err != nil {
		c.stats.failures.Add(1)
		return nil, err
	}

	start := time.Now()
	sheets, err := c.parse(rec.Content)
	infrastructure.RecordWorkbookParse(ctx, c.opts.metrics, time.Since(start), err == nil)
	if err != nil {
		c.stats.failures.Add(1)
		parseErr := asParseError(id, err)
		c.opts.logger.ErrorContext(ctx, "workbook parse failed",
			slog.String("file_id", id),
			slog.String("modified_at", rec.ModifiedAt),
			slog.String("error", parseErr.Error()))
		return nil, parseErr
	}
	c.stats.parses.Add(1)

	entry := &TableSet{ID: id, ModifiedAt: rec.ModifiedAt, Sheets: sheets}
	c.mu.Lock()
	c.entries[id] = entry
	c.mu.Unlock()

	c.opts.logger.InfoContext(ctx, "workbook parsed",
		slog.String("file_id", id),
		slog.String("modified_at", rec.ModifiedAt),
		slog.Int("sheets", len(sheets)),
		slog.Duration("duration", time.Since(start)))

	return sheets, nil
}

// Stale returns the last successfully parsed version of id without any
// freshness check
func (c *TableSetCache) Stale(id string) (TableSet, bool) {
	entry := c.load(id)
	if entry == nil {
		return TableSet{}, false
	}
	return *entry, true
}

// Stats returns a snapshot of the cache counters
func (c *TableSetCache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return c.stats.snapshot(n)
}

func (c *TableSetCache) load(id string) *TableSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[id]
}

// asParseError labels a parse failure with the file id
func asParseError(id string, err error) error {
	var parseErr *apierrors.ParseError
	if stderrors.As(err, &parseErr) {
		if parseErr.FileID == "" {
			labelled := *parseErr
			labelled.FileID = id
			return &labelled
		}
		return err
	}
	return apierrors.NewParseError(id, "", err)
}
