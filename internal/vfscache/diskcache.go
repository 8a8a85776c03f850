package vfscache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	cerrors "github.com/auriora/onemount-vfscache/pkg/errors"
	"github.com/auriora/onemount-vfscache/pkg/logging"
	lru "github.com/hashicorp/golang-lru/v2"
)

// byteCounter is the aggregate byte counter shared by a DiskCache and the
// FileCaches charged against it. FileCaches point at the counter alone, so
// an entry dropped after the pool is gone can still settle its account.
type byteCounter struct {
	n atomic.Uint64
}

func (c *byteCounter) load() uint64 { return c.n.Load() }

func (c *byteCounter) grow(delta uint64) { c.n.Add(delta) }

// drop subtracts delta, clamping at zero so a racing grow doesn't underflow.
func (c *byteCounter) drop(delta uint64) {
	for {
		cur := c.n.Load()
		next := uint64(0)
		if cur > delta {
			next = cur - delta
		}
		if c.n.CompareAndSwap(cur, next) {
			return
		}
	}
}

// DiskCache is a bounded LRU of cached files backed by a local directory,
// tracking aggregate byte usage across all cached files.
//
// The LRU holds one reference per entry; every removal path (capacity
// eviction, space eviction, invalidation) releases that reference through
// the eviction callback. A handle still holding a *FileCache keeps it alive
// past its LRU removal, and its bytes stay charged to the counter until the
// last holder releases it.
type DiskCache struct {
	dir               string
	maxTotalSize      uint64
	maxCachedFileSize uint64

	mu    sync.Mutex
	lru   *lru.Cache[ItemId, *FileCache]
	total byteCounter

	events chan<- UpdateEvent
}

// NewDiskCache builds a DiskCache rooted at cfg.Path, creating the directory
// if necessary.
func NewDiskCache(cfg DiskCacheConfig, events chan<- UpdateEvent) (*DiskCache, error) {
	if err := os.MkdirAll(cfg.Path, 0o700); err != nil {
		return nil, cerrors.Wrap(err, "create disk cache directory")
	}
	l, err := lru.NewWithEvict[ItemId, *FileCache](cfg.MaxFiles, func(_ ItemId, fc *FileCache) {
		fc.Release()
	})
	if err != nil {
		return nil, cerrors.Wrap(err, "construct disk cache LRU")
	}
	return &DiskCache{
		dir:               cfg.Path,
		maxTotalSize:      cfg.MaxTotalSize,
		maxCachedFileSize: cfg.MaxCachedFileSize,
		lru:               l,
		events:            events,
	}, nil
}

// Lookup returns the already-cached FileCache for id, if any, without
// admitting a new one. A hit is returned with a reference acquired for the
// caller, who must Release it when done.
func (dc *DiskCache) Lookup(id ItemId) (*FileCache, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	fc, ok := dc.lru.Get(id)
	if ok {
		fc.Retain()
	}
	return fc, ok
}

// TryAllocAndFetch admits itemID into the cache. It rejects fileSize
// larger than maxCachedFileSize (checked by the caller before invoking this,
// but re-checked here defensively), evicts LRU tail entries under a single
// short lock until there is room, allocates a sparse backing file, and
// spawns the download producer. Evicting an entry that a live handle still
// pins does not free its bytes, so admitted comes back false once the LRU
// drains without enough space. A returned FileCache carries a reference for
// the caller.
func (dc *DiskCache) TryAllocAndFetch(ctx context.Context, itemID ItemId, fileSize uint64, cTag Tag, downloadURL string, httpClient HTTPClient, downloadCfg DownloadConfig) (fc *FileCache, admitted bool, err error) {
	if fileSize > dc.maxCachedFileSize {
		return nil, false, nil
	}

	dc.mu.Lock()
	if existing, ok := dc.lru.Get(itemID); ok {
		existing.Retain()
		dc.mu.Unlock()
		return existing, true, nil
	}

	for dc.total.load()+fileSize > dc.maxTotalSize {
		// RemoveOldest fires the eviction callback, releasing the LRU's
		// reference; a pinned entry's bytes stay charged, so the loop keeps
		// draining until there is room or nothing is left to evict.
		evictedID, _, ok := dc.lru.RemoveOldest()
		if !ok {
			logging.Debug().Str("itemId", string(itemID)).Uint64("fileSize", fileSize).
				Msg("disk cache admission could not free enough space")
			dc.mu.Unlock()
			return nil, false, nil
		}
		logging.Debug().Str("evictedItemId", string(evictedID)).Msg("evicted disk cache entry to make room")
	}

	path := filepath.Join(dc.dir, string(itemID))
	f, openErr := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o600)
	if openErr != nil {
		dc.mu.Unlock()
		return nil, false, cerrors.Wrap(openErr, "allocate cache backing file")
	}
	if truncErr := f.Truncate(int64(fileSize)); truncErr != nil {
		f.Close()
		dc.mu.Unlock()
		return nil, false, cerrors.Wrap(truncErr, "extend cache backing file")
	}

	fc = newFileCache(itemID, cTag, f, fileSize, &dc.total, dc.events)
	fc.Retain() // caller's reference, alongside the LRU's
	dc.lru.Add(itemID, fc)
	dc.total.grow(fileSize)
	dc.mu.Unlock()

	logging.Debug().Str("itemId", string(itemID)).Uint64("fileSize", fileSize).Msg("admitted item into disk cache")
	fc.startDownload(ctx, downloadURL, httpClient, downloadCfg)
	return fc, true, nil
}

// TotalBytes returns the current aggregate byte counter.
func (dc *DiskCache) TotalBytes() uint64 {
	return dc.total.load()
}

// SyncItems invalidates any cached file whose remote cTag no longer matches
// the batch's reported value. Directories (IsDir) are skipped;
// they're invalidated purely by DirPool's TTL, never by this path.
func (dc *DiskCache) SyncItems(items []SyncItem) {
	var toInvalidate []*FileCache

	dc.mu.Lock()
	for _, it := range items {
		if it.IsDir {
			continue
		}
		fc, ok := dc.lru.Peek(it.ItemId)
		if !ok {
			continue
		}
		if fc.CTag() == it.CTag {
			continue
		}
		fc.Retain() // keep it alive past the LRU's release, until Invalidate
		dc.lru.Remove(it.ItemId)
		toInvalidate = append(toInvalidate, fc)
	}
	dc.mu.Unlock()

	// The state lock of each removed cache is acquired only after the LRU
	// lock is released, so a state lock is never taken under the LRU lock.
	for _, fc := range toInvalidate {
		logging.Debug().Str("itemId", string(fc.ItemID)).Msg("invalidating disk cache entry: remote cTag changed")
		fc.Invalidate()
		fc.Release()
	}
}
