package vfscache

// Cache composes a DirPool and a FilePool into the single object a
// filesystem layer drives: directory listings and lookups go through Dirs,
// file content through Files, and a change synchronizer reconciles both
// with a batch of remote metadata via SyncItems.
type Cache struct {
	Dirs  *DirPool
	Files *FilePool
}

// NewCache builds a Cache from cfg.
func NewCache(cfg Config) (*Cache, <-chan UpdateEvent, error) {
	dirs, err := NewDirPool(cfg.Dir)
	if err != nil {
		return nil, nil, err
	}
	files, events, err := NewFilePool(cfg)
	if err != nil {
		return nil, nil, err
	}
	return &Cache{Dirs: dirs, Files: files}, events, nil
}

// SyncItems applies a remote change-notification batch. Folders are ignored:
// directory snapshots are only ever invalidated by DirPool's own TTL
// expiry, never by a sync batch. For each remaining (file) item, a cached
// copy whose stored c_tag no longer matches the reported one is removed
// from the disk cache's LRU and marked Invalidated, so any in-flight read
// fails at its next lock acquisition rather than silently serving stale
// bytes.
func (c *Cache) SyncItems(items []SyncItem) {
	c.Files.SyncItems(items)
}
