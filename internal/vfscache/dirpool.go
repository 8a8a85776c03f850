package vfscache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/auriora/onemount-vfscache/internal/vfscache/handle"
	cerrors "github.com/auriora/onemount-vfscache/pkg/errors"
	"github.com/auriora/onemount-vfscache/pkg/logging"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DirSnapshot is an immutable directory listing captured at a point in
// time. Once built it is never mutated; it may be shared by the LRU and any
// number of live handles simultaneously.
type DirSnapshot struct {
	CTag      Tag
	Entries   []DirEntry
	nameIndex map[string]int
}

type dirCacheEntry struct {
	snapshot  *DirSnapshot
	fetchedAt time.Time
}

type dirHandleState struct {
	snapshot *DirSnapshot
}

// LookupResult classifies the outcome of DirPool.Lookup's triple-state
// contract.
type LookupResult int

const (
	// LookupCacheMiss means there is no fresh snapshot for the parent
	// inode; the caller must Open (and likely Read) instead.
	LookupCacheMiss LookupResult = iota
	// LookupNameNotFound means the snapshot is fresh but has no entry by
	// that name.
	LookupNameNotFound
	// LookupFound means the entry was present in a fresh snapshot.
	LookupFound
)

// DirPool opens, caches, and reads directory snapshots, and serves name
// lookups against them without a round trip when the snapshot is fresh.
type DirPool struct {
	ttl     time.Duration
	mu      sync.Mutex
	cache   *lru.Cache[uint64, *dirCacheEntry]
	group   singleflight.Group
	handles *handle.Slab[*dirHandleState]
}

// NewDirPool builds a DirPool per cfg.
func NewDirPool(cfg DirConfig) (*DirPool, error) {
	cache, err := lru.New[uint64, *dirCacheEntry](cfg.LRUCacheSize)
	if err != nil {
		return nil, cerrors.Wrap(err, "construct directory LRU")
	}
	return &DirPool{
		ttl:     cfg.CacheTTL,
		cache:   cache,
		handles: handle.New[*dirHandleState](),
	}, nil
}

// Open resolves inode to a directory handle, issuing a remote fetch only if
// the cached snapshot (if any) is missing or has exceeded cache_ttl.
// Concurrent opens for the same inode within the TTL window collapse onto a
// single in-flight fetch via singleflight, satisfying the "at most one
// remote directory fetch per TTL window" property.
func (p *DirPool) Open(ctx context.Context, inode uint64, itemID ItemId, inodePool InodePool, drive DriveClient) (uint64, error) {
	p.mu.Lock()
	entry, ok := p.cache.Get(inode)
	p.mu.Unlock()

	if ok && time.Since(entry.fetchedAt) < p.ttl {
		return p.handles.Alloc(&dirHandleState{snapshot: entry.snapshot}), nil
	}

	key := strconv.FormatUint(inode, 10)
	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		return p.fetch(ctx, inode, itemID, inodePool, drive, entry)
	})
	if err != nil {
		return 0, err
	}
	return p.handles.Alloc(&dirHandleState{snapshot: v.(*DirSnapshot)}), nil
}

func (p *DirPool) fetch(ctx context.Context, inode uint64, itemID ItemId, inodePool InodePool, drive DriveClient, prev *dirCacheEntry) (*DirSnapshot, error) {
	var prevCTag Tag
	if prev != nil {
		prevCTag = prev.snapshot.CTag
	}

	result, err := drive.GetItemWithOption(ctx, itemID, prevCTag)
	if err != nil {
		return nil, err
	}
	// fetched_at is stamped right after the exchange completes, before
	// parsing children, so cache_ttl is measured from data already known
	// fresh rather than from before the request was sent.
	now := time.Now()

	if result.NotModified {
		if prev == nil {
			return nil, cerrors.New("directory fetch reported not-modified with no prior snapshot")
		}
		logging.Debug().Uint64("inode", inode).Str("cTag", string(prev.snapshot.CTag)).
			Msg("directory revalidation returned not-modified")
		p.mu.Lock()
		p.cache.Add(inode, &dirCacheEntry{snapshot: prev.snapshot, fetchedAt: now})
		p.mu.Unlock()
		return prev.snapshot, nil
	}
	logging.Debug().Uint64("inode", inode).Str("cTag", string(result.CTag)).Int("children", len(result.Children)).
		Msg("fetched fresh directory snapshot")

	entries := make([]DirEntry, 0, len(result.Children))
	index := make(map[string]int, len(result.Children))
	for _, child := range result.Children {
		inodePool.Touch(child.ItemId, child.Attr, now)
		index[child.Name] = len(entries)
		entries = append(entries, DirEntry{ItemId: child.ItemId, Name: child.Name, Attr: child.Attr})
	}
	snap := &DirSnapshot{CTag: result.CTag, Entries: entries, nameIndex: index}

	p.mu.Lock()
	p.cache.Add(inode, &dirCacheEntry{snapshot: snap, fetchedAt: now})
	p.mu.Unlock()
	return snap, nil
}

// Read returns the entries of handle's snapshot starting at offset, in
// server-provided order. It fails with InvalidHandle if handle is unknown.
func (p *DirPool) Read(h uint64, offset int) ([]DirEntry, error) {
	st, ok := p.handles.Get(h)
	if !ok {
		return nil, cerrors.NewInvalidHandleError(h)
	}
	if offset < 0 || offset >= len(st.snapshot.Entries) {
		return nil, nil
	}
	return st.snapshot.Entries[offset:], nil
}

// Lookup is the triple-state name lookup: LookupCacheMiss iff no fresh
// snapshot exists for parentInode; LookupNameNotFound iff the fresh snapshot
// has no such entry; LookupFound with the remaining freshness window
// otherwise.
func (p *DirPool) Lookup(parentInode uint64, name string) (DirEntry, time.Duration, LookupResult) {
	p.mu.Lock()
	entry, ok := p.cache.Get(parentInode)
	p.mu.Unlock()
	if !ok {
		return DirEntry{}, 0, LookupCacheMiss
	}

	elapsed := time.Since(entry.fetchedAt)
	if elapsed >= p.ttl {
		return DirEntry{}, 0, LookupCacheMiss
	}
	remaining := p.ttl - elapsed

	idx, found := entry.snapshot.nameIndex[name]
	if !found {
		return DirEntry{}, remaining, LookupNameNotFound
	}
	return entry.snapshot.Entries[idx], remaining, LookupFound
}

// Free releases handle's slot. The underlying snapshot may remain live via
// the LRU or another handle.
func (p *DirPool) Free(h uint64) error {
	if !p.handles.Free(h) {
		return cerrors.NewInvalidHandleError(h)
	}
	return nil
}
