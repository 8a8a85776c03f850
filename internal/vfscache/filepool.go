package vfscache

import (
	"context"

	"github.com/auriora/onemount-vfscache/internal/vfscache/handle"
	cerrors "github.com/auriora/onemount-vfscache/pkg/errors"
)

// fileHandleState is either streaming (backed by a StreamState) or cached
// (backed by a shared FileCache). Exactly one of streaming/cached is
// non-nil.
type fileHandleState struct {
	streaming *StreamState
	cached    *FileCache
	writeMode bool
}

// FilePool opens, reads, and writes file handles, and owns the optional
// DiskCache.
type FilePool struct {
	cfg     Config
	disk    *DiskCache // nil when disk_cache.enable is false
	handles *handle.Slab[*fileHandleState]
	events  chan UpdateEvent
}

// NewFilePool builds a FilePool per cfg. The returned channel carries
// UpdateFile events published after successful background uploads; callers
// should drain it.
func NewFilePool(cfg Config) (*FilePool, <-chan UpdateEvent, error) {
	events := make(chan UpdateEvent, 64)

	var disk *DiskCache
	if cfg.DiskCache.Enable {
		d, err := NewDiskCache(cfg.DiskCache, events)
		if err != nil {
			return nil, nil, err
		}
		disk = d
	}

	return &FilePool{
		cfg:     cfg,
		disk:    disk,
		handles: handle.New[*fileHandleState](),
		events:  events,
	}, events, nil
}

// Open resolves itemID to a cached or streaming handle. Opening for write
// an item too large to cache (or with caching disabled) fails with
// FileTooLarge / WriteWithoutCache respectively. A cached handle owns one
// reference on its FileCache, released by Close.
func (fp *FilePool) Open(ctx context.Context, itemID ItemId, writeMode bool, drive DriveClient, httpClient HTTPClient) (uint64, error) {
	if fp.disk != nil {
		if fc, ok := fp.disk.Lookup(itemID); ok {
			return fp.handles.Alloc(&fileHandleState{cached: fc, writeMode: writeMode}), nil
		}
	}

	meta, err := drive.GetItem(ctx, itemID)
	if err != nil {
		return 0, err
	}

	if fp.disk != nil && meta.Size <= fp.cfg.DiskCache.MaxCachedFileSize {
		fc, admitted, err := fp.disk.TryAllocAndFetch(ctx, itemID, meta.Size, meta.CTag, meta.DownloadURL, httpClient, fp.cfg.Download)
		if err != nil {
			return 0, err
		}
		if admitted {
			return fp.handles.Alloc(&fileHandleState{cached: fc, writeMode: writeMode}), nil
		}
	}

	if writeMode {
		if fp.disk == nil {
			return 0, cerrors.ErrWriteWithoutCache
		}
		return 0, cerrors.ErrFileTooLarge
	}

	chunks := make(chan []byte, fp.cfg.Download.StreamBufferChunks)
	go runDownloadProducer(ctx, meta.DownloadURL, meta.Size, httpClient, chunks, fp.cfg.Download)
	st := newStreamState(meta.Size, chunks)
	return fp.handles.Alloc(&fileHandleState{streaming: st}), nil
}

// Close releases handle's slot and, for a cached handle, the handle's
// reference on the FileCache -- the last holder settles the byte accounting.
func (fp *FilePool) Close(h uint64) error {
	st, ok := fp.handles.Get(h)
	if !ok || !fp.handles.Free(h) {
		return cerrors.NewInvalidHandleError(h)
	}
	if st.cached != nil {
		st.cached.Release()
	}
	return nil
}

// Read dispatches to stream-read or cache-read depending on the handle kind.
func (fp *FilePool) Read(h uint64, offset, size uint64) ([]byte, error) {
	st, ok := fp.handles.Get(h)
	if !ok {
		return nil, cerrors.NewInvalidHandleError(h)
	}
	if st.streaming != nil {
		return st.streaming.Read(offset, size)
	}
	return st.cached.Read(offset, size)
}

// Write is cache-only; a streaming handle in write mode is a precondition
// violation (Open never actually produces one, since
// write_mode always routes to a cached handle or an error).
func (fp *FilePool) Write(ctx context.Context, h uint64, offset uint64, data []byte, drive DriveClient) (UpdatedFileAttr, error) {
	st, ok := fp.handles.Get(h)
	if !ok {
		return UpdatedFileAttr{}, cerrors.NewInvalidHandleError(h)
	}
	if st.cached == nil {
		return UpdatedFileAttr{}, cerrors.New("write precondition violation: handle is not cache-backed")
	}
	return st.cached.Write(ctx, offset, data, drive, fp.cfg.Upload)
}

// SyncItems forwards to the DiskCache, invalidating any cached file whose
// remote cTag has changed. It is a no-op when disk caching is disabled.
func (fp *FilePool) SyncItems(items []SyncItem) {
	if fp.disk == nil {
		return
	}
	fp.disk.SyncItems(items)
}
