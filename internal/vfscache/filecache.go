package vfscache

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	cerrors "github.com/auriora/onemount-vfscache/pkg/errors"
	"github.com/auriora/onemount-vfscache/pkg/logging"
)

// Status is a FileCache's lifecycle state.
type Status int

const (
	StatusDownloading Status = iota
	StatusAvailable
	StatusDirty
	StatusInvalidated
)

func (s Status) String() string {
	switch s {
	case StatusDownloading:
		return "Downloading"
	case StatusAvailable:
		return "Available"
	case StatusDirty:
		return "Dirty"
	case StatusInvalidated:
		return "Invalidated"
	default:
		return "Unknown"
	}
}

// FileCache is a single item's local backing file plus its state machine:
// a download producer fills it, a writer task advances the
// available-size watch, writes move it Available->Dirty, and an uploader
// task writes it back and reconciles status by mtime token.
//
// A FileCache is reference-counted: the owning DiskCache's LRU holds one
// reference and every open handle holds another, so an entry evicted from
// the LRU stays fully usable for handles that already have it. Its bytes
// leave the aggregate counter only when the last holder calls Release.
type FileCache struct {
	ItemID ItemId

	file *os.File

	refMu sync.Mutex
	refs  int

	// state lock: guards status, fileSize, availableSize, downloadDone,
	// dirtyToken. Held across backing-file I/O. cond is bound to the same
	// mutex and backs the available-size watch.
	mu            sync.Mutex
	cond          *sync.Cond
	status        Status
	fileSize      uint64
	availableSize uint64
	downloadDone  bool
	dirtyToken    uint64
	nextToken     uint64

	// cTag has its own short lock, independent of the state lock.
	ctagMu sync.Mutex
	cTag   Tag

	// total points at the owning DiskCache's aggregate byte counter alone,
	// not the DiskCache itself, so settling the account on final drop does
	// not keep the pool alive.
	total  *byteCounter
	events chan<- UpdateEvent
}

func newFileCache(itemID ItemId, cTag Tag, file *os.File, fileSize uint64, total *byteCounter, events chan<- UpdateEvent) *FileCache {
	fc := &FileCache{
		ItemID:   itemID,
		refs:     1,
		file:     file,
		fileSize: fileSize,
		status:   StatusDownloading,
		cTag:     cTag,
		total:    total,
		events:   events,
	}
	fc.cond = sync.NewCond(&fc.mu)
	return fc
}

// Retain adds a reference for a new holder (an open handle, or the LRU).
func (fc *FileCache) Retain() {
	fc.refMu.Lock()
	fc.refs++
	fc.refMu.Unlock()
}

// Release drops one reference. The last holder settles the account: the
// backing file is closed and removed, and the aggregate byte counter is
// decremented by the last-known file size.
func (fc *FileCache) Release() {
	fc.refMu.Lock()
	fc.refs--
	last := fc.refs == 0
	fc.refMu.Unlock()
	if !last {
		return
	}

	fc.mu.Lock()
	size := fc.fileSize
	fc.mu.Unlock()

	path := fc.file.Name()
	fc.file.Close()
	if err := os.Remove(path); err != nil {
		logging.Warn().Str("itemId", string(fc.ItemID)).Err(err).Msg("failed to remove cache backing file")
	}
	fc.total.drop(size)
}

// CTag returns the cache's current cTag under its own short lock.
func (fc *FileCache) CTag() Tag {
	fc.ctagMu.Lock()
	defer fc.ctagMu.Unlock()
	return fc.cTag
}

// startDownload spawns the download producer and the writer task that
// drains it into the backing file.
func (fc *FileCache) startDownload(ctx context.Context, url string, http HTTPClient, cfg DownloadConfig) {
	capacity := 64
	chunks := make(chan []byte, capacity)
	go runDownloadProducer(ctx, url, fc.fileSize, http, chunks, cfg)
	go fc.runWriter(chunks)
}

// runWriter consumes the chunk channel, sequentially writing each chunk to
// the backing file and advancing the available-size watch. On reaching
// file_size it flips Downloading -> Available. It must not run concurrently
// with itself for a given cache; there is exactly one writer goroutine per
// FileCache, started once from startDownload.
func (fc *FileCache) runWriter(chunks <-chan []byte) {
	var pos uint64
	for chunk := range chunks {
		fc.mu.Lock()
		if fc.status == StatusInvalidated {
			fc.mu.Unlock()
			return
		}
		if _, err := fc.file.WriteAt(chunk, int64(pos)); err != nil {
			fc.mu.Unlock()
			return
		}
		pos += uint64(len(chunk))
		fc.availableSize = pos
		if pos >= fc.fileSize {
			fc.downloadDone = true
			if fc.status == StatusDownloading {
				fc.status = StatusAvailable
			}
		}
		fc.cond.Broadcast()
		fc.mu.Unlock()
	}

	fc.mu.Lock()
	fc.downloadDone = true
	fc.cond.Broadcast()
	fc.mu.Unlock()
}

// waitBytesAvailableLocked blocks until at least end bytes have landed in
// the backing file, or the cache is already fully available or dirty. The
// caller must already hold fc.mu. On success it returns with fc.mu still
// held; on error it has already unlocked.
func (fc *FileCache) waitBytesAvailableLocked(end uint64) error {
	for {
		switch {
		case fc.status == StatusInvalidated:
			fc.mu.Unlock()
			return cerrors.ErrInvalidated
		case fc.status == StatusAvailable || fc.status == StatusDirty:
			return nil
		case fc.status == StatusDownloading && fc.availableSize >= end:
			return nil
		case fc.status == StatusDownloading && fc.downloadDone:
			fc.mu.Unlock()
			return cerrors.NewUnexpectedEndOfDownloadError(fc.availableSize, fc.fileSize)
		default:
			fc.cond.Wait()
		}
	}
}

// Read clamps to [offset, min(file_size, offset+size)), waits for those
// bytes to become available, and returns them.
func (fc *FileCache) Read(offset, size uint64) ([]byte, error) {
	fc.mu.Lock()
	if offset >= fc.fileSize || size == 0 {
		fc.mu.Unlock()
		return nil, nil
	}
	end := offset + size
	if end > fc.fileSize {
		end = fc.fileSize
	}
	if err := fc.waitBytesAvailableLocked(end); err != nil {
		return nil, err
	}
	defer fc.mu.Unlock()

	buf := make([]byte, end-offset)
	n, err := fc.file.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, cerrors.Wrap(err, "read cache backing file")
	}
	return buf[:n], nil
}

// Write waits for the download to have fully landed, then mutates the
// backing file, extends the file size if needed, and always spawns a fresh
// uploader -- the mtime-token check in the uploader loop is what serializes
// concurrent uploaders down to at most one doing real I/O at a time.
func (fc *FileCache) Write(ctx context.Context, offset uint64, data []byte, drive DriveClient, cfg UploadConfig) (UpdatedFileAttr, error) {
	if offset+uint64(len(data)) > cfg.MaxSize {
		return UpdatedFileAttr{}, cerrors.ErrFileTooLarge
	}

	fc.mu.Lock()
	if err := fc.waitBytesAvailableLocked(fc.fileSize); err != nil {
		return UpdatedFileAttr{}, err
	}
	defer fc.mu.Unlock()

	if fc.status == StatusDownloading || fc.status == StatusInvalidated {
		return UpdatedFileAttr{}, cerrors.New("write precondition violation: cache is not ready")
	}

	fc.nextToken++
	token := fc.nextToken
	fc.status = StatusDirty
	fc.dirtyToken = token

	if _, err := fc.file.WriteAt(data, int64(offset)); err != nil {
		return UpdatedFileAttr{}, cerrors.Wrap(err, "write cache backing file")
	}

	newEnd := offset + uint64(len(data))
	if newEnd > fc.fileSize {
		delta := newEnd - fc.fileSize
		fc.fileSize = newEnd
		fc.availableSize = newEnd
		fc.total.grow(delta)
	}

	go fc.runUploader(ctx, token, drive, cfg)

	return UpdatedFileAttr{ItemId: fc.ItemID, Size: fc.fileSize, Mtime: time.Now()}, nil
}

// runUploader sleeps flush_delay, then loops: if status is still Dirty with
// this uploader's token, it reads the whole file and uploads it; any error
// sleeps retry_delay and loops back to the token check (picking up further
// writes, but only while the token still matches). A mismatching token at
// either check means a newer write's uploader owns the job now, so this one
// exits quietly.
func (fc *FileCache) runUploader(ctx context.Context, token uint64, drive DriveClient, cfg UploadConfig) {
	timer := time.NewTimer(cfg.FlushDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return
	}

	for {
		fc.mu.Lock()
		if !(fc.status == StatusDirty && fc.dirtyToken == token) {
			fc.mu.Unlock()
			return
		}
		data := make([]byte, fc.fileSize)
		if _, err := fc.file.ReadAt(data, 0); err != nil && err != io.EOF {
			fc.mu.Unlock()
			return
		}
		fc.mu.Unlock()

		attr, err := drive.UploadSmall(ctx, fc.ItemID, data)
		if err != nil {
			logging.Warn().Str("itemId", string(fc.ItemID)).Err(err).Msg("upload failed, will retry after delay")
			select {
			case <-time.After(cfg.RetryDelay):
			case <-ctx.Done():
				return
			}
			continue
		}

		fc.ctagMu.Lock()
		fc.cTag = attr.CTag
		fc.ctagMu.Unlock()

		if fc.events != nil {
			select {
			case fc.events <- UpdateEvent{UpdateFile: &attr}:
			default:
			}
		}

		fc.mu.Lock()
		if fc.status == StatusDirty && fc.dirtyToken == token {
			fc.status = StatusAvailable
			logging.Debug().Str("itemId", string(fc.ItemID)).Msg("upload reconciled, cache is now Available")
		}
		fc.mu.Unlock()
		return
	}
}

// Invalidate marks the cache Invalidated; any read/write blocked in
// waitBytesAvailableLocked or arriving afterward fails with Invalidated at
// its next lock acquisition.
func (fc *FileCache) Invalidate() {
	fc.mu.Lock()
	fc.status = StatusInvalidated
	fc.cond.Broadcast()
	fc.mu.Unlock()
}
