package vfscache

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// fakeHTTPClient serves an in-memory byte slice as the ranged-GET source for
// tests that exercise the download producer indirectly through DiskCache /
// FilePool, delivering the whole remaining tail in one segment per Open call.
type fakeHTTPClient struct {
	content []byte
}

func (f *fakeHTTPClient) Open(ctx context.Context, url string, pos uint64) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.content[pos:])), nil
}

// fakeDriveClient is a minimal in-memory DriveClient stand-in: items are
// registered up front, uploads are recorded and can be inspected, and
// directory fetches support conditional revalidation against a stored cTag.
type fakeDriveClient struct {
	mu sync.Mutex

	items map[ItemId]DriveItemMeta
	dirs  map[ItemId]DirFetchResult

	uploads        []uploadCall
	uploadResponse UpdatedFileAttr
	uploadErr      error

	dirFetchCount int
}

type uploadCall struct {
	ItemId  ItemId
	Content []byte
}

func newFakeDriveClient() *fakeDriveClient {
	return &fakeDriveClient{
		items: make(map[ItemId]DriveItemMeta),
		dirs:  make(map[ItemId]DirFetchResult),
	}
}

func (f *fakeDriveClient) GetItem(ctx context.Context, id ItemId) (DriveItemMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id], nil
}

func (f *fakeDriveClient) GetItemWithOption(ctx context.Context, id ItemId, prevCTag Tag) (DirFetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirFetchCount++
	result := f.dirs[id]
	if prevCTag != "" && prevCTag == result.CTag {
		return DirFetchResult{NotModified: true}, nil
	}
	return result, nil
}

func (f *fakeDriveClient) UploadSmall(ctx context.Context, id ItemId, content []byte) (UpdatedFileAttr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(content))
	copy(cp, content)
	f.uploads = append(f.uploads, uploadCall{ItemId: id, Content: cp})
	if f.uploadErr != nil {
		err := f.uploadErr
		f.uploadErr = nil
		return UpdatedFileAttr{}, err
	}
	return f.uploadResponse, nil
}

func (f *fakeDriveClient) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func (f *fakeDriveClient) lastUpload() uploadCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads[len(f.uploads)-1]
}
