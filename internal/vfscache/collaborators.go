package vfscache

import (
	"context"
	"io"
	"time"
)

// DriveItemMeta is what GetItem returns: enough to decide admission into the
// disk cache and to spawn a download producer.
type DriveItemMeta struct {
	ItemId      ItemId
	Size        uint64
	CTag        Tag
	DownloadURL string
}

// ChildMeta describes one child returned by a directory fetch.
type ChildMeta struct {
	ItemId ItemId
	Name   string
	Attr   InodeAttr
}

// DirFetchResult is returned by GetItemWithOption. NotModified is true when
// the server answered the conditional request with "not modified"; callers
// must then reuse their prior snapshot rather than inspect CTag/Children.
type DirFetchResult struct {
	NotModified bool
	CTag        Tag
	Children    []ChildMeta
}

// DriveClient is the remote-drive collaborator the cache core consumes. It
// is deliberately narrow: authentication and token refresh happen below
// this interface, in whatever implements it.
type DriveClient interface {
	// GetItem fetches metadata for a single item (its size, cTag, and a
	// time-limited download URL), used by FilePool.Open.
	GetItem(ctx context.Context, id ItemId) (DriveItemMeta, error)

	// GetItemWithOption fetches a directory's id/cTag plus its expanded
	// children, conditionally on prevCTag via If-None-Match. prevCTag may
	// be empty for an unconditional fetch.
	GetItemWithOption(ctx context.Context, id ItemId, prevCTag Tag) (DirFetchResult, error)

	// UploadSmall uploads the full content of a file in one request and
	// returns the server's confirmed attributes.
	UploadSmall(ctx context.Context, id ItemId, content []byte) (UpdatedFileAttr, error)
}

// HTTPClient issues a ranged GET against a (typically pre-authenticated)
// download URL and exposes the response body as a stream of bytes starting
// at pos. Callers read until EOF or an error.
type HTTPClient interface {
	Open(ctx context.Context, url string, pos uint64) (io.ReadCloser, error)
}

// InodePool is the attribute-cache collaborator: DirPool pushes freshly
// observed child attributes into it so the filesystem layer's inode table
// stays in sync with what the directory fetch just saw.
type InodePool interface {
	Touch(itemID ItemId, attr InodeAttr, fetchedAt time.Time)
}
