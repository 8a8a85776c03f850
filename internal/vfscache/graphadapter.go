package vfscache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	cerrors "github.com/auriora/onemount-vfscache/pkg/errors"
	"github.com/auriora/onemount-vfscache/pkg/graph"
)

// GraphDriveClient adapts a *graph.Client to the narrow DriveClient
// interface the cache core consumes, translating Graph's DriveItem JSON
// shape into the plain ItemId/Tag/InodeAttr types of this package.
type GraphDriveClient struct {
	Client *graph.Client
}

// NewGraphDriveClient wraps client.
func NewGraphDriveClient(client *graph.Client) *GraphDriveClient {
	return &GraphDriveClient{Client: client}
}

// GetItem implements DriveClient.
func (g *GraphDriveClient) GetItem(ctx context.Context, id ItemId) (DriveItemMeta, error) {
	item, err := g.Client.GetItem(ctx, string(id))
	if err != nil {
		return DriveItemMeta{}, err
	}
	return DriveItemMeta{
		ItemId:      ItemId(item.ID),
		Size:        item.Size,
		CTag:        Tag(item.CTag),
		DownloadURL: item.DownloadURL,
	}, nil
}

// GetItemWithOption implements DriveClient, always applying
// graph.DefaultDirectoryOption so the response includes the expanded
// children a directory fetch needs.
func (g *GraphDriveClient) GetItemWithOption(ctx context.Context, id ItemId, prevCTag Tag) (DirFetchResult, error) {
	item, err := g.Client.GetItemWithOption(ctx, string(id), graph.DefaultDirectoryOption, string(prevCTag))
	if err != nil {
		return DirFetchResult{}, err
	}
	if graph.IsNotModified(item) {
		return DirFetchResult{NotModified: true}, nil
	}

	children := make([]ChildMeta, 0, len(item.Children))
	for _, c := range item.Children {
		children = append(children, ChildMeta{
			ItemId: ItemId(c.ID),
			Name:   c.Name,
			Attr:   driveItemAttr(c),
		})
	}
	return DirFetchResult{CTag: Tag(item.CTag), Children: children}, nil
}

// UploadSmall implements DriveClient.
func (g *GraphDriveClient) UploadSmall(ctx context.Context, id ItemId, content []byte) (UpdatedFileAttr, error) {
	item, err := g.Client.UploadSmall(ctx, string(id), content)
	if err != nil {
		return UpdatedFileAttr{}, err
	}
	return UpdatedFileAttr{
		ItemId: ItemId(item.ID),
		Size:   item.Size,
		Mtime:  timeOrZero(item.ModTime),
		CTag:   Tag(item.CTag),
	}, nil
}

func driveItemAttr(item *graph.DriveItem) InodeAttr {
	return InodeAttr{
		Size:        item.Size,
		ModTime:     timeOrZero(item.ModTime),
		CreatedTime: timeOrZero(item.CreatedTime),
		IsDir:       item.IsDir(),
	}
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// GraphHTTPClient issues ranged GETs directly against OneDrive's
// pre-authenticated download URLs. Unlike every other Graph endpoint these
// URLs are already signed and time-limited, so no bearer token is attached
// here.
type GraphHTTPClient struct {
	HTTP *http.Client
}

// NewGraphHTTPClient wraps hc, or http.DefaultClient if hc is nil.
func NewGraphHTTPClient(hc *http.Client) *GraphHTTPClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &GraphHTTPClient{HTTP: hc}
}

// Open implements HTTPClient by issuing a ranged GET starting at pos.
func (g *GraphHTTPClient) Open(ctx context.Context, url string, pos uint64) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", "bytes="+strconv.FormatUint(pos, 10)+"-")

	resp, err := g.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	// Only 206 proves the server honored the Range header. A 200 would be
	// the full body from offset 0, which the producer would misfile at pos,
	// so anything else is an error for its retry loop to handle.
	if resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, cerrors.New(fmt.Sprintf("ranged GET returned status %d, want 206", resp.StatusCode))
	}
	return resp.Body, nil
}
