package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/auriora/onemount-vfscache/pkg/logging"
)

// DriveTypePersonal is the "driveType" value for a personal OneDrive.
const DriveTypePersonal = "personal"

// DriveItemParent describes a DriveItem's parent in the Graph API.
// https://docs.microsoft.com/en-us/onedrive/developer/rest-api/resources/itemreference
type DriveItemParent struct {
	ID        string `json:"id,omitempty"`
	DriveID   string `json:"driveId,omitempty"`
	DriveType string `json:"driveType,omitempty"`
}

// Folder is used for parsing only.
// https://docs.microsoft.com/en-us/onedrive/developer/rest-api/resources/folder
type Folder struct {
	ChildCount uint32 `json:"childCount,omitempty"`
}

// Deleted is used for detecting when items get deleted on the server.
// https://docs.microsoft.com/en-us/onedrive/developer/rest-api/resources/deleted
type Deleted struct {
	State string `json:"state,omitempty"`
}

// DriveItem contains the data fields from the Graph API that the cache core
// needs. CTag is the conditional-revalidation token; DownloadURL
// is the time-limited pre-authenticated content link Graph returns alongside
// metadata, used so a ranged GET never has to re-authenticate.
type DriveItem struct {
	ID               string           `json:"id,omitempty"`
	Name             string           `json:"name,omitempty"`
	Size             uint64           `json:"size,omitempty"`
	CTag             string           `json:"cTag,omitempty"`
	ETag             string           `json:"eTag,omitempty"`
	ModTime          *time.Time       `json:"lastModifiedDateTime,omitempty"`
	CreatedTime      *time.Time       `json:"createdDateTime,omitempty"`
	DownloadURL      string           `json:"@microsoft.graph.downloadUrl,omitempty"`
	Parent           *DriveItemParent `json:"parentReference,omitempty"`
	Folder           *Folder          `json:"folder,omitempty"`
	Deleted          *Deleted         `json:"deleted,omitempty"`
	ConflictBehavior string           `json:"@microsoft.graph.conflictBehavior,omitempty"`
	// Children is populated when the request used $expand=children, as
	// DefaultDirectoryOption always does.
	Children []*DriveItem `json:"children,omitempty"`
}

// IsDir returns whether the DriveItem represents a directory.
func (d *DriveItem) IsDir() bool {
	return d.Folder != nil
}

// ModTimeUnix returns the modification time as a unix time, or 0 if unset.
func (d *DriveItem) ModTimeUnix() uint64 {
	if d.ModTime == nil {
		return 0
	}
	return uint64(d.ModTime.Unix())
}

// notModifiedSentinel is returned by GetItemWithOption to signal a 304.
var notModifiedSentinel = &DriveItem{}

// IsNotModified reports whether item is the sentinel GetItemWithOption
// returns for a conditional fetch that came back 304.
func IsNotModified(item *DriveItem) bool {
	return item == notModifiedSentinel
}

func getItem(ctx context.Context, c *Client, path string) (*DriveItem, error) {
	body, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	item := &DriveItem{}
	if err := json.Unmarshal(body, item); err != nil {
		if bytes.Contains(body, []byte("\"size\":-")) {
			// OneDrive for Business directories can report negative sizes;
			// treat size as unknown (0) rather than fail the whole fetch.
			var raw map[string]interface{}
			if jsonErr := json.Unmarshal(body, &raw); jsonErr == nil {
				item.Size = 0
				return item, nil
			}
		}
		return nil, err
	}
	return item, nil
}

// GetItem fetches a DriveItem by ID. id may be "root" for the drive root.
func (c *Client) GetItem(ctx context.Context, id string) (*DriveItem, error) {
	return getItem(ctx, c, IDPath(id))
}

// ObjectOption selects which fields and expanded child fields a directory
// fetch should return. The cache core always asks for the same shape; this
// exists as a named type rather than a hardcoded string so that shape is
// documented once.
type ObjectOption struct {
	Select []string
	Expand string
}

// DefaultDirectoryOption is the field selection DirPool uses for every
// directory fetch and revalidation: id and cTag on the item itself, plus the
// expanded child fields needed to build DirEntry/InodeAttr without a second
// round trip per child.
var DefaultDirectoryOption = ObjectOption{
	Select: []string{"id", "cTag"},
	Expand: "children(select=name,id,size,lastModifiedDateTime,createdDateTime,folder)",
}

// GetItemWithOption fetches an item (typically a directory) applying opt's
// field selection, conditionally on prevCTag via If-None-Match. If the
// server answers 304, it returns the notModifiedSentinel value recognized by
// IsNotModified and a nil error; the caller should reuse its prior snapshot.
func (c *Client) GetItemWithOption(ctx context.Context, id string, opt ObjectOption, prevCTag string) (*DriveItem, error) {
	q := url.Values{}
	if len(opt.Select) > 0 {
		q.Set("$select", strings.Join(opt.Select, ","))
	}
	if opt.Expand != "" {
		q.Set("$expand", opt.Expand)
	}
	resource := IDPath(id)
	if len(q) > 0 {
		resource += "?" + q.Encode()
	}

	var headers []Header
	if prevCTag != "" {
		headers = append(headers, Header{Key: "If-None-Match", Value: prevCTag})
	}

	body, err := c.Request(ctx, http.MethodGet, resource, nil, headers...)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return notModifiedSentinel, nil
	}

	item := &DriveItem{}
	if err := json.Unmarshal(body, item); err != nil {
		return nil, err
	}
	return item, nil
}

// GetItemChild fetches the named child of an item.
func (c *Client) GetItemChild(ctx context.Context, id string, name string) (*DriveItem, error) {
	return getItem(ctx, c, fmt.Sprintf("%s:/%s", IDPath(id), url.PathEscape(name)))
}

// GetItemPath fetches a DriveItem by path. Only used for special cases such
// as the root item.
func (c *Client) GetItemPath(ctx context.Context, path string) (*DriveItem, error) {
	return getItem(ctx, c, ResourcePath(path))
}

const rangedDownloadChunkSize = 10 * 1024 * 1024

// GetItemContentStream retrieves an item's content and writes it to output.
// output must be a fresh writer: callers are responsible for truncating any
// prior content.
func (c *Client) GetItemContentStream(ctx context.Context, id string, output io.Writer) (uint64, error) {
	item, err := c.GetItem(ctx, id)
	if err != nil {
		return 0, err
	}

	downloadURL := fmt.Sprintf("/me/drive/items/%s/content", id)
	if item.Size <= rangedDownloadChunkSize {
		content, err := c.Get(ctx, downloadURL)
		if err != nil {
			return 0, err
		}
		n, err := output.Write(content)
		return uint64(n), err
	}

	var n uint64
	for i := 0; i < int(item.Size/rangedDownloadChunkSize)+1; i++ {
		start := i * rangedDownloadChunkSize
		end := start + rangedDownloadChunkSize - 1
		logging.Info().Str("id", item.ID).Int("start", start).Int("end", end).
			Uint64("size", item.Size).Msg("downloading content range")
		content, err := c.Get(ctx, downloadURL, Header{Key: "Range", Value: fmt.Sprintf("bytes=%d-%d", start, end)})
		if err != nil {
			return n, err
		}
		written, err := output.Write(content)
		n += uint64(written)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// UploadSmall uploads the full content of a small file (well under the
// service's chunked-upload threshold) in a single PUT, returning the
// server's confirmed DriveItem (including its new cTag).
func (c *Client) UploadSmall(ctx context.Context, id string, content []byte) (*DriveItem, error) {
	resp, err := c.Put(ctx, fmt.Sprintf("/me/drive/items/%s/content", id), bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	item := &DriveItem{}
	if err := json.Unmarshal(resp, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Remove deletes an item by ID.
func (c *Client) Remove(ctx context.Context, id string) error {
	return c.Delete(ctx, "/me/drive/items/"+id)
}

// Mkdir creates a directory under parentID.
func (c *Client) Mkdir(ctx context.Context, name string, parentID string) (*DriveItem, error) {
	payload := DriveItem{Name: name, Folder: &Folder{}}
	raw, _ := json.Marshal(payload)
	resp, err := c.Post(ctx, fmt.Sprintf("/me/drive/items/%s/children", url.PathEscape(parentID)), bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	out := &DriveItem{}
	return out, json.Unmarshal(resp, out)
}

// Rename moves and/or renames an item; itemName/parentID are the new values.
func (c *Client) Rename(ctx context.Context, itemID string, itemName string, parentID string) error {
	patch := DriveItem{
		ConflictBehavior: "replace",
		Name:             itemName,
		Parent:           &DriveItemParent{ID: parentID},
	}
	raw, _ := json.Marshal(patch)
	_, err := c.Patch(ctx, "/me/drive/items/"+itemID, bytes.NewReader(raw))
	return err
}

type driveChildren struct {
	Children []*DriveItem `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

// GetItemChildren fetches all children of an item, following pagination.
func (c *Client) GetItemChildren(ctx context.Context, id string) ([]*DriveItem, error) {
	pollURL := fmt.Sprintf("/me/drive/items/%s/children", url.PathEscape(id))
	fetched := make([]*DriveItem, 0)
	for pollURL != "" {
		body, err := c.Get(ctx, pollURL)
		if err != nil {
			return fetched, err
		}
		var page driveChildren
		if err := json.Unmarshal(body, &page); err != nil {
			return fetched, err
		}
		fetched = append(fetched, page.Children...)
		pollURL = strings.TrimPrefix(page.NextLink, GraphURL)
	}
	return fetched, nil
}
