package graph

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/auriora/onemount-vfscache/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokenSource struct{ token string }

func (f fakeTokenSource) Token(ctx context.Context) (string, error) { return f.token, nil }

type fakeHTTPClient struct {
	do func(req *http.Request) (*http.Response, error)
}

func (f fakeHTTPClient) Do(req *http.Request) (*http.Response, error) { return f.do(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

// TestUT_GR_01_01_Request_MapsNotFoundStatus tests that a 404 response is
// surfaced as a NotFoundError through the errors package classification.
func TestUT_GR_01_01_Request_MapsNotFoundStatus(t *testing.T) {
	hc := fakeHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"error":{"code":"itemNotFound","message":"not found"}}`), nil
	}}
	c := NewClientWithHTTPClient(fakeTokenSource{"tok"}, hc)

	_, err := c.Get(context.Background(), "/me/drive/items/missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

// TestUT_GR_01_02_Request_SetsBearerToken tests that the token from the
// TokenSource is attached as an Authorization header on every request.
func TestUT_GR_01_02_Request_SetsBearerToken(t *testing.T) {
	var gotAuth string
	hc := fakeHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		gotAuth = req.Header.Get("Authorization")
		return jsonResponse(http.StatusOK, `{}`), nil
	}}
	c := NewClientWithHTTPClient(fakeTokenSource{"sekret"}, hc)

	_, err := c.Get(context.Background(), "/me/drive/root")
	require.NoError(t, err)
	assert.Equal(t, "bearer sekret", gotAuth)
}

// TestUT_GR_02_01_GetItemWithOption_SendsIfNoneMatch tests that a non-empty
// previous cTag is forwarded as an If-None-Match header.
func TestUT_GR_02_01_GetItemWithOption_SendsIfNoneMatch(t *testing.T) {
	var gotINM, gotSelect string
	hc := fakeHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		gotINM = req.Header.Get("If-None-Match")
		gotSelect = req.URL.Query().Get("$select")
		return jsonResponse(http.StatusOK, `{"id":"abc","cTag":"ctag2"}`), nil
	}}
	c := NewClientWithHTTPClient(fakeTokenSource{"tok"}, hc)

	item, err := c.GetItemWithOption(context.Background(), "abc", DefaultDirectoryOption, "ctag1")
	require.NoError(t, err)
	assert.Equal(t, "ctag1", gotINM)
	assert.Equal(t, "id,cTag", gotSelect)
	assert.Equal(t, "ctag2", item.CTag)
	assert.False(t, IsNotModified(item))
}

// TestUT_GR_02_02_GetItemWithOption_NotModifiedReturnsSentinel tests that a
// 304 response is surfaced as the notModifiedSentinel rather than an error.
func TestUT_GR_02_02_GetItemWithOption_NotModifiedReturnsSentinel(t *testing.T) {
	hc := fakeHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotModified, ""), nil
	}}
	c := NewClientWithHTTPClient(fakeTokenSource{"tok"}, hc)

	item, err := c.GetItemWithOption(context.Background(), "abc", DefaultDirectoryOption, "ctag1")
	require.NoError(t, err)
	assert.True(t, IsNotModified(item))
}

// TestUT_GR_03_01_UploadSmall_PutsContentAndParsesItem tests that UploadSmall
// issues a PUT with the raw bytes and returns the server's confirmed item.
func TestUT_GR_03_01_UploadSmall_PutsContentAndParsesItem(t *testing.T) {
	var gotBody []byte
	var gotMethod string
	hc := fakeHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		gotMethod = req.Method
		gotBody, _ = io.ReadAll(req.Body)
		return jsonResponse(http.StatusOK, `{"id":"abc","cTag":"ctag3","size":5}`), nil
	}}
	c := NewClientWithHTTPClient(fakeTokenSource{"tok"}, hc)

	item, err := c.UploadSmall(context.Background(), "abc", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "hello", string(gotBody))
	assert.Equal(t, "ctag3", item.CTag)
	assert.Equal(t, uint64(5), item.Size)
}
