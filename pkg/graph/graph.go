// Package graph provides a narrow Microsoft Graph API adapter: enough to
// fetch DriveItem metadata and content and to push small-file uploads. It
// deliberately knows nothing about OAuth or token refresh; callers supply a
// TokenSource and are responsible for keeping it valid.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/auriora/onemount-vfscache/pkg/errors"
	"github.com/auriora/onemount-vfscache/pkg/logging"
	"github.com/auriora/onemount-vfscache/pkg/retry"
)

// GraphURL is the API endpoint of Microsoft Graph.
const GraphURL = "https://graph.microsoft.com/v1.0"

// defaultRequestTimeout bounds a single round trip.
const defaultRequestTimeout = 60 * time.Second

// HTTPClient is the minimal surface Client needs from an *http.Client; it is
// also the shape a download producer uses to issue ranged GETs directly.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource supplies the current bearer token for an authenticated
// request. Refreshing an expired token is the TokenSource's problem, not
// Client's.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Header is an additional header that can be passed to Client.Request.
type Header struct {
	Key, Value string
}

// graphError is an internal struct used when decoding Graph's error bodies.
type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client is a thin, authenticated Microsoft Graph HTTP adapter.
type Client struct {
	http   HTTPClient
	tokens TokenSource
}

// NewClient builds a Client backed by a connection-pooled shared transport.
func NewClient(tokens TokenSource) *Client {
	return &Client{http: getSharedHTTPClient(), tokens: tokens}
}

// NewClientWithHTTPClient builds a Client around a caller-supplied
// HTTPClient, mainly so tests can substitute a fake transport.
func NewClientWithHTTPClient(tokens TokenSource, hc HTTPClient) *Client {
	return &Client{http: hc, tokens: tokens}
}

var defaultRetryConfig = retry.Config{
	MaxRetries:   3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	Multiplier:   2.0,
	Jitter:       0.2,
	RetryableErrors: []retry.RetryableError{
		retry.IsRetryableNetworkError,
		retry.IsRetryableServerError,
		retry.IsRetryableRateLimitError,
	},
}

// Request performs an authenticated request to Microsoft Graph, retrying
// transient network and server errors with backoff.
func (c *Client) Request(ctx context.Context, method, resource string, body io.Reader, headers ...Header) ([]byte, error) {
	retryableFunc := func() ([]byte, error) {
		return c.doOnce(ctx, method, resource, body, headers...)
	}

	return retry.DoWithResult(ctx, retryableFunc, defaultRetryConfig)
}

func (c *Client) doOnce(ctx context.Context, method, resource string, body io.Reader, headers ...Header) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, errors.NewAuthError("failed to obtain access token", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, GraphURL+resource, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Authorization", "bearer "+token)
	switch method {
	case http.MethodPatch:
		req.Header.Set("If-Match", "*")
		req.Header.Set("Content-Type", "application/json")
	case http.MethodPost:
		req.Header.Set("Content-Type", "application/json")
	case http.MethodPut:
		req.Header.Set("Content-Type", "text/plain")
	}
	for _, h := range headers {
		req.Header.Set(h.Key, h.Value)
	}

	logging.Debug().Str("resource", resource).Str("method", method).Msg("sending graph request")
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		netErr := errors.NewNetworkError("graph request failed", err)
		logging.Warn().Str("resource", resource).Err(err).Msg("graph request failed")
		return nil, netErr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "error reading graph response body")
	}

	if resp.StatusCode == http.StatusNotModified {
		return respBody, nil
	}

	if resp.StatusCode >= 400 {
		var ge graphError
		_ = json.Unmarshal(respBody, &ge)
		msg := fmt.Sprintf("%s: %s", ge.Error.Code, ge.Error.Message)
		logging.Warn().Str("resource", resource).Int("status_code", resp.StatusCode).
			Str("error_code", ge.Error.Code).Msg("graph request returned error status")

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, errors.NewNotFoundError(msg, nil)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, errors.NewAuthError(msg, nil)
		case resp.StatusCode == http.StatusBadRequest:
			return nil, errors.NewValidationError(msg, nil)
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, errors.NewResourceBusyError(msg, nil)
		case resp.StatusCode >= 500:
			return nil, errors.NewOperationError(msg, nil)
		default:
			return nil, errors.New(fmt.Sprintf("HTTP %d - %s", resp.StatusCode, msg))
		}
	}

	return respBody, nil
}

// Get is a convenience wrapper around Request.
func (c *Client) Get(ctx context.Context, resource string, headers ...Header) ([]byte, error) {
	return c.Request(ctx, http.MethodGet, resource, nil, headers...)
}

// Patch is a convenience wrapper around Request.
func (c *Client) Patch(ctx context.Context, resource string, body io.Reader, headers ...Header) ([]byte, error) {
	return c.Request(ctx, http.MethodPatch, resource, body, headers...)
}

// Post is a convenience wrapper around Request.
func (c *Client) Post(ctx context.Context, resource string, body io.Reader, headers ...Header) ([]byte, error) {
	return c.Request(ctx, http.MethodPost, resource, body, headers...)
}

// Put is a convenience wrapper around Request.
func (c *Client) Put(ctx context.Context, resource string, body io.Reader, headers ...Header) ([]byte, error) {
	return c.Request(ctx, http.MethodPut, resource, body, headers...)
}

// Delete performs an HTTP delete.
func (c *Client) Delete(ctx context.Context, resource string, headers ...Header) error {
	_, err := c.Request(ctx, http.MethodDelete, resource, nil, headers...)
	return err
}

// IDPath computes the resource path for an item by ID.
func IDPath(id string) string {
	if id == "root" {
		return "/me/drive/root"
	}
	return "/me/drive/items/" + url.PathEscape(id)
}

// ResourcePath translates an item's path to the proper path used by Graph.
func ResourcePath(path string) string {
	if path == "/" {
		return "/me/drive/root"
	}
	return "/me/drive/root:" + url.PathEscape(path)
}
