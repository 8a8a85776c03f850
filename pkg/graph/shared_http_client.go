package graph

import (
	"net/http"
	"sync"
	"time"

	"github.com/auriora/onemount-vfscache/pkg/logging"
)

var (
	sharedOnce   sync.Once
	sharedClient HTTPClient
)

// getSharedHTTPClient returns a process-wide HTTP client with connection
// pooling tuned for many small, short-lived Graph requests.
func getSharedHTTPClient() HTTPClient {
	sharedOnce.Do(func() {
		transport := &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		}
		sharedClient = &http.Client{
			Transport: transport,
			Timeout:   defaultRequestTimeout,
		}
		logging.Info().Msg("initialized shared graph HTTP client")
	})
	return sharedClient
}
