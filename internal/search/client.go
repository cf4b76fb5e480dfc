// internal/search/client.go
// Package search provides a client for the upstream search service. The
// gateway proxies catalog search queries to it verbatim.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// ErrUnavailable is returned when the search service cannot be reached or
// responds with a server error.
var ErrUnavailable = errors.New("search service unavailable")

// Client for the upstream search service.
type Client struct {
	base string       // Base URL of the search service
	hc   *http.Client // HTTP client with custom configuration
}

// New creates a new search client with the specified base URL.
// It configures appropriate timeouts for delegated queries.
func New(baseURL string) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: 2 * time.Second}).DialContext,
	}

	return &Client{
		base: baseURL,
		hc:   &http.Client{Transport: transport, Timeout: 10 * time.Second},
	}
}

// Search forwards the query to the search service and returns the raw
// response body. The gateway does not interpret search results; it relays
// whatever the service answered.
func (c *Client) Search(ctx context.Context, query string) ([]byte, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return nil, err
	}
	u.Path = "/search"
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, _ := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return io.ReadAll(resp.Body)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, resp.Status)
	default:
		return nil, fmt.Errorf("search query failed: %s", resp.Status)
	}
}
