// internal/chat/client.go
// Package chat provides a client for the conversational backend. The
// gateway's websocket endpoint forwards each user message through this
// client and relays the answer.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrUnavailable is returned when the chat backend cannot be reached or
// responds with a server error.
var ErrUnavailable = errors.New("chat service unavailable")

// Client for the conversational backend.
type Client struct {
	base string       // Base URL of the chat service
	hc   *http.Client // HTTP client with custom configuration
}

// New creates a new chat client with the specified base URL. Chat answers
// can take a while to generate, so the request timeout is generous.
func New(baseURL string) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: 2 * time.Second}).DialContext,
	}

	return &Client{
		base: baseURL,
		hc:   &http.Client{Transport: transport, Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// Send forwards one user message to the chat backend and returns its
// answer.
func (c *Client) Send(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(chatRequest{Message: message})
	if err != nil {
		return "", err
	}

	req, _ := http.NewRequestWithContext(ctx, "POST", c.base+"/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var out chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", err
		}
		return out.Response, nil
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: %s", ErrUnavailable, resp.Status)
	default:
		return "", fmt.Errorf("chat request failed: %s", resp.Status)
	}
}
