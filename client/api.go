// client/api.go
// Package client implements the Go client for the media gateway: a thin
// typed API wrapper plus the upload session state machine and status poller
// that drive the full upload lifecycle.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nebula-foundry/media-gateway-go/internal/model"
)

// API is a typed client for the gateway's HTTP endpoints.
type API struct {
	baseURL string
	apiKey  string // sent as X-API-Key on every request; empty means no auth
	hc      *http.Client
}

// NewAPI creates a gateway API client. The apiKey may be empty when the
// gateway runs without auth.
func NewAPI(baseURL, apiKey string) *API {
	return &API{
		baseURL: baseURL,
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a structured error answer from the gateway.
type APIError struct {
	Code       string
	Message    string
	HTTPStatus int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.HTTPStatus, e.Message)
}

// Movies fetches the catalog with playback-ready URLs.
func (a *API) Movies(ctx context.Context) ([]model.MediaRecord, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", a.baseURL+"/api/movies", nil)
	if err != nil {
		return nil, err
	}
	var records []model.MediaRecord
	if err := a.do(req, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// CreateSignedUploadURL asks the gateway for a write-scoped URL for one
// upload. size declares the byte count of the coming transfer so the
// gateway can enforce its upload cap.
func (a *API) CreateSignedUploadURL(ctx context.Context, fileName, contentType string, size int64) (model.SignedUploadResponse, error) {
	var resp model.SignedUploadResponse
	err := a.post(ctx, "/api/upload/signed-url", model.SignedUploadRequest{
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
	}, &resp)
	return resp, err
}

// PublishIngestion notifies the gateway that the object transfer finished
// and processing should begin.
func (a *API) PublishIngestion(ctx context.Context, req model.PublishRequest) (model.PublishResponse, error) {
	var resp model.PublishResponse
	err := a.post(ctx, "/api/upload/publish", req, &resp)
	return resp, err
}

// AssetStatus fetches the processing status projection for one asset.
func (a *API) AssetStatus(ctx context.Context, assetID string) (model.AssetStatusResponse, error) {
	var resp model.AssetStatusResponse

	req, err := http.NewRequestWithContext(ctx, "GET", a.baseURL+"/api/upload/status/"+assetID, nil)
	if err != nil {
		return resp, err
	}
	if err := a.do(req, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

func (a *API) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req, out)
}

func (a *API) do(req *http.Request, out any) error {
	if a.apiKey != "" {
		req.Header.Set("X-API-Key", a.apiKey)
	}

	resp, err := a.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Error.Code == "" {
			return &APIError{Code: "MEDIA_INTERNAL", Message: resp.Status, HTTPStatus: resp.StatusCode}
		}
		return &APIError{Code: envelope.Error.Code, Message: envelope.Error.Message, HTTPStatus: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	// An empty 200 body is treated as the zero value, not a failure.
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return err
	}
	return nil
}
