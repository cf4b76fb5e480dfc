// client/transport.go
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Transport moves upload bytes to the object store. It is an interface so
// tests can run the full session without a real store.
type Transport interface {
	// Upload PUTs body to the signed URL. The progress callback receives
	// the cumulative byte count after each chunk; it may be nil.
	Upload(ctx context.Context, signedURL, contentType string, body io.Reader, size int64, progress func(written int64)) error
}

// HTTPTransport uploads through plain HTTP PUT requests against signed
// URLs.
type HTTPTransport struct {
	hc *http.Client
}

// NewHTTPTransport creates a transport for direct-to-storage uploads. Large
// transfers can run for a long time, so the client has no overall timeout;
// cancellation comes from the request context.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{hc: &http.Client{Timeout: 0}}
}

// progressReader reports cumulative bytes read to a callback.
type progressReader struct {
	r        io.Reader
	written  int64
	progress func(written int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.written += int64(n)
		if p.progress != nil {
			p.progress(p.written)
		}
	}
	return n, err
}

// Upload implements Transport. The content type must match the one the URL
// was signed for or the store rejects the request.
func (t *HTTPTransport) Upload(ctx context.Context, signedURL, contentType string, body io.Reader, size int64, progress func(written int64)) error {
	reader := &progressReader{r: body, progress: progress}

	req, err := http.NewRequestWithContext(ctx, "PUT", signedURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = size

	resp, err := t.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload rejected by object store: %s", resp.Status)
	}
	return nil
}
