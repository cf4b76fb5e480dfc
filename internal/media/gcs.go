// internal/media/gcs.go
// Package media provides Google Cloud Storage signing for media assets.
// It generates time-limited V4 signed URLs for direct client reads and
// uploads, so media bytes never stream through the gateway.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
)

// GCSSigner signs object URLs with a service account key.
type GCSSigner struct {
	googleAccessID string
	privateKey     []byte
	now            func() time.Time
}

// Option defines optional signer configuration.
type Option func(*GCSSigner)

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *GCSSigner) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithServiceAccountKey injects the access ID and private key directly,
// bypassing default-credential discovery. Used by tests and by deployments
// that mount the key outside of ADC.
func WithServiceAccountKey(accessID string, privateKey []byte) Option {
	return func(s *GCSSigner) {
		if accessID != "" {
			s.googleAccessID = accessID
		}
		if len(privateKey) > 0 {
			s.privateKey = append([]byte(nil), privateKey...)
		}
	}
}

// NewGCSSigner creates a signer. Unless a key is injected, the default
// credentials must contain a service account JSON with a private key.
func NewGCSSigner(ctx context.Context, accessID string, opts ...Option) (*GCSSigner, error) {
	signer := &GCSSigner{
		googleAccessID: accessID,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(signer)
	}

	if len(signer.privateKey) == 0 {
		privKey, detectedAccessID, err := loadServiceAccountKey(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs signer: %w", err)
		}
		signer.privateKey = privKey
		if signer.googleAccessID == "" {
			signer.googleAccessID = detectedAccessID
		}
	}

	if signer.googleAccessID == "" {
		return nil, errors.New("gcs signer: google access id is required")
	}
	if len(signer.privateKey) == 0 {
		return nil, errors.New("gcs signer: private key is required")
	}

	return signer, nil
}

// SignedReadURL generates a read-scoped V4 signed URL for an object.
func (s *GCSSigner) SignedReadURL(ctx context.Context, bucket, object string, ttl time.Duration) (string, error) {
	return s.sign(bucket, object, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: s.now().Add(ttl),
	})
}

// SignedUploadURL generates a write-scoped V4 signed URL bound to the given
// content type. The client must PUT with the same Content-Type header.
func (s *GCSSigner) SignedUploadURL(ctx context.Context, bucket, object, contentType string, ttl time.Duration) (string, error) {
	return s.sign(bucket, object, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		Expires:     s.now().Add(ttl),
		ContentType: contentType,
	})
}

func (s *GCSSigner) sign(bucket, object string, opts *storage.SignedURLOptions) (string, error) {
	if bucket == "" {
		return "", errors.New("bucket is required")
	}
	if object == "" {
		return "", errors.New("object name is required")
	}

	opts.GoogleAccessID = s.googleAccessID
	opts.PrivateKey = s.privateKey

	url, err := storage.SignedURL(bucket, object, opts)
	if err != nil {
		return "", fmt.Errorf("signed url: %w", err)
	}
	return url, nil
}

type serviceAccountKey struct {
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
}

// loadServiceAccountKey pulls the signing key out of the application
// default credentials.
func loadServiceAccountKey(ctx context.Context) ([]byte, string, error) {
	creds, err := google.FindDefaultCredentials(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("find default credentials: %w", err)
	}
	if len(creds.JSON) == 0 {
		return nil, "", errors.New("service account JSON not found in default credentials")
	}

	var key serviceAccountKey
	if err := json.Unmarshal(creds.JSON, &key); err != nil {
		return nil, "", fmt.Errorf("parse service account json: %w", err)
	}
	if key.PrivateKey == "" {
		return nil, "", errors.New("service account private key is empty; use a service account JSON credential")
	}
	return []byte(key.PrivateKey), key.ClientEmail, nil
}
