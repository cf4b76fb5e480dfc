// internal/resolver/resolver.go
// Package resolver normalizes media records into directly playable entries.
// It decides whether a record is externally hosted (YouTube) or stored as an
// object in the media bucket, and produces a time-limited signed URL for the
// latter. Resolution is recomputed on every catalog read and never persisted.
package resolver

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/nebula-foundry/media-gateway-go/internal/model"
)

const (
	// storageScheme is the object-storage locator prefix for stored records.
	storageScheme = "gs://"
	// signedStoragePrefix is how every signed storage URL begins. A public_url
	// with this prefix on an external record is a stale artifact of a past
	// mis-classification and must be replaced.
	signedStoragePrefix = "https://storage.googleapis.com/"
)

// externalHosts are the substrings that mark a file path as externally hosted.
// Detection runs on the URL-decoded path: external links occasionally end up
// percent-encoded inside a storage locator, and the raw string would neither
// classify nor yield a video id.
var externalHosts = []string{"youtube.com", "youtu.be"}

// videoIDPattern extracts the watch id from any of the usual YouTube URL
// shapes. Submatch 2 is the candidate id; it is only accepted at exactly
// 11 characters.
var videoIDPattern = regexp.MustCompile(`^.*(youtu\.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)

// ObjectSigner produces read-scoped signed URLs for objects in the media
// bucket. Signing is the resolver's only side-effecting collaborator.
type ObjectSigner interface {
	SignedReadURL(ctx context.Context, bucket, object string, ttl time.Duration) (string, error)
}

// Resolver rewrites media records so that PublicURL is directly fetchable.
type Resolver struct {
	signer ObjectSigner
	ttl    time.Duration
	log    *slog.Logger
}

// New creates a Resolver. ttl bounds the validity of generated signed URLs.
func New(signer ObjectSigner, ttl time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{signer: signer, ttl: ttl, log: logger}
}

// Resolve returns a copy of rec with Source and PublicURL normalized.
//
// External records get their cleaned external URL and Source forced to
// youtube so the frontend picks the right player. Stored records with a
// gs:// locator and no valid signed URL get a fresh read-scoped signed URL.
// A signing failure is soft: it is logged and the record is returned with
// PublicURL untouched rather than omitted from the catalog.
func (r *Resolver) Resolve(ctx context.Context, rec model.MediaRecord) model.MediaRecord {
	if isExternal(rec) {
		cleanURL := strings.Replace(decodePath(rec.FilePath), storageScheme, "", 1)
		// An external link that went through the upload path once can come
		// back wrapped in a signed-storage URL; unwrap it so the public URL
		// is never a storage URL for an external record.
		cleanURL = strings.TrimPrefix(cleanURL, signedStoragePrefix)
		// A missing public_url, or one that points at signed storage, is wrong
		// for an external record; serve the clean link instead.
		if rec.PublicURL == "" || strings.HasPrefix(rec.PublicURL, signedStoragePrefix) {
			rec.PublicURL = cleanURL
		}
		rec.Source = model.SourceYouTube
		return rec
	}

	if (rec.PublicURL == "" || !strings.HasPrefix(rec.PublicURL, signedStoragePrefix)) &&
		strings.HasPrefix(rec.FilePath, storageScheme) {
		bucket, object, ok := splitLocator(rec.FilePath)
		if !ok {
			return rec
		}
		signed, err := r.signer.SignedReadURL(ctx, bucket, object, r.ttl)
		if err != nil {
			// Soft failure: the record is still served, just without a
			// working playback URL.
			r.log.Error("generate signed url failed",
				"record", rec.ID, "file_path", rec.FilePath, "error", err)
			return rec
		}
		rec.PublicURL = signed
	}

	return rec
}

// isExternal reports whether the record is externally hosted, either by an
// explicit source marker or by a known external host inside the decoded
// file path.
func isExternal(rec model.MediaRecord) bool {
	if rec.Source == model.SourceYouTube {
		return true
	}
	decoded := decodePath(rec.FilePath)
	for _, host := range externalHosts {
		if strings.Contains(decoded, host) {
			return true
		}
	}
	return false
}

// ExternalVideoID extracts the 11-character YouTube video id from rawURL.
// The URL is percent-decoded first; ids hidden behind encoding (an external
// link stored as a storage key, then signed) are otherwise unextractable.
// Returns the empty string when no valid id is present.
func ExternalVideoID(rawURL string) string {
	decoded, err := url.PathUnescape(rawURL)
	if err != nil {
		return ""
	}
	m := videoIDPattern.FindStringSubmatch(decoded)
	if m == nil || len(m[2]) != 11 {
		return ""
	}
	return m[2]
}

// decodePath percent-decodes a file path, falling back to the raw string
// when the encoding is malformed.
func decodePath(p string) string {
	decoded, err := url.PathUnescape(p)
	if err != nil {
		return p
	}
	return decoded
}

// splitLocator parses a gs://bucket/key locator into bucket and key.
func splitLocator(locator string) (bucket, object string, ok bool) {
	trimmed := strings.TrimPrefix(locator, storageScheme)
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
