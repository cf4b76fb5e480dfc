// Package resolver provides unit tests for playback-URL resolution.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nebula-foundry/media-gateway-go/internal/model"
)

// fakeSigner implements ObjectSigner for testing. It records calls and can
// be told to fail.
type fakeSigner struct {
	calls  int
	bucket string
	object string
	fail   bool
}

func (f *fakeSigner) SignedReadURL(ctx context.Context, bucket, object string, ttl time.Duration) (string, error) {
	f.calls++
	f.bucket = bucket
	f.object = object
	if f.fail {
		return "", errors.New("signing backend unavailable")
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s?X-Goog-Algorithm=GOOG4-RSA-SHA256", bucket, object), nil
}

func newTestResolver(s ObjectSigner) *Resolver {
	return New(s, 15*time.Minute, nil)
}

// TestResolveStoredRecord tests signing of a plain gs:// locator with no
// source marker and no public URL.
func TestResolveStoredRecord(t *testing.T) {
	signer := &fakeSigner{}
	r := newTestResolver(signer)

	rec := model.MediaRecord{ID: "a1", FilePath: "gs://bucket-a/uploads/clip.mp4"}
	out := r.Resolve(context.Background(), rec)

	if signer.calls != 1 {
		t.Fatalf("signer calls = %d, want 1", signer.calls)
	}
	if signer.bucket != "bucket-a" || signer.object != "uploads/clip.mp4" {
		t.Errorf("signer called with %s/%s, want bucket-a/uploads/clip.mp4", signer.bucket, signer.object)
	}
	if !strings.HasPrefix(out.PublicURL, "https://storage.googleapis.com/bucket-a/uploads/clip.mp4") {
		t.Errorf("PublicURL = %q, want signed storage URL", out.PublicURL)
	}
	if out.Source != "" {
		t.Errorf("Source = %q, want untouched empty source", out.Source)
	}
}

// TestResolveSigningFailureIsSoft tests that a signing error leaves the
// record intact instead of dropping it.
func TestResolveSigningFailureIsSoft(t *testing.T) {
	signer := &fakeSigner{fail: true}
	r := newTestResolver(signer)

	rec := model.MediaRecord{ID: "a2", FilePath: "gs://bucket-a/uploads/clip.mp4", PublicURL: "stale-value"}
	out := r.Resolve(context.Background(), rec)

	if signer.calls != 1 {
		t.Fatalf("signer calls = %d, want 1", signer.calls)
	}
	if out.PublicURL != "stale-value" {
		t.Errorf("PublicURL = %q, want pre-call value unchanged", out.PublicURL)
	}
}

// TestResolveExistingSignedURLSkipsSigner tests that a record already
// carrying a signed storage URL is served as-is.
func TestResolveExistingSignedURLSkipsSigner(t *testing.T) {
	signer := &fakeSigner{}
	r := newTestResolver(signer)

	rec := model.MediaRecord{
		ID:        "a3",
		FilePath:  "gs://bucket-a/uploads/clip.mp4",
		PublicURL: "https://storage.googleapis.com/bucket-a/uploads/clip.mp4?X-Goog-Algorithm=GOOG4-RSA-SHA256",
	}
	out := r.Resolve(context.Background(), rec)

	if signer.calls != 0 {
		t.Errorf("signer calls = %d, want 0", signer.calls)
	}
	if out.PublicURL != rec.PublicURL {
		t.Errorf("PublicURL = %q, want unchanged", out.PublicURL)
	}
}

// TestResolveExternalByMarker tests explicit youtube source records.
func TestResolveExternalByMarker(t *testing.T) {
	signer := &fakeSigner{}
	r := newTestResolver(signer)

	rec := model.MediaRecord{
		ID:       "y1",
		Source:   model.SourceYouTube,
		FilePath: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	}
	out := r.Resolve(context.Background(), rec)

	if signer.calls != 0 {
		t.Errorf("signer calls = %d, want 0 for external record", signer.calls)
	}
	if out.Source != model.SourceYouTube {
		t.Errorf("Source = %q, want youtube", out.Source)
	}
	if out.PublicURL != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("PublicURL = %q, want clean external URL", out.PublicURL)
	}
}

// TestResolveExternalByPath tests host detection in file_path without a
// source marker, including cleanup of an erroneous gs:// prefix.
func TestResolveExternalByPath(t *testing.T) {
	signer := &fakeSigner{}
	r := newTestResolver(signer)

	rec := model.MediaRecord{
		ID:       "y2",
		FilePath: "gs://https://youtu.be/dQw4w9WgXcQ",
	}
	out := r.Resolve(context.Background(), rec)

	if out.Source != model.SourceYouTube {
		t.Errorf("Source = %q, want youtube forced for downstream player", out.Source)
	}
	if out.PublicURL != "https://youtu.be/dQw4w9WgXcQ" {
		t.Errorf("PublicURL = %q, want gs:// prefix stripped", out.PublicURL)
	}
	if signer.calls != 0 {
		t.Errorf("signer calls = %d, want 0", signer.calls)
	}
	if strings.HasPrefix(out.PublicURL, "https://storage.googleapis.com/") {
		t.Errorf("PublicURL %q must never be a signed-storage URL", out.PublicURL)
	}
}

// TestResolveExternalReplacesStaleSignedURL tests that a previously signed
// storage URL on an external record is replaced with the clean link.
func TestResolveExternalReplacesStaleSignedURL(t *testing.T) {
	signer := &fakeSigner{}
	r := newTestResolver(signer)

	rec := model.MediaRecord{
		ID:        "y3",
		FilePath:  "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		PublicURL: "https://storage.googleapis.com/bucket-a/bogus?X-Goog-Algorithm=GOOG4-RSA-SHA256",
	}
	out := r.Resolve(context.Background(), rec)

	if out.PublicURL != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("PublicURL = %q, want stale signed URL replaced", out.PublicURL)
	}
}

// TestResolveExternalIdempotent tests that resolving an already-resolved
// external record yields the same public URL.
func TestResolveExternalIdempotent(t *testing.T) {
	signer := &fakeSigner{}
	r := newTestResolver(signer)

	rec := model.MediaRecord{
		ID:       "y4",
		FilePath: "gs://https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	}
	once := r.Resolve(context.Background(), rec)
	twice := r.Resolve(context.Background(), once)

	if once.PublicURL != twice.PublicURL {
		t.Errorf("PublicURL changed on second resolve: %q -> %q", once.PublicURL, twice.PublicURL)
	}
	if once.Source != twice.Source {
		t.Errorf("Source changed on second resolve: %q -> %q", once.Source, twice.Source)
	}
}

// TestResolveEncodedExternalLinkInsideSignedURL reproduces the trap case: a
// YouTube link was stored as a storage key and then signed, leaving the
// watch query percent-encoded inside a storage URL. Detection and id
// extraction must operate on the decoded string.
func TestResolveEncodedExternalLinkInsideSignedURL(t *testing.T) {
	signer := &fakeSigner{}
	r := newTestResolver(signer)

	rec := model.MediaRecord{
		ID:       "y5",
		FilePath: "https://storage.googleapis.com/https://www.youtube.com/watch%3Fv%3Dgg7WjuFs8F4?X-Goog-Algorithm=GOOG4-RSA-SHA256",
	}
	out := r.Resolve(context.Background(), rec)

	if out.Source != model.SourceYouTube {
		t.Fatalf("Source = %q, want youtube (detection must decode first)", out.Source)
	}
	if signer.calls != 0 {
		t.Errorf("signer calls = %d, want 0", signer.calls)
	}
	if strings.HasPrefix(out.PublicURL, "https://storage.googleapis.com/") {
		t.Errorf("PublicURL %q must never be a signed-storage URL", out.PublicURL)
	}
	if id := ExternalVideoID(out.PublicURL); id != "gg7WjuFs8F4" {
		t.Errorf("ExternalVideoID = %q, want gg7WjuFs8F4", id)
	}
}

// TestResolvePassThrough tests that records with neither marker nor storage
// locator are untouched.
func TestResolvePassThrough(t *testing.T) {
	signer := &fakeSigner{}
	r := newTestResolver(signer)

	rec := model.MediaRecord{ID: "p1", FilePath: "/legacy/local/clip.mp4", PublicURL: "http://cdn.example/clip.mp4"}
	out := r.Resolve(context.Background(), rec)

	if signer.calls != 0 {
		t.Errorf("signer calls = %d, want 0", signer.calls)
	}
	if out != rec {
		t.Errorf("record changed: got %+v, want %+v", out, rec)
	}
}

// TestExternalVideoID tests id extraction across URL shapes.
func TestExternalVideoID(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
	}{
		{"watch", "https://www.youtube.com/watch?v=gg7WjuFs8F4", "gg7WjuFs8F4"},
		{"short", "https://youtu.be/gg7WjuFs8F4", "gg7WjuFs8F4"},
		{"embed", "https://www.youtube.com/embed/gg7WjuFs8F4", "gg7WjuFs8F4"},
		{"encoded watch query", "https://storage.googleapis.com/https://www.youtube.com/watch%3Fv%3Dgg7WjuFs8F4?X-Goog-Algorithm=GOOG4-RSA-SHA256", "gg7WjuFs8F4"},
		{"wrong length", "https://www.youtube.com/watch?v=short", ""},
		{"no id", "https://example.com/clip.mp4", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExternalVideoID(tc.url); got != tc.want {
				t.Errorf("ExternalVideoID(%q) = %q, want %q", tc.url, got, tc.want)
			}
		})
	}
}
