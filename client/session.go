// client/session.go
package client

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nebula-foundry/media-gateway-go/internal/model"
)

// State is the phase of an upload session.
type State string

const (
	StateIdle       State = "idle"
	StatePreparing  State = "preparing"
	StateUploading  State = "uploading"
	StatePublishing State = "publishing"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// DefaultMaxFileSize caps uploads at 500 MB.
const DefaultMaxFileSize = 500 * 1024 * 1024

// DefaultAcceptedTypes lists the content types the session accepts. The
// allowlist is exhaustive; audio formats must be configured explicitly via
// WithAcceptedTypes.
var DefaultAcceptedTypes = []string{
	"video/mp4",
	"video/quicktime",
	"video/x-msvideo",
	"video/webm",
}

// Snapshot is one observable point of a session's lifecycle.
type Snapshot struct {
	State   State
	Percent int // monotone overall progress, 0..100
	AssetID string
	Err     error
	Status  model.AssetStatusResponse // last polled status, zero until processing
}

// Session drives one upload through the gateway: request a signed URL,
// transfer the bytes, publish the ingestion event, then poll processing
// status until every stage finishes. Starting an upload on a session that
// is not idle resets it first, cancelling any in-flight transfer and
// joining the previous poller.
type Session struct {
	api       *API
	transport Transport

	pollInterval  time.Duration
	maxFileSize   int64
	acceptedTypes []string
	onChange      func(Snapshot)

	mu      sync.Mutex
	state   State
	percent int
	assetID string
	err     error
	status  model.AssetStatusResponse
	cancel  context.CancelFunc
	poller  *Poller
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithPollInterval overrides the status polling interval.
func WithPollInterval(d time.Duration) SessionOption {
	return func(s *Session) { s.pollInterval = d }
}

// WithMaxFileSize overrides the upload size cap.
func WithMaxFileSize(n int64) SessionOption {
	return func(s *Session) { s.maxFileSize = n }
}

// WithAcceptedTypes overrides the accepted content types.
func WithAcceptedTypes(types []string) SessionOption {
	return func(s *Session) { s.acceptedTypes = types }
}

// WithOnChange registers a callback invoked after every state or progress
// change. It runs on the goroutine that caused the change.
func WithOnChange(fn func(Snapshot)) SessionOption {
	return func(s *Session) { s.onChange = fn }
}

// NewSession creates an idle upload session.
func NewSession(api *API, transport Transport, opts ...SessionOption) *Session {
	s := &Session{
		api:           api,
		transport:     transport,
		pollInterval:  DefaultPollInterval,
		maxFileSize:   DefaultMaxFileSize,
		acceptedTypes: DefaultAcceptedTypes,
		state:         StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:   s.state,
		Percent: s.percent,
		AssetID: s.assetID,
		Err:     s.err,
		Status:  s.status,
	}
}

// Upload runs the lifecycle for one file through the publish step and
// starts status polling. It returns once the ingestion event is accepted;
// processing continues in the background. Use Wait to block until
// processing finishes.
func (s *Session) Upload(ctx context.Context, fileName, contentType string, size int64, body io.Reader) error {
	// A rejected file is reported to the caller and nothing else happens:
	// no state transition, and an active upload or poll keeps running.
	if err := s.validate(contentType, size); err != nil {
		return err
	}

	s.Reset()

	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.setState(StatePreparing)

	signed, err := s.api.CreateSignedUploadURL(ctx, fileName, contentType, size)
	if err != nil {
		return s.fail(fmt.Errorf("signed URL request failed: %w", err))
	}

	s.mu.Lock()
	s.assetID = signed.AssetID
	s.mu.Unlock()
	s.setState(StateUploading)

	err = s.transport.Upload(ctx, signed.SignedURL, contentType, body, size, func(written int64) {
		if size > 0 {
			s.setPercent(int(written * 80 / size))
		}
	})
	if err != nil {
		return s.fail(fmt.Errorf("transfer failed: %w", err))
	}
	s.setPercent(80)
	s.setState(StatePublishing)

	if _, err := s.api.PublishIngestion(ctx, model.PublishRequest{
		AssetID:     signed.AssetID,
		FileName:    fileName,
		FilePath:    signed.FilePath,
		ContentType: contentType,
	}); err != nil {
		return s.fail(fmt.Errorf("publish failed: %w", err))
	}
	s.setPercent(85)
	s.setState(StateProcessing)

	poller := NewPoller(s.api, signed.AssetID, s.pollInterval, s.onPollStatus)
	s.mu.Lock()
	s.poller = poller
	s.mu.Unlock()
	poller.Start(ctx)

	return nil
}

// Wait blocks until processing completes or the session is reset.
func (s *Session) Wait() {
	s.mu.Lock()
	poller := s.poller
	s.mu.Unlock()
	if poller != nil {
		poller.Wait()
	}
}

// Reset cancels any in-flight work, joins the poller, and returns the
// session to idle. Safe to call at any time.
func (s *Session) Reset() {
	s.mu.Lock()
	cancel := s.cancel
	poller := s.poller
	s.cancel, s.poller = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if poller != nil {
		poller.Stop()
	}

	s.mu.Lock()
	s.state = StateIdle
	s.percent = 0
	s.assetID = ""
	s.err = nil
	s.status = model.AssetStatusResponse{}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Session) validate(contentType string, size int64) error {
	if size > s.maxFileSize {
		return fmt.Errorf("file size %d exceeds maximum of %d bytes", size, s.maxFileSize)
	}
	for _, accepted := range s.acceptedTypes {
		if accepted == contentType {
			return nil
		}
	}
	return fmt.Errorf("unsupported content type %q", contentType)
}

// onPollStatus maps polled stage progress onto the tail of the percent
// range and flips the session to completed when every stage is terminal.
func (s *Session) onPollStatus(st model.AssetStatusResponse) {
	terminal := 0
	for _, stage := range []model.StageStatus{st.Summary.Status, st.Transcription.Status, st.Previews.Status} {
		if stage.Terminal() {
			terminal++
		}
	}

	s.mu.Lock()
	s.status = st
	s.mu.Unlock()

	s.setPercent(85 + terminal*5)
	if st.AllTerminal() {
		s.setPercent(100)
		s.setState(StateCompleted)
	} else {
		s.notify(s.Snapshot())
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// setPercent raises the progress value. Progress never moves backwards
// even when byte counts or stage tallies would suggest it.
func (s *Session) setPercent(p int) {
	if p > 100 {
		p = 100
	}
	s.mu.Lock()
	if p <= s.percent {
		s.mu.Unlock()
		return
	}
	s.percent = p
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	s.state = StateError
	s.err = err
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return err
}

func (s *Session) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
