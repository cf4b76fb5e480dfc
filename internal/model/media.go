// internal/model/media.go
// Package model defines the data structures used throughout the media gateway.
// These structures mirror the documents produced by the ingestion pipeline and
// the request/response bodies of the HTTP API.
package model

import (
	"encoding/json"
)

// Source identifies where a media record's bytes live.
type Source string

const (
	// SourceGCS marks a record stored as an object in Google Cloud Storage.
	SourceGCS Source = "GCS"
	// SourceYouTube marks a record that is an external YouTube link.
	SourceYouTube Source = "youtube"
)

// StageStatus is the processing state of one pipeline stage.
type StageStatus string

const (
	StagePending       StageStatus = "pending"
	StageProcessing    StageStatus = "processing"
	StageCompleted     StageStatus = "completed"
	StageFailed        StageStatus = "failed"
	StageNotApplicable StageStatus = "not_applicable"
)

// Terminal reports whether a stage status admits no further automatic
// transition.
func (s StageStatus) Terminal() bool {
	switch s {
	case StageCompleted, StageFailed, StageNotApplicable:
		return true
	}
	return false
}

// StageDocument is one unit of asynchronous post-upload processing output
// attached to a media record. The pipeline writes these fields incrementally,
// so every field is optional. Data carries the stage payload verbatim; the
// gateway never interprets it.
type StageDocument struct {
	Status StageStatus     `json:"status,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Clip is one preview clip produced by the previews stage.
type Clip struct {
	URI      string  `json:"uri,omitempty"`
	Title    string  `json:"title,omitempty"`
	StartSec float64 `json:"start_sec,omitempty"`
	EndSec   float64 `json:"end_sec,omitempty"`
}

// PreviewsDocument is the previews stage output. Unlike the other stages,
// an empty clips list does not count as a produced payload.
type PreviewsDocument struct {
	Status StageStatus `json:"status,omitempty"`
	Clips  []Clip      `json:"clips,omitempty"`
}

// MediaRecord is one entry in the catalog collection. The same document backs
// both catalog reads and upload status reads: the ingestion pipeline creates
// it and fills in the stage documents as processing advances. Fields follow
// the pipeline's snake_case document layout.
type MediaRecord struct {
	ID            string            `json:"id"`
	FileName      string            `json:"file_name,omitempty"`
	Title         string            `json:"title,omitempty"`
	Genre         string            `json:"genre,omitempty"`
	Source        Source            `json:"source,omitempty"`
	FilePath      string            `json:"file_path,omitempty"`
	PublicURL     string            `json:"public_url,omitempty"`
	Summary       *StageDocument    `json:"summary,omitempty"`
	Transcription *StageDocument    `json:"transcription,omitempty"`
	Previews      *PreviewsDocument `json:"previews,omitempty"`
}

// SignedUploadRequest is the body of POST /api/upload/signed-url. Size is
// the declared byte count of the upcoming transfer; the gateway rejects
// declarations over the configured cap.
type SignedUploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size,omitempty"`
}

// SignedUploadResponse carries everything the client needs to transfer bytes
// and later publish the ingestion event.
type SignedUploadResponse struct {
	SignedURL string `json:"signedUrl"` // write-scoped, time-limited URL
	AssetID   string `json:"assetId"`
	FilePath  string `json:"filePath"` // gs:// locator of the target object
}

// PublishRequest is the body of POST /api/upload/publish.
type PublishRequest struct {
	AssetID     string `json:"assetId"`
	FileName    string `json:"fileName"`
	FilePath    string `json:"filePath"`
	ContentType string `json:"contentType"`
}

// PublishResponse acknowledges an accepted ingestion event.
type PublishResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
}

// IngestionMessage is the payload published to the ingestion queue. Field
// names are fixed by the pipeline contract.
type IngestionMessage struct {
	AssetID      string `json:"asset_id"`
	FileLocation string `json:"file_location"`
	ContentType  string `json:"content_type"`
	FileCategory string `json:"file_category"` // "audio" or "video"
	FileName     string `json:"file_name"`     // base name, extension stripped
	Source       Source `json:"source"`
}

// StageStatusView is the normalized projection of one stage in an
// AssetStatusResponse.
type StageStatusView struct {
	Status StageStatus `json:"status"`
	Data   any         `json:"data,omitempty"`
}

// AssetStatusResponse is the three-stage status projection returned by
// GET /api/upload/status/{assetId}. Before the backing document exists all
// three stages report pending.
type AssetStatusResponse struct {
	AssetID       string          `json:"assetId"`
	FileName      string          `json:"fileName"`
	Summary       StageStatusView `json:"summary"`
	Transcription StageStatusView `json:"transcription"`
	Previews      StageStatusView `json:"previews"`
}

// AllTerminal reports whether every stage has reached a terminal status.
func (r AssetStatusResponse) AllTerminal() bool {
	return r.Summary.Status.Terminal() &&
		r.Transcription.Status.Terminal() &&
		r.Previews.Status.Terminal()
}
