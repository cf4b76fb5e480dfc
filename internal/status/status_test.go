// Package status provides unit tests for the stage aggregation rules.
package status

import (
	"encoding/json"
	"testing"

	"github.com/nebula-foundry/media-gateway-go/internal/model"
)

// TestAggregateAbsentDocument tests that a missing backing document yields
// the all-pending projection.
func TestAggregateAbsentDocument(t *testing.T) {
	resp := Aggregate("concert-1700000000000", nil)

	if resp.AssetID != "concert-1700000000000" {
		t.Errorf("AssetID = %q, want the requested id", resp.AssetID)
	}
	if resp.FileName != "concert-1700000000000" {
		t.Errorf("FileName = %q, want asset id fallback", resp.FileName)
	}
	for name, view := range map[string]model.StageStatusView{
		"summary":       resp.Summary,
		"transcription": resp.Transcription,
		"previews":      resp.Previews,
	} {
		if view.Status != model.StagePending {
			t.Errorf("%s status = %q, want pending", name, view.Status)
		}
	}
	if resp.AllTerminal() {
		t.Error("AllTerminal() = true for all-pending response")
	}
}

// TestAggregateExplicitStatusWins tests that a stored status takes
// precedence over payload presence.
func TestAggregateExplicitStatusWins(t *testing.T) {
	rec := &model.MediaRecord{
		FileName:      "concert.mp4",
		Summary:       &model.StageDocument{Status: model.StageProcessing, Data: json.RawMessage(`{"partial":true}`)},
		Transcription: &model.StageDocument{Status: model.StageFailed},
		Previews:      &model.PreviewsDocument{Status: model.StageNotApplicable},
	}

	resp := Aggregate("concert-1700000000000", rec)

	if resp.FileName != "concert.mp4" {
		t.Errorf("FileName = %q, want the stored file name", resp.FileName)
	}
	if resp.Summary.Status != model.StageProcessing {
		t.Errorf("summary status = %q, want processing", resp.Summary.Status)
	}
	if resp.Transcription.Status != model.StageFailed {
		t.Errorf("transcription status = %q, want failed", resp.Transcription.Status)
	}
	if resp.Previews.Status != model.StageNotApplicable {
		t.Errorf("previews status = %q, want not_applicable", resp.Previews.Status)
	}
	if resp.AllTerminal() {
		t.Error("AllTerminal() = true with a processing stage")
	}
}

// TestAggregatePayloadPresenceCompletes tests the default-completed rule for
// stages that wrote a payload without an explicit status.
func TestAggregatePayloadPresenceCompletes(t *testing.T) {
	rec := &model.MediaRecord{
		Summary:       &model.StageDocument{Data: json.RawMessage(`{"text":"..."}`)},
		Transcription: &model.StageDocument{},
		Previews:      &model.PreviewsDocument{Clips: []model.Clip{{URI: "gs://b/clips/0.mp4"}}},
	}

	resp := Aggregate("a", rec)

	if resp.Summary.Status != model.StageCompleted {
		t.Errorf("summary status = %q, want completed", resp.Summary.Status)
	}
	// Presence of the stage document counts as a payload even with no fields.
	if resp.Transcription.Status != model.StageCompleted {
		t.Errorf("transcription status = %q, want completed", resp.Transcription.Status)
	}
	if resp.Previews.Status != model.StageCompleted {
		t.Errorf("previews status = %q, want completed", resp.Previews.Status)
	}
	if !resp.AllTerminal() {
		t.Error("AllTerminal() = false with all stages completed")
	}
}

// TestAggregateEmptyClipsIsPending tests that previews with an empty clips
// list stays pending rather than completing on field presence.
func TestAggregateEmptyClipsIsPending(t *testing.T) {
	rec := &model.MediaRecord{
		Previews: &model.PreviewsDocument{Clips: []model.Clip{}},
	}

	resp := Aggregate("a", rec)

	if resp.Previews.Status != model.StagePending {
		t.Errorf("previews status = %q, want pending for empty clips", resp.Previews.Status)
	}
}

// TestAggregateCarriesStagePayloads tests that raw stage documents ride
// along in the data field.
func TestAggregateCarriesStagePayloads(t *testing.T) {
	summary := &model.StageDocument{Status: model.StageCompleted, Data: json.RawMessage(`{"text":"a film"}`)}
	rec := &model.MediaRecord{Summary: summary}

	resp := Aggregate("a", rec)

	if resp.Summary.Data != any(summary) {
		t.Errorf("summary data = %v, want the stage document", resp.Summary.Data)
	}
	if resp.Transcription.Data != nil {
		t.Errorf("transcription data = %v, want nil for absent stage", resp.Transcription.Data)
	}
}
