// internal/status/status.go
// Package status projects pipeline documents into the normalized three-stage
// upload status response.
package status

import (
	"github.com/nebula-foundry/media-gateway-go/internal/model"
)

// Aggregate produces the status projection for an asset. rec is the backing
// catalog document, or nil when the pipeline has not created it yet. The
// upload flow asks for status before the first pipeline write lands, so an
// absent document is the all-pending case, not an error.
//
// Per stage, the explicit stored status wins; otherwise a stage that has
// produced a payload counts as completed, and anything else is pending. For
// previews "produced a payload" means a non-empty clips list, not mere
// presence of the field.
func Aggregate(assetID string, rec *model.MediaRecord) model.AssetStatusResponse {
	resp := model.AssetStatusResponse{
		AssetID:       assetID,
		FileName:      assetID,
		Summary:       model.StageStatusView{Status: model.StagePending},
		Transcription: model.StageStatusView{Status: model.StagePending},
		Previews:      model.StageStatusView{Status: model.StagePending},
	}
	if rec == nil {
		return resp
	}

	if rec.FileName != "" {
		resp.FileName = rec.FileName
	}
	resp.Summary = stageView(rec.Summary)
	resp.Transcription = stageView(rec.Transcription)
	resp.Previews = previewsView(rec.Previews)
	return resp
}

// stageView resolves the status of a summary or transcription stage.
// Presence of the stage document is itself the payload signal.
func stageView(doc *model.StageDocument) model.StageStatusView {
	if doc == nil {
		return model.StageStatusView{Status: model.StagePending}
	}
	view := model.StageStatusView{Status: doc.Status, Data: doc}
	if view.Status == "" {
		view.Status = model.StageCompleted
	}
	return view
}

// previewsView resolves the status of the previews stage. An empty clips
// list means the stage has not produced anything yet.
func previewsView(doc *model.PreviewsDocument) model.StageStatusView {
	if doc == nil {
		return model.StageStatusView{Status: model.StagePending}
	}
	view := model.StageStatusView{Status: doc.Status, Data: doc}
	if view.Status == "" {
		if len(doc.Clips) > 0 {
			view.Status = model.StageCompleted
		} else {
			view.Status = model.StagePending
		}
	}
	return view
}
