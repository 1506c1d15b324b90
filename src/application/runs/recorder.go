// Package runs keeps the ledger of queued extraction runs up to date.
package runs

import (
	"context"
	"fmt"

	extractionentity "stem-unmixer/src/application/extraction/entity"
	"stem-unmixer/src/application/progress"
	"stem-unmixer/src/application/runs/entity"
	"stem-unmixer/src/lib/cerr"
)

const (
	uploadingProgress = 5
	uploadedProgress  = 10
	splitsProgress    = 80
	MirrorProgress    = 90
	DoneProgress      = 100
)

var _ progress.Sink = Recorder{}

// Recorder mirrors progress events into the run's ledger entry. Progress is
// spread evenly over the requested stems.
type Recorder struct {
	store entity.RunStore
	runID string
	stems []extractionentity.Stem
}

func NewRecorder(store entity.RunStore, runID string, stems []extractionentity.Stem) Recorder {
	return Recorder{
		store: store,
		runID: runID,
		stems: stems,
	}
}

func (r Recorder) Accept(event progress.Event) {
	updater, ok := r.updaterFor(event)
	if !ok {
		return
	}

	if err := r.store.UpdateRun(context.Background(), r.runID, updater); err != nil {
		cerr.Log(cerr.Field("run_id", r.runID).
			Field("event", event.Verb()).
			Wrap(err).Error("Failed to record progress"))
	}
}

func (r Recorder) updaterFor(event progress.Event) (entity.RunUpdater, bool) {
	switch e := event.(type) {
	case progress.Uploading:
		return r.statusUpdate("Uploading the track", uploadingProgress), true

	case progress.Uploaded:
		return func(run entity.Run) (entity.Run, error) {
			run.FileID = e.FileID
			run.StatusMessage = "Uploaded the track"
			run.Progress = uploadedProgress
			return run, nil
		}, true

	case progress.SplitWaiting:
		return r.statusUpdate(fmt.Sprintf("Waiting for the %s split to start", e.Stem), r.splitProgress(e.Stem, 0)), true

	case progress.SplitProgress:
		return r.statusUpdate(fmt.Sprintf("Splitting %s", e.Stem), r.splitProgress(e.Stem, e.Percent)), true

	case progress.DownloadStart:
		return r.statusUpdate(fmt.Sprintf("Downloading the %s track for %s", e.Kind, e.Stem), r.splitProgress(e.Stem, 100)), true

	case progress.SplitComplete:
		return r.statusUpdate(fmt.Sprintf("Finished %s", e.Stem), r.splitProgress(e.Stem, 100)), true

	case progress.UnmixingComplete:
		return r.statusUpdate("Saving the stems", MirrorProgress), true

	case progress.Error:
		return func(run entity.Run) (entity.Run, error) {
			run.Status = entity.ErrorStatus
			run.StatusMessage = fmt.Sprintf("Failed during %s", e.Context)
			run.DebugLog = e.Message
			return run, nil
		}, true

	default:
		return nil, false
	}
}

func (r Recorder) statusUpdate(message string, percent int) entity.RunUpdater {
	return func(run entity.Run) (entity.Run, error) {
		run.StatusMessage = message
		if percent > run.Progress {
			run.Progress = percent
		}
		return run, nil
	}
}

// splitProgress places percent of stem's split within the overall run.
func (r Recorder) splitProgress(stem extractionentity.Stem, percent int) int {
	index := -1
	for i, s := range r.stems {
		if s == stem {
			index = i
			break
		}
	}

	if index < 0 || len(r.stems) == 0 {
		return uploadedProgress
	}

	share := splitsProgress / len(r.stems)
	return uploadedProgress + index*share + percent*share/100
}
