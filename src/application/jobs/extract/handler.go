package extract

import (
	"context"
	"encoding/json"

	"stem-unmixer/src/application/extraction"
	"stem-unmixer/src/application/extraction/entity"
	"stem-unmixer/src/application/jobs/job_message"
	"stem-unmixer/src/application/progress"
	"stem-unmixer/src/application/publish"
	"stem-unmixer/src/application/runs"
	runentity "stem-unmixer/src/application/runs/entity"
	"stem-unmixer/src/application/settings"
	"stem-unmixer/src/application/worker"
	"stem-unmixer/src/lib/cerr"

	"github.com/apex/log"
	"github.com/streadway/amqp"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

const JobType string = "extract_stems"
const ErrorMessage string = "Failed to extract the requested stems"

type JobParams struct {
	job_message.RunIdentifier
	InputPath     string   `json:"input_path"`
	OutputDir     string   `json:"output_dir,omitempty"`
	Stems         []string `json:"stems"`
	BackingTracks []string `json:"backing_tracks,omitempty"`
	Filter        string   `json:"filter,omitempty"`
	Splitter      string   `json:"splitter,omitempty"`
	License       string   `json:"license,omitempty"`
}

func CreateJobMessage(params JobParams) (amqp.Publishing, error) {
	return job_message.CreateJobMessage(JobType, params.RunID, params)
}

var _ Runner = extraction.Orchestrator{}

//counterfeiter:generate . Runner
type Runner interface {
	Run(ctx context.Context, request entity.ExtractionRequest, sink progress.Sink) (extraction.Result, error)
}

//counterfeiter:generate . ArtifactMirror
type ArtifactMirror interface {
	MirrorArtifacts(ctx context.Context, runID string, artifacts []extraction.Artifact) (map[string]string, error)
}

var _ worker.MessageHandler = JobHandler{}

// JobHandler runs one extraction per message. Settings are read through a
// handle opened for the job and closed when it finishes.
type JobHandler struct {
	runner       Runner
	runStore     runentity.RunStore
	publisher    publish.Publisher
	mirror       ArtifactMirror
	settingsPath string
}

// NewJobHandler builds a handler. mirror may be nil, in which case artifacts
// stay on local disk and their paths are recorded instead of URLs; an empty
// settingsPath skips the settings store.
func NewJobHandler(runner Runner, runStore runentity.RunStore, publisher publish.Publisher, mirror ArtifactMirror, settingsPath string) JobHandler {
	return JobHandler{
		runner:       runner,
		runStore:     runStore,
		publisher:    publisher,
		mirror:       mirror,
		settingsPath: settingsPath,
	}
}

func (h JobHandler) JobType() string {
	return JobType
}

func (h JobHandler) ErrorMessage() string {
	return ErrorMessage
}

func (h JobHandler) HandleMessage(message []byte) error {
	ctx := context.Background()

	params, err := unmarshalMessage(message)
	if err != nil {
		return cerr.Wrap(err).Error("Failed to unmarshal message JSON")
	}

	errctx := cerr.Field("run_id", params.RunID)
	logger := log.WithField("run_id", params.RunID)

	request, err := h.buildRequest(ctx, params)
	if err != nil {
		return errctx.Wrap(err).Error("Failed to build extraction request")
	}

	if err := h.markProcessing(ctx, params.RunID); err != nil {
		return errctx.Wrap(err).Error("Failed to set the run status")
	}

	sink := progress.MultiSink{
		progress.NewLogSink(logger),
		runs.NewRecorder(h.runStore, params.RunID, request.Stems),
	}
	if h.publisher != nil {
		sink = append(sink, publish.NewProgressSink(h.publisher, params.RunID))
	}

	logger.Info("Starting extraction")
	result, err := h.runner.Run(ctx, request, sink)
	if err != nil {
		return errctx.Wrap(err).Error("Extraction failed")
	}

	artifactURLs, err := h.mirrorArtifacts(ctx, params.RunID, result.Artifacts)
	if err != nil {
		return errctx.Wrap(err).Error("Failed to mirror artifacts")
	}

	updater := func(run runentity.Run) (runentity.Run, error) {
		run.Status = runentity.SuccessStatus
		run.StatusMessage = "Stems are ready"
		run.Progress = runs.DoneProgress
		run.FileID = result.FileID
		run.ArtifactURLs = artifactURLs
		return run, nil
	}

	if err := h.runStore.UpdateRun(ctx, params.RunID, updater); err != nil {
		return errctx.Wrap(err).Error("Failed to save the run result")
	}

	logger.WithField("artifacts", len(artifactURLs)).Info("Extraction job finished")
	return nil
}

func (h JobHandler) markProcessing(ctx context.Context, runID string) error {
	errctx := cerr.Field("run_id", runID)

	updater := func(run runentity.Run) (runentity.Run, error) {
		if run.Status != runentity.RequestedStatus {
			return runentity.Run{}, errctx.Field("status", run.Status).
				Error("Run is not in requested status, abort processing to be safe")
		}

		run.Status = runentity.ProcessingStatus
		run.StatusMessage = "Starting extraction"
		return run, nil
	}

	return h.runStore.UpdateRun(ctx, runID, updater)
}

func (h JobHandler) mirrorArtifacts(ctx context.Context, runID string, artifacts []extraction.Artifact) (map[string]string, error) {
	if h.mirror != nil {
		return h.mirror.MirrorArtifacts(ctx, runID, artifacts)
	}

	paths := map[string]string{}
	for _, artifact := range artifacts {
		paths[string(artifact.Kind)+"/"+string(artifact.Stem)] = artifact.Path
	}

	return paths, nil
}

func (h JobHandler) buildRequest(ctx context.Context, params JobParams) (entity.ExtractionRequest, error) {
	defaults := settings.Defaults{
		Filter:  entity.DefaultFilter,
		Network: entity.DefaultNetwork,
	}

	if h.settingsPath != "" {
		store, err := settings.Open(h.settingsPath)
		if err != nil {
			return entity.ExtractionRequest{}, cerr.Wrap(err).Error("Failed to open settings")
		}
		defer func() {
			if err := store.Close(); err != nil {
				cerr.Log(err)
			}
		}()

		defaults, err = store.Defaults(ctx)
		if err != nil {
			return entity.ExtractionRequest{}, cerr.Wrap(err).Error("Failed to read settings")
		}
	}

	return RequestFromParams(params, defaults)
}

// RequestFromParams merges job parameters over stored defaults.
func RequestFromParams(params JobParams, defaults settings.Defaults) (entity.ExtractionRequest, error) {
	stems, err := entity.ConvertToStems(entity.StemsField, params.Stems)
	if err != nil {
		return entity.ExtractionRequest{}, err
	}

	backingTracks, err := entity.ConvertToStems(entity.BackingTracksField, params.BackingTracks)
	if err != nil {
		return entity.ExtractionRequest{}, err
	}

	request := entity.ExtractionRequest{
		License:       firstNonEmpty(params.License, defaults.License),
		InputPath:     params.InputPath,
		OutputDir:     firstNonEmpty(params.OutputDir, defaults.OutputDir),
		Stems:         stems,
		BackingTracks: backingTracks,
		Filter:        defaults.Filter,
		Network:       defaults.Network,
	}

	if params.Filter != "" {
		if request.Filter, err = entity.ConvertToFilterLevel(params.Filter); err != nil {
			return entity.ExtractionRequest{}, err
		}
	}

	if params.Splitter != "" {
		if request.Network, err = entity.ConvertToNetwork(params.Splitter); err != nil {
			return entity.ExtractionRequest{}, err
		}
	}

	if !request.HasSelection() {
		return entity.ExtractionRequest{}, entity.ValidationError{Field: entity.StemsField}
	}

	if err := settings.ValidateLicense(request.License); err != nil {
		return entity.ExtractionRequest{}, err
	}

	return request, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}

	return ""
}

func unmarshalMessage(message []byte) (JobParams, error) {
	params := JobParams{}
	err := json.Unmarshal(message, &params)
	if err != nil {
		return JobParams{}, cerr.Wrap(err).Error("Failed to unmarshal message JSON")
	}

	errctx := cerr.Field("job_params", params)

	if params.RunID == "" {
		return JobParams{}, errctx.Error("Missing run ID")
	}

	if params.InputPath == "" {
		return JobParams{}, errctx.Error("Missing input path")
	}

	return params, nil
}
