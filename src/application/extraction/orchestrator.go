// Package extraction drives a stem extraction request against the remote
// separation service: one upload, then a split per requested stem with the
// next split submitted while the current one downloads.
package extraction

import (
	"context"
	"errors"
	"time"

	"stem-unmixer/src/application/extraction/entity"
	"stem-unmixer/src/application/lalalai"
	"stem-unmixer/src/application/progress"
	"stem-unmixer/src/lib/working_dir"

	"github.com/apex/log"
	"golang.org/x/time/rate"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultChunkSize    = 8196
)

var _ Transport = lalalai.Client{}

// Transport is the remote separation service.
type Transport interface {
	Upload(ctx context.Context, filePath string, license string) (string, error)
	SubmitSplit(ctx context.Context, fileID string, license string, stem entity.Stem, filter entity.FilterLevel, network entity.Network) error
	PollStatus(ctx context.Context, fileID string) (lalalai.SplitStatus, error)
	Download(ctx context.Context, url string) (lalalai.Download, error)
}

// Options tune a run. Zero values pick the defaults; a zero MaxWait lets a
// split run for as long as the service keeps reporting progress.
type Options struct {
	PollInterval time.Duration
	MaxWait      time.Duration
	ChunkSize    int
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}

	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}

	return o
}

type Artifact struct {
	Kind progress.TrackKind
	Stem entity.Stem
	Path string
}

type Result struct {
	FileID    string
	Artifacts []Artifact
}

type Orchestrator struct {
	transport Transport
	options   Options
}

func NewOrchestrator(transport Transport, options Options) Orchestrator {
	return Orchestrator{
		transport: transport,
		options:   options.withDefaults(),
	}
}

// Run performs one extraction request, reporting progress to sink. Events
// reach sink in emission order from a separate goroutine, and all of them
// have been delivered by the time Run returns. Any failure aborts the whole
// request and comes back as a *RunError.
func (o Orchestrator) Run(ctx context.Context, request entity.ExtractionRequest, sink progress.Sink) (Result, error) {
	events := progress.NewAsyncSink(sink)
	defer events.Close()

	r := &run{
		ctx:       ctx,
		transport: o.transport,
		options:   o.options,
		request:   request,
		events:    events,
		logger: log.WithFields(log.Fields{
			"inputPath": request.InputPath,
			"outputDir": request.OutputDir,
		}),
	}

	result, err := r.execute()
	if err != nil {
		runErr := &RunError{}
		if errors.As(err, &runErr) {
			events.Accept(progress.Error{Context: string(runErr.Stage), Message: runErr.Cause.Error()})
		}
		r.logger.WithError(err).Error("Extraction failed")
		return result, err
	}

	return result, nil
}

type run struct {
	ctx       context.Context
	transport Transport
	options   Options
	request   entity.ExtractionRequest
	events    progress.Sink
	logger    log.Interface

	workingDir working_dir.WorkingDir
	fileID     string
	artifacts  []Artifact
}

func (r *run) execute() (Result, error) {
	if err := r.request.Validate(); err != nil {
		return Result{}, &RunError{Stage: ValidationStage, Cause: err}
	}

	workingDir, err := working_dir.NewWorkingDir(r.request.OutputDir)
	if err != nil {
		return Result{}, &RunError{Stage: OutputStage, Cause: err}
	}
	r.workingDir = workingDir

	if err := r.upload(); err != nil {
		return r.result(), err
	}

	stems := r.request.Stems
	if len(stems) > 0 {
		if err := r.submit(stems[0]); err != nil {
			return r.result(), err
		}
	}

	for i, stem := range stems {
		status, err := r.waitForSplit(stem)
		if err != nil {
			return r.result(), err
		}

		if i+1 < len(stems) {
			if err := r.submit(stems[i+1]); err != nil {
				return r.result(), err
			}
		}

		if err := r.download(progress.StemTrack, stem, status.StemTrackURL); err != nil {
			return r.result(), err
		}

		if r.request.WantsBackingTrack(stem) {
			if err := r.download(progress.BackingTrack, stem, status.BackTrackURL); err != nil {
				return r.result(), err
			}
		}

		r.events.Accept(progress.SplitComplete{Stem: stem})
	}

	r.events.Accept(progress.UnmixingComplete{})
	r.logger.WithFields(log.Fields{
		"fileID":    r.fileID,
		"artifacts": len(r.artifacts),
	}).Info("Finished extraction")

	return r.result(), nil
}

func (r *run) result() Result {
	return Result{
		FileID:    r.fileID,
		Artifacts: r.artifacts,
	}
}

// fail wraps err for stage, turning context errors into CancelledError.
func (r *run) fail(stage Stage, stem entity.Stem, err error) error {
	if ctxErr := r.ctx.Err(); ctxErr != nil {
		err = CancelledError{Cause: ctxErr}
	}

	return &RunError{Stage: stage, Stem: stem, Cause: err}
}

func (r *run) checkCancelled(stage Stage, stem entity.Stem) error {
	if ctxErr := r.ctx.Err(); ctxErr != nil {
		return &RunError{Stage: stage, Stem: stem, Cause: CancelledError{Cause: ctxErr}}
	}

	return nil
}

func (r *run) upload() error {
	r.events.Accept(progress.Uploading{InputPath: r.request.InputPath})

	if err := r.checkCancelled(UploadStage, entity.InvalidStem); err != nil {
		return err
	}

	r.logger.Info("Uploading file")
	fileID, err := r.transport.Upload(r.ctx, r.request.InputPath, r.request.License)
	if err != nil {
		return r.fail(UploadStage, entity.InvalidStem, err)
	}

	r.fileID = fileID
	r.logger = r.logger.WithField("fileID", fileID)
	r.events.Accept(progress.Uploaded{FileID: fileID})

	return nil
}

func (r *run) submit(stem entity.Stem) error {
	r.events.Accept(progress.SplitStart{Stem: stem})

	if err := r.checkCancelled(SubmitStage, stem); err != nil {
		return err
	}

	r.logger.WithField("stem", stem).Info("Submitting split")
	err := r.transport.SubmitSplit(r.ctx, r.fileID, r.request.License, stem, r.request.Filter, r.request.Network)
	if err != nil {
		return r.fail(SubmitStage, stem, err)
	}

	return nil
}

// waitForSplit polls until the split of stem succeeds or fails. While the
// service reports zero percent a single waiting event is emitted; it is
// emitted again if the percentage drops back to zero.
func (r *run) waitForSplit(stem entity.Stem) (lalalai.SplitStatus, error) {
	pollCtx := r.ctx
	if r.options.MaxWait > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(r.ctx, r.options.MaxWait)
		defer cancel()
	}

	failPoll := func(err error) error {
		if r.ctx.Err() == nil && r.options.MaxWait > 0 {
			return &RunError{Stage: PollStage, Stem: stem, Cause: TimeoutError{Stem: stem, MaxWait: r.options.MaxWait}}
		}
		return r.fail(PollStage, stem, err)
	}

	limiter := rate.NewLimiter(rate.Every(r.options.PollInterval), 1)
	waiting := false

	for {
		if err := limiter.Wait(pollCtx); err != nil {
			return lalalai.SplitStatus{}, failPoll(err)
		}

		status, err := r.transport.PollStatus(pollCtx, r.fileID)
		if err != nil {
			if pollCtx.Err() != nil {
				return lalalai.SplitStatus{}, failPoll(err)
			}
			return lalalai.SplitStatus{}, r.fail(PollStage, stem, err)
		}

		switch status.State {
		case lalalai.SuccessState:
			return status, nil
		case lalalai.ErrorState:
			remoteErr := lalalai.RemoteError{Operation: "split", Message: status.ErrorMessage}
			return lalalai.SplitStatus{}, &RunError{Stage: SubmitStage, Stem: stem, Cause: remoteErr}
		}

		if status.Percent == 0 {
			if !waiting {
				r.events.Accept(progress.SplitWaiting{Stem: stem})
				waiting = true
			}
			continue
		}

		waiting = false
		r.events.Accept(progress.SplitProgress{Stem: stem, Percent: status.Percent})
	}
}

func (r *run) download(kind progress.TrackKind, stem entity.Stem, url string) error {
	r.events.Accept(progress.DownloadStart{Kind: kind, Stem: stem})

	if url == "" {
		return &RunError{Stage: DownloadStage, Stem: stem, Cause: lalalai.MalformedResponseError{
			Operation: "check",
			Reason:    "no " + string(kind) + " url for " + string(stem),
		}}
	}

	if err := r.checkCancelled(DownloadStage, stem); err != nil {
		return err
	}

	artifact, err := r.transport.Download(r.ctx, url)
	if err != nil {
		return r.fail(DownloadStage, stem, err)
	}
	defer artifact.Body.Close()

	path, err := r.workingDir.WriteFile(artifact.Filename, artifact.Body, r.options.ChunkSize)
	if err != nil {
		return r.fail(DownloadStage, stem, err)
	}

	r.artifacts = append(r.artifacts, Artifact{Kind: kind, Stem: stem, Path: path})
	r.logger.WithFields(log.Fields{
		"stem": stem,
		"kind": kind,
		"path": path,
	}).Info("Downloaded artifact")
	r.events.Accept(progress.DownloadComplete{Kind: kind, Stem: stem})

	return nil
}
