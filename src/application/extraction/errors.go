package extraction

import (
	"fmt"
	"time"

	"stem-unmixer/src/application/extraction/entity"
)

// Stage names the part of a run that failed. It doubles as the context of
// the error progress event.
type Stage string

const (
	ValidationStage Stage = "validation"
	OutputStage     Stage = "output"
	UploadStage     Stage = "upload"
	SubmitStage     Stage = "split"
	PollStage       Stage = "check"
	DownloadStage   Stage = "download"
)

var (
	_ error = &RunError{}
	_ error = TimeoutError{}
	_ error = CancelledError{}
)

// RunError is what Run returns for any failure. Cause is the underlying
// validation, transport, remote, malformed response, filename, timeout or
// cancellation error.
type RunError struct {
	Stage Stage
	Stem  entity.Stem
	Cause error
}

func (r *RunError) Unwrap() error {
	return r.Cause
}

func (r *RunError) Error() string {
	if r.Stem == entity.InvalidStem {
		return fmt.Sprintf("%s: %s", r.Stage, r.Cause.Error())
	}

	return fmt.Sprintf("%s %s: %s", r.Stage, r.Stem, r.Cause.Error())
}

// TimeoutError means a split kept reporting progress for longer than the
// configured maximum wait.
type TimeoutError struct {
	Stem    entity.Stem
	MaxWait time.Duration
}

func (t TimeoutError) Error() string {
	return fmt.Sprintf("split of %s did not finish within %s", t.Stem, t.MaxWait)
}

// CancelledError means the caller's context ended the run. Jobs already
// submitted to the service are left running there.
type CancelledError struct {
	Cause error
}

func (c CancelledError) Unwrap() error {
	return c.Cause
}

func (c CancelledError) Error() string {
	return fmt.Sprintf("run cancelled: %s", c.Cause.Error())
}
