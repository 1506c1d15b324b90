package job_router

import (
	"context"

	"stem-unmixer/src/application/jobs/job_message"
	"stem-unmixer/src/application/runs/entity"
	"stem-unmixer/src/application/worker"
	"stem-unmixer/src/lib/cerr"

	"github.com/apex/log"
	"github.com/streadway/amqp"
)

const defaultErrorMessage = "Failed to process the job"

var _ worker.Router = JobRouter{}

// errorDescriber is implemented by handlers that have a user facing message
// for their failures.
type errorDescriber interface {
	ErrorMessage() string
}

func NewJobRouter(runStore entity.RunStore, handlers ...worker.MessageHandler) JobRouter {
	handlerMap := map[string]worker.MessageHandler{}
	for _, handler := range handlers {
		handlerMap[handler.JobType()] = handler
	}

	return JobRouter{
		runStore: runStore,
		handlers: handlerMap,
	}
}

type JobRouter struct {
	runStore entity.RunStore
	handlers map[string]worker.MessageHandler
}

func (j JobRouter) HandleMessage(message amqp.Delivery) error {
	handler, ok := j.handlers[message.Type]
	if !ok {
		return cerr.Field("job_type", message.Type).Error("Unrecognized amqp job type")
	}

	if err := handler.HandleMessage(message.Body); err != nil {
		j.handleError(message, handler, err)
		return cerr.Field("message_body", string(message.Body)).Wrap(err).Error("Failed to handle job")
	}

	return nil
}

func (j JobRouter) handleError(message amqp.Delivery, handler worker.MessageHandler, jobError error) {
	runID, err := job_message.RunIDOf(message.Body)
	if err != nil {
		log.WithField("job_type", message.Type).Warn("Job failed without a run to report to")
		return
	}

	statusMessage := defaultErrorMessage
	if describer, ok := handler.(errorDescriber); ok {
		statusMessage = describer.ErrorMessage()
	}

	updater := func(run entity.Run) (entity.Run, error) {
		run.Status = entity.ErrorStatus
		run.StatusMessage = statusMessage
		run.DebugLog = jobError.Error()
		return run, nil
	}

	if err := j.runStore.UpdateRun(context.Background(), runID, updater); err != nil {
		cerr.Log(cerr.Field("run_id", runID).Wrap(err).Error("Failed to report job error to the run store"))
	}
}
