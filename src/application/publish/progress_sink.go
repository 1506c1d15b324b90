package publish

import (
	"time"

	"stem-unmixer/src/application/progress"
	"stem-unmixer/src/lib/cerr"

	"github.com/streadway/amqp"
)

const progressContentType = "text/plain"

var _ progress.Sink = ProgressSink{}

// ProgressSink publishes every event as one message: the verb as the message
// type, the protocol line as the body and the run ID as the correlation ID.
type ProgressSink struct {
	publisher Publisher
	runID     string
}

func NewProgressSink(publisher Publisher, runID string) ProgressSink {
	return ProgressSink{
		publisher: publisher,
		runID:     runID,
	}
}

func (p ProgressSink) Accept(event progress.Event) {
	msg := amqp.Publishing{
		ContentType:   progressContentType,
		Type:          string(event.Verb()),
		CorrelationId: p.runID,
		Timestamp:     time.Now(),
		Body:          []byte(progress.Format(event)),
	}

	if err := p.publisher.Publish(msg); err != nil {
		cerr.Log(cerr.Field("run_id", p.runID).
			Field("event", event.Verb()).
			Wrap(err).Error("Failed to publish progress event"))
	}
}
