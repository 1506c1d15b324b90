package job_message

import (
	"encoding/json"

	"stem-unmixer/src/lib/cerr"

	"github.com/streadway/amqp"
)

// RunIdentifier is carried by every job message.
type RunIdentifier struct {
	RunID string `json:"run_id"`
}

func CreateJobMessage(jobType string, runID string, message interface{}) (amqp.Publishing, error) {
	jsonBytes, err := json.Marshal(message)
	if err != nil {
		return amqp.Publishing{}, cerr.Field("job_type", jobType).Wrap(err).Error("Failed to marshal job params")
	}

	return amqp.Publishing{
		Type:      jobType,
		MessageId: runID,
		Body:      jsonBytes,
	}, nil
}

// RunIDOf pulls the run ID out of a job message body.
func RunIDOf(body []byte) (string, error) {
	var identifier RunIdentifier
	if err := json.Unmarshal(body, &identifier); err != nil {
		return "", cerr.Wrap(err).Error("Failed to unmarshal job message")
	}

	if identifier.RunID == "" {
		return "", cerr.Error("Job message has no run ID")
	}

	return identifier.RunID, nil
}
