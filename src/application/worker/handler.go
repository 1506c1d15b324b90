package worker

// MessageHandler handles the jobs of one message type.
type MessageHandler interface {
	JobType() string
	HandleMessage(message []byte) error
}
