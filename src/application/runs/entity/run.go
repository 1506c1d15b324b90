package entity

type RunStatus string

const (
	RequestedStatus  RunStatus = "requested"
	ProcessingStatus RunStatus = "processing"
	SuccessStatus    RunStatus = "success"
	ErrorStatus      RunStatus = "error"
)

// Run is the ledger entry of one queued extraction.
type Run struct {
	ID            string            `dynamodbav:"id"`
	Status        RunStatus         `dynamodbav:"status"`
	StatusMessage string            `dynamodbav:"status_message"`
	Progress      int               `dynamodbav:"progress"`
	InputPath     string            `dynamodbav:"input_path"`
	Stems         []string          `dynamodbav:"stems"`
	BackingTracks []string          `dynamodbav:"backing_tracks"`
	FileID        string            `dynamodbav:"file_id,omitempty"`
	ArtifactURLs  map[string]string `dynamodbav:"artifact_urls,omitempty"`
	DebugLog      string            `dynamodbav:"debug_log,omitempty"`
	Version       int               `dynamodbav:"version"`
}

func (r Run) IsFinished() bool {
	return r.Status == SuccessStatus || r.Status == ErrorStatus
}
