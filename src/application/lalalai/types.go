package lalalai

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

type TaskState string

const (
	ProgressState TaskState = "progress"
	ErrorState    TaskState = "error"
	SuccessState  TaskState = "success"
)

// SplitStatus is one snapshot of the split job currently running for a file.
type SplitStatus struct {
	State        TaskState
	Percent      int
	StemTrackURL string
	BackTrackURL string
	ErrorMessage string
}

func (s SplitStatus) IsTerminal() bool {
	return s.State == SuccessState || s.State == ErrorState
}

// Download is an artifact being fetched. The caller owns Body and must
// close it.
type Download struct {
	Filename string
	Body     io.ReadCloser
}

type uploadResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
	Error  string `json:"error"`
}

type splitResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type checkResponse struct {
	Status string      `json:"status"`
	Error  string      `json:"error"`
	Task   *checkTask  `json:"task"`
	Split  *checkSplit `json:"split"`
}

type checkTask struct {
	State    string  `json:"state"`
	Progress percent `json:"progress"`
	Error    string  `json:"error"`
}

type checkSplit struct {
	StemTrack string `json:"stem_track"`
	BackTrack string `json:"back_track"`
}

// percent accepts the progress field as either a JSON number or a numeric
// string, the service has been seen sending both.
type percent int

func (p *percent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}

	var raw json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		var str string
		if strErr := json.Unmarshal(data, &str); strErr != nil {
			return err
		}
		raw = json.Number(strings.TrimSuffix(strings.TrimSpace(str), "%"))
	}

	value, err := strconv.ParseFloat(raw.String(), 64)
	if err != nil {
		return err
	}

	*p = percent(int(value))
	return nil
}
