package lalalai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"stem-unmixer/src/application/extraction/entity"
	"stem-unmixer/src/application/filename"
	"stem-unmixer/src/lib/cerr"

	"github.com/apex/log"
)

const DefaultBaseURL = "https://www.lalal.ai/api/"

const (
	uploadOperation   = "upload"
	splitOperation    = "split"
	checkOperation    = "check"
	downloadOperation = "download"
)

// errorBodyLimit caps how much of a failed response is read while looking
// for a service error message.
const errorBodyLimit = 64 * 1024

// Client talks to the LALAL.AI HTTP API. It holds no state between calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func authorizationHeader(license string) string {
	return "license " + license
}

// Upload streams the file at filePath to the service and returns the id the
// service assigned to it.
func (c Client) Upload(ctx context.Context, filePath string, license string) (string, error) {
	logger := log.WithFields(log.Fields{
		"filePath": filePath,
	})

	file, err := os.Open(filePath)
	if err != nil {
		return "", cerr.Field("file_path", filePath).Wrap(err).Error("Failed to open source file")
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", cerr.Field("file_path", filePath).Wrap(err).Error("Failed to stat source file")
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"upload/", file)
	if err != nil {
		return "", TransportError{Operation: uploadOperation, Cause: err}
	}

	request.ContentLength = info.Size()
	request.Header.Set("Content-Type", "application/octet-stream")
	request.Header.Set("Content-Disposition", MakeContentDisposition(filepath.Base(filePath), "attachment"))
	request.Header.Set("Authorization", authorizationHeader(license))

	logger.Info("Uploading source file")
	var result uploadResponse
	if err := c.doJSON(request, uploadOperation, &result); err != nil {
		return "", err
	}

	if result.Status != statusSuccess {
		return "", RemoteError{Operation: uploadOperation, Message: result.Error}
	}

	if result.ID == "" {
		return "", MalformedResponseError{Operation: uploadOperation, Reason: "missing file id"}
	}

	logger.WithField("fileID", result.ID).Info("Uploaded source file")
	return result.ID, nil
}

// SubmitSplit asks the service to start extracting stem from an uploaded file.
func (c Client) SubmitSplit(ctx context.Context, fileID string, license string, stem entity.Stem, filter entity.FilterLevel, network entity.Network) error {
	form := url.Values{}
	form.Set("id", fileID)
	form.Set("stem", string(stem))
	form.Set("filter", filter.FormValue())
	form.Set("splitter", string(network))

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"split/", strings.NewReader(form.Encode()))
	if err != nil {
		return TransportError{Operation: splitOperation, Cause: err}
	}

	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.Header.Set("Authorization", authorizationHeader(license))

	log.WithFields(log.Fields{
		"fileID":   fileID,
		"stem":     stem,
		"filter":   filter,
		"splitter": network,
	}).Info("Submitting split job")

	var result splitResponse
	if err := c.doJSON(request, splitOperation, &result); err != nil {
		return err
	}

	switch result.Status {
	case statusError:
		return RemoteError{Operation: splitOperation, Message: result.Error}
	case "":
		return MalformedResponseError{Operation: splitOperation, Reason: "missing status"}
	}

	return nil
}

// PollStatus fetches a single snapshot of the split job for fileID. It never
// loops; pacing the polls is up to the caller.
func (c Client) PollStatus(ctx context.Context, fileID string) (SplitStatus, error) {
	query := url.Values{}
	query.Set("id", fileID)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"check/?"+query.Encode(), nil)
	if err != nil {
		return SplitStatus{}, TransportError{Operation: checkOperation, Cause: err}
	}

	var result checkResponse
	if err := c.doJSON(request, checkOperation, &result); err != nil {
		return SplitStatus{}, err
	}

	if result.Status == statusError {
		return SplitStatus{}, RemoteError{Operation: checkOperation, Message: result.Error}
	}

	if result.Task == nil {
		return SplitStatus{}, MalformedResponseError{Operation: checkOperation, Reason: "missing task"}
	}

	switch TaskState(result.Task.State) {
	case ProgressState:
		return SplitStatus{
			State:   ProgressState,
			Percent: int(result.Task.Progress),
		}, nil

	case ErrorState:
		return SplitStatus{
			State:        ErrorState,
			ErrorMessage: result.Task.Error,
		}, nil

	case SuccessState:
		if result.Split == nil || result.Split.StemTrack == "" {
			return SplitStatus{}, MalformedResponseError{Operation: checkOperation, Reason: "missing split track URLs"}
		}

		return SplitStatus{
			State:        SuccessState,
			Percent:      100,
			StemTrackURL: result.Split.StemTrack,
			BackTrackURL: result.Split.BackTrack,
		}, nil

	default:
		return SplitStatus{}, MalformedResponseError{
			Operation: checkOperation,
			Reason:    fmt.Sprintf("unknown task state %q", result.Task.State),
		}
	}
}

// Download starts fetching an artifact. The file name comes from the
// response's Content-Disposition header; the body is left unread.
func (c Client) Download(ctx context.Context, artifactURL string) (Download, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, artifactURL, nil)
	if err != nil {
		return Download{}, TransportError{Operation: downloadOperation, Cause: err}
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return Download{}, TransportError{Operation: downloadOperation, Cause: err}
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		drainAndClose(response.Body)
		return Download{}, TransportError{Operation: downloadOperation, StatusCode: response.StatusCode}
	}

	name, err := filename.Resolve(response.Header.Get("Content-Disposition"))
	if err != nil {
		drainAndClose(response.Body)
		return Download{}, err
	}

	return Download{
		Filename: name,
		Body:     response.Body,
	}, nil
}

func (c Client) doJSON(request *http.Request, operation string, target interface{}) error {
	response, err := c.httpClient.Do(request)
	if err != nil {
		return TransportError{Operation: operation, Cause: err}
	}
	defer drainAndClose(response.Body)

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return errorFromFailedResponse(operation, response)
	}

	if err := json.NewDecoder(response.Body).Decode(target); err != nil {
		return MalformedResponseError{Operation: operation, Reason: "undecodable JSON body", Cause: err}
	}

	return nil
}

// errorFromFailedResponse prefers the service's own error message when a
// non-2xx response still carries one.
func errorFromFailedResponse(operation string, response *http.Response) error {
	var body struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}

	decodeErr := json.NewDecoder(io.LimitReader(response.Body, errorBodyLimit)).Decode(&body)
	if decodeErr == nil && body.Status == statusError && body.Error != "" {
		return RemoteError{Operation: operation, Message: body.Error}
	}

	return TransportError{
		Operation:  operation,
		StatusCode: response.StatusCode,
		Cause:      errors.New(http.StatusText(response.StatusCode)),
	}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, errorBodyLimit))
	_ = body.Close()
}
