package dummy

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"stem-unmixer/src/application/extraction"
	"stem-unmixer/src/application/extraction/entity"
	"stem-unmixer/src/application/filename"
	"stem-unmixer/src/application/lalalai"
)

var _ extraction.Transport = &LalalTransport{}

const (
	DummyFileID     = "dummy-file-id"
	dummyURLPattern = "https://lalal.dummy/%s/%s"
)

// LalalTransport is a scripted separation service. Every split succeeds on
// its first poll unless Scripts says otherwise; the last scripted status of
// a stem repeats forever.
type LalalTransport struct {
	Unavailable bool

	Scripts        map[entity.Stem][]lalalai.SplitStatus
	SubmitErrors   map[entity.Stem]error
	DownloadErrors map[string]error

	// BeforeCall runs ahead of every call with the same name that ends up in Calls.
	BeforeCall func(call string)

	mutex    sync.Mutex
	calls    []string
	uploaded map[string][]byte
	current  entity.Stem
	polls    map[entity.Stem]int
}

func NewDummyLalalTransport() *LalalTransport {
	return &LalalTransport{
		Unavailable:    false,
		Scripts:        make(map[entity.Stem][]lalalai.SplitStatus),
		SubmitErrors:   make(map[entity.Stem]error),
		DownloadErrors: make(map[string]error),
		uploaded:       make(map[string][]byte),
		polls:          make(map[entity.Stem]int),
	}
}

func StemTrackURL(stem entity.Stem) string {
	return fmt.Sprintf(dummyURLPattern, stem, "stem")
}

func BackTrackURL(stem entity.Stem) string {
	return fmt.Sprintf(dummyURLPattern, stem, "back")
}

// Calls lists every call made so far: "upload", "split:<stem>",
// "check:<stem>" and "download:<url>".
func (l *LalalTransport) Calls() []string {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return append([]string{}, l.calls...)
}

// CallsWithout filters out the calls starting with prefix.
func (l *LalalTransport) CallsWithout(prefix string) []string {
	filtered := []string{}
	for _, call := range l.Calls() {
		if !strings.HasPrefix(call, prefix) {
			filtered = append(filtered, call)
		}
	}

	return filtered
}

func (l *LalalTransport) record(call string) {
	if l.BeforeCall != nil {
		l.BeforeCall(call)
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.calls = append(l.calls, call)
}

func (l *LalalTransport) Upload(ctx context.Context, filePath string, _ string) (string, error) {
	l.record("upload")

	if err := ctx.Err(); err != nil {
		return "", lalalai.TransportError{Operation: "upload", Cause: err}
	}

	if l.Unavailable {
		return "", lalalai.TransportError{Operation: "upload", Cause: NetworkFailure}
	}

	contents, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.uploaded[DummyFileID] = contents

	return DummyFileID, nil
}

func (l *LalalTransport) SubmitSplit(ctx context.Context, fileID string, _ string, stem entity.Stem, _ entity.FilterLevel, _ entity.Network) error {
	l.record("split:" + string(stem))

	if err := ctx.Err(); err != nil {
		return lalalai.TransportError{Operation: "split", Cause: err}
	}

	if l.Unavailable {
		return lalalai.TransportError{Operation: "split", Cause: NetworkFailure}
	}

	if err, ok := l.SubmitErrors[stem]; ok {
		return err
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, ok := l.uploaded[fileID]; !ok {
		return lalalai.RemoteError{Operation: "split", Message: "unknown file id " + fileID}
	}
	l.current = stem

	return nil
}

func (l *LalalTransport) PollStatus(ctx context.Context, _ string) (lalalai.SplitStatus, error) {
	l.mutex.Lock()
	stem := l.current
	l.mutex.Unlock()

	l.record("check:" + string(stem))

	if err := ctx.Err(); err != nil {
		return lalalai.SplitStatus{}, lalalai.TransportError{Operation: "check", Cause: err}
	}

	if l.Unavailable {
		return lalalai.SplitStatus{}, lalalai.TransportError{Operation: "check", Cause: NetworkFailure}
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	script, ok := l.Scripts[stem]
	if !ok || len(script) == 0 {
		script = []lalalai.SplitStatus{{State: lalalai.SuccessState}}
	}

	index := l.polls[stem]
	l.polls[stem] = index + 1
	if index >= len(script) {
		index = len(script) - 1
	}

	status := script[index]
	if status.State == lalalai.SuccessState {
		if status.StemTrackURL == "" {
			status.StemTrackURL = StemTrackURL(stem)
		}
		if status.BackTrackURL == "" {
			status.BackTrackURL = BackTrackURL(stem)
		}
	}

	return status, nil
}

func (l *LalalTransport) Download(ctx context.Context, url string) (lalalai.Download, error) {
	l.record("download:" + url)

	if err := ctx.Err(); err != nil {
		return lalalai.Download{}, lalalai.TransportError{Operation: "download", Cause: err}
	}

	if l.Unavailable {
		return lalalai.Download{}, lalalai.TransportError{Operation: "download", Cause: NetworkFailure}
	}

	if err, ok := l.DownloadErrors[url]; ok {
		return lalalai.Download{}, err
	}

	parts := strings.Split(strings.TrimPrefix(url, "https://lalal.dummy/"), "/")
	if len(parts) != 2 {
		return lalalai.Download{}, lalalai.TransportError{Operation: "download", StatusCode: 404, Cause: NotFound}
	}
	stem, kind := parts[0], parts[1]

	suffix := stem
	if kind == "back" {
		suffix = "no_" + stem
	}

	name, err := filename.Resolve(fmt.Sprintf(`attachment; filename="dummy_%s_split_by_lalalai.mp3"`, suffix))
	if err != nil {
		return lalalai.Download{}, err
	}

	l.mutex.Lock()
	contents := l.uploaded[DummyFileID]
	l.mutex.Unlock()

	return lalalai.Download{
		Filename: name,
		Body:     io.NopCloser(strings.NewReader(ArtifactContents(contents, entity.Stem(stem), kind == "back"))),
	}, nil
}

// ArtifactContents is what the dummy service serves for a split of contents.
func ArtifactContents(contents []byte, stem entity.Stem, backingTrack bool) string {
	if backingTrack {
		return string(contents) + "-without-" + string(stem)
	}

	return string(contents) + "-" + string(stem)
}

// ArtifactName is the file name the dummy service gives an artifact.
func ArtifactName(stem entity.Stem, backingTrack bool) string {
	if backingTrack {
		return "dummy_all_but_" + string(stem) + ".mp3"
	}

	return "dummy_" + string(stem) + ".mp3"
}
