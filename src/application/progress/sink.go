package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/apex/log"
)

// Sink consumes progress events. Accept must not fail; sinks that do I/O
// report their own errors.
type Sink interface {
	Accept(event Event)
}

var _ Sink = SinkFunc(nil)

type SinkFunc func(event Event)

func (f SinkFunc) Accept(event Event) {
	f(event)
}

var _ Sink = Discard{}

type Discard struct{}

func (Discard) Accept(Event) {}

var _ Sink = MultiSink{}

// MultiSink hands every event to each of its sinks in order.
type MultiSink []Sink

func (m MultiSink) Accept(event Event) {
	for _, sink := range m {
		sink.Accept(event)
	}
}

var _ Sink = &LineSink{}

// LineSink writes events in the console line protocol. It is safe to share
// between runs.
type LineSink struct {
	writer io.Writer
	mutex  sync.Mutex
}

func NewLineSink(writer io.Writer) *LineSink {
	return &LineSink{writer: writer}
}

func (l *LineSink) Accept(event Event) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, err := fmt.Fprintln(l.writer, Format(event)); err != nil {
		log.WithError(err).Error("Failed to write progress line")
	}
}

var _ Sink = LogSink{}

// LogSink turns events into structured log entries.
type LogSink struct {
	logger log.Interface
}

func NewLogSink(logger log.Interface) LogSink {
	if logger == nil {
		logger = log.Log
	}

	return LogSink{logger: logger}
}

func (l LogSink) Accept(event Event) {
	fields := log.Fields{
		"event": string(event.Verb()),
	}

	if stem, ok := StemOf(event); ok {
		fields["stem"] = string(stem)
	}

	switch e := event.(type) {
	case Uploading:
		fields["inputPath"] = e.InputPath
	case Uploaded:
		fields["fileID"] = e.FileID
	case SplitProgress:
		fields["percent"] = e.Percent
	case DownloadStart:
		fields["kind"] = string(e.Kind)
	case DownloadComplete:
		fields["kind"] = string(e.Kind)
	case Error:
		l.logger.WithFields(fields).WithField("context", e.Context).Error(e.Message)
		return
	}

	l.logger.WithFields(fields).Info("Progress")
}
