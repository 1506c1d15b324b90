package progress

import (
	"bufio"
	"errors"
	"io"

	"github.com/apex/log"
)

// Consume reads protocol lines from reader and forwards every event to sink.
// Lines that aren't events, or carry a verb this build doesn't know, are
// logged and skipped.
func Consume(reader io.Reader, sink Sink) error {
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		line := scanner.Text()

		event, err := Parse(line)
		switch {
		case err == nil:
			sink.Accept(event)
		case errors.Is(err, ErrNotAnEvent):
			log.WithField("line", line).Debug("Skipping console output")
		default:
			log.WithField("line", line).WithError(err).Warn("Ignoring unrecognized progress line")
		}
	}

	return scanner.Err()
}
