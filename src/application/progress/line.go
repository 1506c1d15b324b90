package progress

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"stem-unmixer/src/application/extraction/entity"
)

const linePrefix = "%"

// the console has always called the backing track "back_track"
const backTrackWireName = "back_track"

var (
	ErrNotAnEvent  = errors.New("line is not a progress event")
	ErrUnknownVerb = errors.New("unknown progress verb")
)

func (k TrackKind) wireName() string {
	if k == BackingTrack {
		return backTrackWireName
	}

	return string(k)
}

func parseTrackKind(val string) (TrackKind, error) {
	switch val {
	case string(StemTrack):
		return StemTrack, nil
	case backTrackWireName, string(BackingTrack):
		return BackingTrack, nil
	default:
		return "", fmt.Errorf("unknown track kind %q", val)
	}
}

// Format renders an event in the line protocol read by the console, e.g.
// "%split_progress vocals 42%".
func Format(event Event) string {
	parts := append([]string{linePrefix + string(event.Verb())}, event.args()...)
	return strings.Join(parts, " ")
}

// Parse reads a protocol line back into an event. Lines that don't start
// with the prefix return ErrNotAnEvent; unknown verbs return ErrUnknownVerb.
func Parse(line string) (Event, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, linePrefix) {
		return nil, ErrNotAnEvent
	}

	verb, rest, _ := strings.Cut(strings.TrimPrefix(line, linePrefix), " ")
	fields := strings.Fields(rest)

	switch Verb(verb) {
	case UploadingVerb:
		path, err := strconv.Unquote(strings.TrimSpace(rest))
		if err != nil {
			path = strings.TrimSpace(rest)
		}
		return Uploading{InputPath: path}, nil

	case UploadedVerb:
		if err := expectArgs(verb, fields, 1); err != nil {
			return nil, err
		}
		return Uploaded{FileID: fields[0]}, nil

	case SplitStartVerb:
		if err := expectArgs(verb, fields, 1); err != nil {
			return nil, err
		}
		return SplitStart{Stem: entity.Stem(fields[0])}, nil

	case SplitWaitingVerb:
		if err := expectArgs(verb, fields, 1); err != nil {
			return nil, err
		}
		return SplitWaiting{Stem: entity.Stem(fields[0])}, nil

	case SplitProgressVerb:
		if err := expectArgs(verb, fields, 2); err != nil {
			return nil, err
		}
		percent, err := strconv.Atoi(strings.TrimSuffix(fields[1], "%"))
		if err != nil {
			return nil, fmt.Errorf("%s: bad percent %q: %w", verb, fields[1], err)
		}
		return SplitProgress{Stem: entity.Stem(fields[0]), Percent: percent}, nil

	case DownloadStartVerb, DownloadCompleteVerb:
		if err := expectArgs(verb, fields, 2); err != nil {
			return nil, err
		}
		kind, err := parseTrackKind(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", verb, err)
		}
		if Verb(verb) == DownloadStartVerb {
			return DownloadStart{Kind: kind, Stem: entity.Stem(fields[1])}, nil
		}
		return DownloadComplete{Kind: kind, Stem: entity.Stem(fields[1])}, nil

	case SplitCompleteVerb:
		if err := expectArgs(verb, fields, 1); err != nil {
			return nil, err
		}
		return SplitComplete{Stem: entity.Stem(fields[0])}, nil

	case UnmixingCompleteVerb:
		return UnmixingComplete{}, nil

	case ErrorVerb:
		context, message, _ := strings.Cut(strings.TrimSpace(rest), " ")
		return Error{Context: context, Message: message}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVerb, verb)
	}
}

func expectArgs(verb string, fields []string, count int) error {
	if len(fields) < count {
		return fmt.Errorf("%s: expected %d arguments, got %d", verb, count, len(fields))
	}

	return nil
}
