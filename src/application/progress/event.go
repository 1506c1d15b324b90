// Package progress defines the events an extraction run emits and the sinks
// that consume them.
package progress

import (
	"strconv"
	"strings"

	"stem-unmixer/src/application/extraction/entity"
)

type Verb string

const (
	UploadingVerb        Verb = "uploading"
	UploadedVerb         Verb = "uploaded"
	SplitStartVerb       Verb = "split_start"
	SplitWaitingVerb     Verb = "split_waiting"
	SplitProgressVerb    Verb = "split_progress"
	DownloadStartVerb    Verb = "download_start"
	DownloadCompleteVerb Verb = "download_complete"
	SplitCompleteVerb    Verb = "split_complete"
	UnmixingCompleteVerb Verb = "unmixing_complete"
	ErrorVerb            Verb = "error"
)

// TrackKind tells a stem download apart from its backing track.
type TrackKind string

const (
	StemTrack    TrackKind = "stem"
	BackingTrack TrackKind = "backing_track"
)

// Event is one of the structs below. The set is closed.
type Event interface {
	Verb() Verb
	args() []string
}

type Uploading struct {
	InputPath string
}

type Uploaded struct {
	FileID string
}

type SplitStart struct {
	Stem entity.Stem
}

type SplitWaiting struct {
	Stem entity.Stem
}

type SplitProgress struct {
	Stem    entity.Stem
	Percent int
}

type DownloadStart struct {
	Kind TrackKind
	Stem entity.Stem
}

type DownloadComplete struct {
	Kind TrackKind
	Stem entity.Stem
}

type SplitComplete struct {
	Stem entity.Stem
}

type UnmixingComplete struct{}

// Error reports the failure that aborted a run. Context names the stage that
// failed.
type Error struct {
	Context string
	Message string
}

func (Uploading) Verb() Verb        { return UploadingVerb }
func (Uploaded) Verb() Verb         { return UploadedVerb }
func (SplitStart) Verb() Verb       { return SplitStartVerb }
func (SplitWaiting) Verb() Verb     { return SplitWaitingVerb }
func (SplitProgress) Verb() Verb    { return SplitProgressVerb }
func (DownloadStart) Verb() Verb    { return DownloadStartVerb }
func (DownloadComplete) Verb() Verb { return DownloadCompleteVerb }
func (SplitComplete) Verb() Verb    { return SplitCompleteVerb }
func (UnmixingComplete) Verb() Verb { return UnmixingCompleteVerb }
func (Error) Verb() Verb            { return ErrorVerb }

func (u Uploading) args() []string {
	return []string{strconv.Quote(u.InputPath)}
}

func (u Uploaded) args() []string {
	return []string{u.FileID}
}

func (s SplitStart) args() []string {
	return []string{string(s.Stem)}
}

func (s SplitWaiting) args() []string {
	return []string{string(s.Stem)}
}

func (s SplitProgress) args() []string {
	return []string{string(s.Stem), strconv.Itoa(s.Percent) + "%"}
}

func (d DownloadStart) args() []string {
	return []string{d.Kind.wireName(), string(d.Stem)}
}

func (d DownloadComplete) args() []string {
	return []string{d.Kind.wireName(), string(d.Stem)}
}

func (s SplitComplete) args() []string {
	return []string{string(s.Stem)}
}

func (UnmixingComplete) args() []string {
	return nil
}

// the protocol is line oriented, so whitespace inside the message collapses
func (e Error) args() []string {
	return []string{e.Context, strings.Join(strings.Fields(e.Message), " ")}
}

// StemOf returns the stem an event is about, if any.
func StemOf(event Event) (entity.Stem, bool) {
	switch e := event.(type) {
	case SplitStart:
		return e.Stem, true
	case SplitWaiting:
		return e.Stem, true
	case SplitProgress:
		return e.Stem, true
	case DownloadStart:
		return e.Stem, true
	case DownloadComplete:
		return e.Stem, true
	case SplitComplete:
		return e.Stem, true
	default:
		return entity.InvalidStem, false
	}
}
