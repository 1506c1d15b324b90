package entity

import "fmt"

type RequestField string

const (
	StemsField         RequestField = "stem"
	BackingTracksField RequestField = "backing track"
	FilterField        RequestField = "filter"
	NetworkField       RequestField = "splitter"
	LicenseField       RequestField = "license"
	InputPathField     RequestField = "input"
	OutputDirField     RequestField = "output directory"
)

var _ error = ValidationError{}

// ValidationError reports a request value rejected before any I/O happened.
type ValidationError struct {
	Field RequestField
	Value string
}

func (v ValidationError) Error() string {
	if v.Value == "" {
		return fmt.Sprintf("Missing %s", v.Field)
	}

	return fmt.Sprintf("Unrecognized %s: %s", v.Field, v.Value)
}
