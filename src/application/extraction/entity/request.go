package entity

// ExtractionRequest describes one file to unmix. It is treated as immutable
// once built.
type ExtractionRequest struct {
	License       string
	InputPath     string
	OutputDir     string
	Stems         []Stem
	BackingTracks []Stem
	Filter        FilterLevel
	Network       Network
}

// ValidateStems checks the requested labels, stems first, then backing
// tracks, and reports the first unknown one.
func (r ExtractionRequest) ValidateStems() error {
	if stem, found := FindInvalidStem(r.Stems); found {
		return ValidationError{Field: StemsField, Value: string(stem)}
	}

	if stem, found := FindInvalidStem(r.BackingTracks); found {
		return ValidationError{Field: BackingTracksField, Value: string(stem)}
	}

	return nil
}

// Validate checks everything that can be checked without touching the
// network or the filesystem.
func (r ExtractionRequest) Validate() error {
	if err := r.ValidateStems(); err != nil {
		return err
	}

	if !r.Filter.IsValid() {
		return ValidationError{Field: FilterField, Value: r.Filter.FormValue()}
	}

	if !r.Network.IsValid() {
		return ValidationError{Field: NetworkField, Value: string(r.Network)}
	}

	if r.InputPath == "" {
		return ValidationError{Field: InputPathField}
	}

	if r.OutputDir == "" {
		return ValidationError{Field: OutputDirField}
	}

	return nil
}

// WantsBackingTrack reports whether the backing track of stem should be
// downloaded along with the stem itself.
func (r ExtractionRequest) WantsBackingTrack(stem Stem) bool {
	return ContainsStem(r.BackingTracks, stem)
}

// HasSelection is the caller-side precondition: at least one stem or
// backing track has to be requested.
func (r ExtractionRequest) HasSelection() bool {
	return len(r.Stems) > 0 || len(r.BackingTracks) > 0
}
