package entity

type Stem string

const (
	InvalidStem        Stem = ""
	VocalsStem         Stem = "vocals"
	DrumStem           Stem = "drum"
	BassStem           Stem = "bass"
	PianoStem          Stem = "piano"
	ElectricGuitarStem Stem = "electric_guitar"
	AcousticGuitarStem Stem = "acoustic_guitar"
	SynthesizerStem    Stem = "synthesizer"
	VoiceStem          Stem = "voice"
	StringsStem        Stem = "strings"
	WindStem           Stem = "wind"
)

// AllStems lists every label the separation service can extract, in the
// order the service documents them.
var AllStems = []Stem{
	VocalsStem,
	DrumStem,
	BassStem,
	PianoStem,
	ElectricGuitarStem,
	AcousticGuitarStem,
	SynthesizerStem,
	VoiceStem,
	StringsStem,
	WindStem,
}

func (s Stem) IsValid() bool {
	for _, known := range AllStems {
		if s == known {
			return true
		}
	}

	return false
}

func ConvertToStem(val string) (Stem, error) {
	stem := Stem(val)
	if !stem.IsValid() {
		return InvalidStem, ValidationError{Field: StemsField, Value: val}
	}

	return stem, nil
}

// ConvertToStems converts a list of labels, attributing a failure to field.
func ConvertToStems(field RequestField, vals []string) ([]Stem, error) {
	stems := make([]Stem, 0, len(vals))
	for _, val := range vals {
		stem := Stem(val)
		if !stem.IsValid() {
			return nil, ValidationError{Field: field, Value: val}
		}
		stems = append(stems, stem)
	}

	return stems, nil
}

// FindInvalidStem returns the first label that is not a known stem.
func FindInvalidStem(stems []Stem) (Stem, bool) {
	for _, stem := range stems {
		if !stem.IsValid() {
			return stem, true
		}
	}

	return InvalidStem, false
}

func ContainsStem(stems []Stem, target Stem) bool {
	for _, stem := range stems {
		if stem == target {
			return true
		}
	}

	return false
}
