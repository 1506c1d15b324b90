package entity

import (
	"fmt"
	"strconv"
	"strings"
)

type FilterLevel int

const (
	MildFilter       FilterLevel = 0
	NormalFilter     FilterLevel = 1
	AggressiveFilter FilterLevel = 2

	DefaultFilter = NormalFilter
)

var filterNames = map[FilterLevel]string{
	MildFilter:       "mild",
	NormalFilter:     "normal",
	AggressiveFilter: "aggressive",
}

func (f FilterLevel) IsValid() bool {
	_, ok := filterNames[f]
	return ok
}

func (f FilterLevel) String() string {
	if name, ok := filterNames[f]; ok {
		return name
	}

	return fmt.Sprintf("filter(%d)", int(f))
}

// FormValue is the representation the split endpoint expects.
func (f FilterLevel) FormValue() string {
	return strconv.Itoa(int(f))
}

// ConvertToFilterLevel accepts either the numeric level or its name.
func ConvertToFilterLevel(val string) (FilterLevel, error) {
	trimmed := strings.ToLower(strings.TrimSpace(val))

	if level, err := strconv.Atoi(trimmed); err == nil {
		if FilterLevel(level).IsValid() {
			return FilterLevel(level), nil
		}
		return DefaultFilter, ValidationError{Field: FilterField, Value: val}
	}

	for level, name := range filterNames {
		if name == trimmed {
			return level, nil
		}
	}

	return DefaultFilter, ValidationError{Field: FilterField, Value: val}
}

type Network string

const (
	InvalidNetwork    Network = ""
	PhoenixNetwork    Network = "phoenix"
	CassiopeiaNetwork Network = "cassiopeia"

	DefaultNetwork = PhoenixNetwork
)

func (n Network) IsValid() bool {
	return n == PhoenixNetwork || n == CassiopeiaNetwork
}

func ConvertToNetwork(val string) (Network, error) {
	network := Network(strings.ToLower(strings.TrimSpace(val)))
	if !network.IsValid() {
		return InvalidNetwork, ValidationError{Field: NetworkField, Value: val}
	}

	return network, nil
}
