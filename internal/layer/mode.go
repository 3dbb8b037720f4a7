package layer

import (
	"fmt"
	"strings"
)

// InputMode selects which host layers are handed to a filter.
type InputMode int

// Input modes, numbered as the scripting side expects them.
const (
	InputNone InputMode = iota
	InputActive
	InputAll
	InputActiveAndBelow
	InputActiveAndAbove
	InputAllVisible
	InputAllInvisible
)

// DefaultInputMode is used when the caller does not choose one.
const DefaultInputMode = InputActive

var inputModeNames = [...]string{
	InputNone:           "none",
	InputActive:         "active",
	InputAll:            "all",
	InputActiveAndBelow: "active_and_below",
	InputActiveAndAbove: "active_and_above",
	InputAllVisible:     "all_visible",
	InputAllInvisible:   "all_invisible",
}

func (m InputMode) String() string {
	if m < 0 || int(m) >= len(inputModeNames) {
		return fmt.Sprintf("input(%d)", int(m))
	}

	return inputModeNames[m]
}

// Valid reports whether m is a known input mode.
func (m InputMode) Valid() bool { return m >= 0 && int(m) < len(inputModeNames) }

// ParseInputMode converts a mode name into an InputMode.
func ParseInputMode(s string) (InputMode, error) {
	for i, n := range inputModeNames {
		if strings.EqualFold(n, strings.TrimSpace(s)) {
			return InputMode(i), nil
		}
	}

	return 0, fmt.Errorf("unknown input mode %q (valid: %s)", s, strings.Join(inputModeNames[:], ", "))
}

// OutputMode selects how a filter's result is applied by the host.
type OutputMode int

// Output modes, numbered as the scripting side expects them.
const (
	OutputInPlace OutputMode = iota
	OutputNewLayers
	OutputNewActiveLayers
	OutputNewImage
)

// DefaultOutputMode is used when the caller does not choose one.
const DefaultOutputMode = OutputInPlace

var outputModeNames = [...]string{
	OutputInPlace:         "in_place",
	OutputNewLayers:       "new_layers",
	OutputNewActiveLayers: "new_active_layers",
	OutputNewImage:        "new_image",
}

func (m OutputMode) String() string {
	if m < 0 || int(m) >= len(outputModeNames) {
		return fmt.Sprintf("output(%d)", int(m))
	}

	return outputModeNames[m]
}

// Valid reports whether m is a known output mode.
func (m OutputMode) Valid() bool { return m >= 0 && int(m) < len(outputModeNames) }

// ParseOutputMode converts a mode name into an OutputMode.
func ParseOutputMode(s string) (OutputMode, error) {
	for i, n := range outputModeNames {
		if strings.EqualFold(n, strings.TrimSpace(s)) {
			return OutputMode(i), nil
		}
	}

	return 0, fmt.Errorf("unknown output mode %q (valid: %s)", s, strings.Join(outputModeNames[:], ", "))
}
