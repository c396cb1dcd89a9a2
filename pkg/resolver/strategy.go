package resolver

import "fmt"

// Strategy identifies which rule produced a match. Lower values win.
type Strategy int

// Strategies in priority order.
const (
	ExactID Strategy = iota
	BridgeName
	FilenameContainment
	None
)

var strategyNames = [...]string{
	ExactID:             "EXACT_ID",
	BridgeName:          "BRIDGE_NAME",
	FilenameContainment: "FILENAME_CONTAINMENT",
	None:                "NONE",
}

// Strategies lists every strategy in priority order.
func Strategies() []Strategy {
	return []Strategy{ExactID, BridgeName, FilenameContainment, None}
}

// String returns the strategy name.
func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	for i, name := range strategyNames {
		if name == string(text) {
			*s = Strategy(i)
			return nil
		}
	}
	return fmt.Errorf("unknown match strategy %q", text)
}
