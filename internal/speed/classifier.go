package speed

// closeMargin is how far under the limit the speed may rise before the
// display warns the user.
const closeMargin = 5

// State classifies the current speed relative to the configured limit.
type State int

const (
	Below State = iota
	Close
	Above
)

// stateColors maps each state to its display color token. Classification is
// kept separate from presentation; this table is the only coupling point.
var stateColors = map[State]string{
	Below: "#00e676", // green
	Close: "#ffea00", // yellow
	Above: "#ff1744", // red
}

// String returns the state name.
func (s State) String() string {
	switch s {
	case Below:
		return "below"
	case Close:
		return "close"
	case Above:
		return "above"
	default:
		return "unknown"
	}
}

// Color returns the display color token for the state.
func (s State) Color() string {
	return stateColors[s]
}

// Classify maps a unit-converted speed and a limit into a State.
func Classify(speed float64, limit int) State {
	switch {
	case speed <= float64(limit-closeMargin):
		return Below
	case speed <= float64(limit):
		return Close
	default:
		return Above
	}
}
