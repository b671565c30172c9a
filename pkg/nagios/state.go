package nagios

// State classifies a monitored entity. Hosts use Up/Down/Unreachable,
// services use OK/Warning/Critical/Unknown; Pending marks entities that
// never received a status record.
type State int

const (
	StatePending State = iota
	StateOK
	StateWarning
	StateCritical
	StateUnknown
	StateDown
	StateUnreachable
)

var stateNames = map[State]string{
	StatePending:     "PENDING",
	StateOK:          "OK",
	StateWarning:     "WARNING",
	StateCritical:    "CRITICAL",
	StateUnknown:     "UNKNOWN",
	StateDown:        "DOWN",
	StateUnreachable: "UNREACHABLE",
}

// String returns the conventional upper-case state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return "INVALID"
}

// hostStates maps numeric host states from status records.
var hostStates = map[int]State{
	0: StateOK,
	1: StateDown,
	2: StateUnreachable,
}

// serviceStates maps numeric service states from status records.
var serviceStates = map[int]State{
	0: StateOK,
	1: StateWarning,
	2: StateCritical,
	3: StateUnknown,
}

// hostProblemStates orders the non-ok host buckets for reports.
var hostProblemStates = []State{StateDown, StateUnreachable}

// serviceProblemStates orders the non-ok service buckets for reports.
var serviceProblemStates = []State{StateCritical, StateWarning, StateUnknown}
