package coordinator

// State is the lifecycle position of a run.
type State int

const (
	StateIdle State = iota
	StateParsing
	StateMatching
	StatePostprocessing
	StateFormatting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateParsing:
		return "parsing"
	case StateMatching:
		return "matching"
	case StatePostprocessing:
		return "postprocessing"
	case StateFormatting:
		return "formatting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Phase labels carried by progress message events.
const (
	PhaseParsing        = "parsing"
	PhaseSynchronizing  = "synchronizing"
	PhasePostprocessing = "postprocessing"
	PhaseFormatting     = "formatting"
	PhaseFinished       = "finished"
)
