package gate

// Kind names a whole-system exclusive operation.
type Kind int

const (
	Startup Kind = iota
	Shutdown
	TrainingStopSave
	GameResetSave
	UIRead
	ManualFlush
)

// String returns the reporting name of the kind.
func (k Kind) String() string {
	switch k {
	case Startup:
		return "startup"
	case Shutdown:
		return "shutdown"
	case TrainingStopSave:
		return "training_stop_save"
	case GameResetSave:
		return "game_reset_save"
	case UIRead:
		return "ui_read"
	case ManualFlush:
		return "manual_flush"
	default:
		return "unknown"
	}
}

// State is the gate's arbitration state.
type State int

const (
	// StateIdle admits new shared operations.
	StateIdle State = iota
	// StateDraining waits for admitted shared operations and unit
	// quiescence; new shared operations block.
	StateDraining
	// StateExclusiveActive runs the exclusive body; new shared operations
	// still block.
	StateExclusiveActive
)

// String returns the reporting name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateExclusiveActive:
		return "exclusive_active"
	default:
		return "unknown"
	}
}
