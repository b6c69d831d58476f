package types

import "fmt"

// State is a step of the per-invocation orchestrator state machine.
type State int

const (
	StateIdle State = iota
	StateLockAcquired
	StateScanning
	StateCopying
	StateMarkerWritten
	StateRollingBack
	StateLockReleased
	StateLockConflict
)

var stateNames = map[State]string{
	StateIdle:          "idle",
	StateLockAcquired:  "lock-acquired",
	StateScanning:      "scanning",
	StateCopying:       "copying",
	StateMarkerWritten: "marker-written",
	StateRollingBack:   "rolling-back",
	StateLockReleased:  "lock-released",
	StateLockConflict:  "lock-conflict",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateMarkerWritten || s == StateLockReleased || s == StateLockConflict
}

// CanTransition reports whether the machine may move from s to next.
//
//	Idle -> LockAcquired -> Scanning -> Copying -> MarkerWritten
//	Idle -> LockConflict
//	any non-Idle, non-terminal state -> RollingBack -> LockReleased
func (s State) CanTransition(next State) bool {
	switch next {
	case StateLockAcquired, StateLockConflict:
		return s == StateIdle
	case StateScanning:
		return s == StateLockAcquired
	case StateCopying:
		return s == StateScanning
	case StateMarkerWritten:
		return s == StateCopying
	case StateRollingBack:
		return s != StateIdle && !s.Terminal() && s != StateRollingBack
	case StateLockReleased:
		return s == StateRollingBack
	}
	return false
}
