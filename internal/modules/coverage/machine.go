// README: Coverage state machine with independent entry/exit debounce counters.
package coverage

// AllowedTransitions represents the coverage flow as code. Each state has a
// single exit and the event it produces.
var AllowedTransitions = map[State]struct {
	To    State
	Event EventType
}{
	StateOutside: {To: StateInside, Event: EventEntry},
	StateInside:  {To: StateOutside, Event: EventExit},
}

// MachineState is the debounce portion of EngineState.
type MachineState struct {
	Coverage      State `json:"coverage"`
	ActiveTicks   int   `json:"active_ticks"`
	InactiveTicks int   `json:"inactive_ticks"`
}

// Machine applies hysteresis to the per-tick activity indicator. It holds
// configuration only; all state lives in MachineState.
type Machine struct {
	EntryTicks int
	ExitTicks  int
}

// Advance consumes one activity indicator and returns the next state. The
// returned event is empty unless the coverage state changed on this tick.
func (m Machine) Advance(st MachineState, active bool) (MachineState, EventType) {
	if st.Coverage == "" {
		st.Coverage = StateOutside
	}
	if active {
		st.ActiveTicks++
		st.InactiveTicks = 0
	} else {
		st.InactiveTicks++
		st.ActiveTicks = 0
	}

	if !m.due(st) {
		return st, ""
	}
	next := AllowedTransitions[st.Coverage]
	st.Coverage = next.To
	st.ActiveTicks = 0
	st.InactiveTicks = 0
	return st, next.Event
}

func (m Machine) due(st MachineState) bool {
	switch st.Coverage {
	case StateOutside:
		return st.ActiveTicks >= m.EntryTicks
	case StateInside:
		return st.InactiveTicks >= m.ExitTicks
	}
	return false
}
