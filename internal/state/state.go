// Package state tracks the operator's active multi-step flow. Exactly
// one flow can be open at a time; starting a new one displaces whatever
// was in progress.
package state

import "sync"

// Flow names the multi-step operator interaction in progress.
type Flow int

const (
	Idle Flow = iota
	AwaitingBroadcast
	AwaitingCatalogText
	AwaitingBanID
	AwaitingUnbanID
)

// String returns a short operator-facing name for the flow.
func (f Flow) String() string {
	switch f {
	case AwaitingBroadcast:
		return "broadcast"
	case AwaitingCatalogText:
		return "catalog edit"
	case AwaitingBanID:
		return "ban"
	case AwaitingUnbanID:
		return "unban"
	default:
		return "idle"
	}
}

// Machine is the single-operator conversation state. Safe for concurrent
// use; all transitions are atomic under one mutex.
type Machine struct {
	mu   sync.Mutex
	flow Flow
}

// NewMachine returns a Machine in the Idle state.
func NewMachine() *Machine {
	return &Machine{}
}

// Current returns the active flow.
func (m *Machine) Current() Flow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flow
}

// Begin switches to flow and returns the flow it displaced, so callers
// can tell the operator what was silently cancelled. Returns Idle when
// nothing was in progress.
func (m *Machine) Begin(flow Flow) Flow {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.flow
	m.flow = flow
	return prev
}

// Finish clears the flow only if it is still the given one, so a flow
// displaced mid-step cannot clear its successor.
func (m *Machine) Finish(flow Flow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flow == flow {
		m.flow = Idle
	}
}

// Cancel unconditionally resets to Idle and returns the flow that was
// abandoned.
func (m *Machine) Cancel() Flow {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.flow
	m.flow = Idle
	return prev
}
