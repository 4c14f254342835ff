//go:build tinygo

package critical

import "runtime/interrupt"

// Section guards state touched from both contexts. On TinyGo it disables
// interrupts, so it must not be held across blocking calls.
type Section struct {
	state interrupt.State
}

// Enter disables interrupts, remembering the previous state.
func (s *Section) Enter() {
	state := interrupt.Disable()
	s.state = state
}

// Exit restores the interrupt state saved by Enter.
func (s *Section) Exit() {
	interrupt.Restore(s.state)
}
