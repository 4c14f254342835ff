//go:build !tinygo

// Package critical provides the short critical sections shared between
// handler context (pin interrupts, edge event goroutines) and the main loop.
package critical

import "sync"

// Section guards state touched from both contexts. The zero value is ready
// to use. Keep the guarded code short: on microcontrollers it runs with
// interrupts disabled.
type Section struct {
	mu sync.Mutex
}

// Enter starts the critical section.
func (s *Section) Enter() {
	s.mu.Lock()
}

// Exit ends the critical section started by Enter.
func (s *Section) Exit() {
	s.mu.Unlock()
}
