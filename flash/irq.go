package flash

import "sync"

// State is the saved interrupt state returned by Disable.
type State uint32

// Interrupts suppresses everything that could run concurrently with a flash
// erase or program. While flash is being erased or programmed it cannot be
// read, so nothing else may touch it until Restore.
type Interrupts interface {
	Disable() State
	Restore(State)
}

// Mutex is the host stand-in for save_and_disable_interrupts: code that
// plays the part of an interrupt handler enters the same lock.
type Mutex struct {
	mu sync.Mutex
}

func (m *Mutex) Disable() State {
	m.mu.Lock()
	return 1
}

func (m *Mutex) Restore(State) {
	m.mu.Unlock()
}
