// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

// Yet another (braille) spinner.

package main

import (
	"sync"
)

// spinner is yet another blindingly simple spinner; just enough to get the job
// done, no bells, no frills. It advances one phase per Advance call, so that
// it spins in lockstep with the progress display.
type spinner struct {
	mu     sync.Mutex
	phases []string
	phase  int
}

// newSpinner returns a new spinner in its first phase.
func newSpinner() *spinner {
	phases := []string{}
	for _, r := range "⠉⠘⠰⠤⠆⠃" {
		phases = append(phases, string(r)+" ")
	}
	return &spinner{phases: phases}
}

// Spinner returns the spinner string for the current phase.
func (s *spinner) Spinner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phases[s.phase]
}

// Advance the spinner to its next phase, wrapping around after the last
// phase.
func (s *spinner) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = (s.phase + 1) % len(s.phases)
}
