// Package guard holds the ownership flags behind every exclusive peripheral
// handle. Execution is single threaded, but the flags are still
// compare-and-swap so a fault handler re-entering a constructor cannot slip
// past a half-finished acquisition.
package guard

import "sync/atomic"

// Flag guards a singleton peripheral block.
type Flag struct{ held atomic.Bool }

// Acquire takes the flag and reports whether it was free.
func (f *Flag) Acquire() bool { return f.held.CompareAndSwap(false, true) }

// Release frees the flag.
func (f *Flag) Release() { f.held.Store(false) }

// Held reports whether the flag is taken.
func (f *Flag) Held() bool { return f.held.Load() }

// Set32 is 32 independent locks packed into one word, one per port pin.
type Set32 struct{ bits atomic.Uint32 }

// Acquire takes lock i and reports whether it was free. i must be < 32.
func (s *Set32) Acquire(i uint8) bool {
	m := uint32(1) << i
	for {
		old := s.bits.Load()
		if old&m != 0 {
			return false
		}
		if s.bits.CompareAndSwap(old, old|m) {
			return true
		}
	}
}

// Release frees lock i.
func (s *Set32) Release(i uint8) {
	m := uint32(1) << i
	for {
		old := s.bits.Load()
		if s.bits.CompareAndSwap(old, old&^m) {
			return
		}
	}
}

// Held reports whether lock i is taken.
func (s *Set32) Held(i uint8) bool { return s.bits.Load()&(uint32(1)<<i) != 0 }

// Any reports whether any lock is taken.
func (s *Set32) Any() bool { return s.bits.Load() != 0 }
