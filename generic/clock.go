/*
clock.go - Logical clock (block height) supplied by the host environment

PURPOSE:
  All temporal checks in the engine compare stored heights against a current
  height supplied from outside. The engine only reads the clock; nothing in
  this repository advances it as a side effect of a record operation.

IMPLEMENTATIONS:
  Manual: a settable monotonic counter. Used by tests, and by the dev server
  where an optional ticker plays the role of block production.

SEE ALSO:
  - guards.go: Expiry/window checks against the clock
*/
package generic

import "sync"

// Clock supplies the current logical height. Implementations must be
// monotonic: successive calls never observe a decreasing height.
type Clock interface {
	Height() Height
}

// =============================================================================
// MANUAL CLOCK - Host-driven monotonic counter
// =============================================================================

// Manual is a Clock advanced explicitly by the host. Attempts to move it
// backwards are ignored, preserving monotonicity.
type Manual struct {
	mu sync.RWMutex
	h  Height
}

// NewManual creates a manual clock starting at the given height.
func NewManual(start Height) *Manual {
	return &Manual{h: start}
}

// Height returns the current height.
func (m *Manual) Height() Height {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.h
}

// Advance moves the clock forward by n and returns the new height.
func (m *Manual) Advance(n Height) Height {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.h += n
	return m.h
}

// SetAtLeast raises the clock to h if h is ahead of it. Lower values are
// ignored.
func (m *Manual) SetAtLeast(h Height) Height {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h > m.h {
		m.h = h
	}
	return m.h
}

// FixedClock is a Clock pinned to one height. Test helper.
type FixedClock Height

func (f FixedClock) Height() Height { return Height(f) }
