/*
guards.go - Temporal validation shared by the four record stores

PURPOSE:
  The domain guards are pure functions of heights: a coverage window must be
  ordered, an expiry must lie strictly beyond the current clock, and an
  extension must move strictly forward. All of them fail with ErrExpired so
  callers see one code (103) for every temporal violation.
*/
package generic

// EnsureWindow validates a coverage window. The window is half-open in
// spirit: start must be strictly before end.
func EnsureWindow(start, end Height) error {
	if start >= end {
		return ErrExpired
	}
	return nil
}

// EnsureFuture validates an expiry stamped at grant/request time: it must be
// strictly greater than the current height.
func EnsureFuture(expiry, now Height) error {
	if expiry <= now {
		return ErrExpired
	}
	return nil
}

// EnsureExtends validates an expiry extension. The double guard is
// intentional: a new expiry at or below the clock and a new expiry at or
// below the stored one both fail, with the same error kind.
func EnsureExtends(newExpiry, current, now Height) error {
	if newExpiry <= now || newExpiry <= current {
		return ErrExpired
	}
	return nil
}
