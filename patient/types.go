// Package patient implements the patient identity registry.
// It instantiates the generic record-store pattern with patient records:
// open registration, admin-or-owner mutation, and a soft active flag.
package patient

import "github.com/caremesh/record-engine/generic"

// =============================================================================
// PATIENT RECORD
// =============================================================================

// Patient is an immutable value snapshot of a patient record. Updates build
// a new snapshot with the mutable fields replaced and store it whole.
type Patient struct {
	ID   generic.RecordID `json:"id"`
	Name string           `json:"name"`
	DOB  string           `json:"dob"` // YYYY-MM-DD, not interpreted by the engine

	// Active is the soft-state flag. Deactivation never removes the record.
	Active bool `json:"active"`

	// Provenance, immutable after registration.
	RegisteredBy generic.Identity `json:"registered_by"`
	RegisteredAt generic.Height   `json:"registered_at"`
}

// Patient has no expiry and therefore no validity evaluator; callers read
// Active directly.
