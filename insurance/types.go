// Package insurance implements the insurance policy store.
// It instantiates the generic record-store pattern with admin-only mutation,
// a coverage window validated at create and update, and a patient-ownership
// secondary index.
package insurance

import (
	"github.com/shopspring/decimal"

	"github.com/caremesh/record-engine/generic"
)

// =============================================================================
// POLICY RECORD
// =============================================================================

// Policy is an immutable value snapshot of an insurance policy record.
type Policy struct {
	ID           generic.RecordID  `json:"id"`
	PatientID    generic.SubjectID `json:"patient_id"` // opaque reference, not dereferenced
	Provider     string            `json:"provider"`
	PolicyNumber string            `json:"policy_number"`

	// Coverage window in logical heights. Invariant: start < end, enforced
	// at creation and on every update.
	CoverageStart generic.Height `json:"coverage_start"`
	CoverageEnd   generic.Height `json:"coverage_end"`

	// CoverageAmount is the monetary ceiling. decimal avoids float drift on
	// money values.
	CoverageAmount decimal.Decimal `json:"coverage_amount"`

	// Active is the soft-state flag; deactivation never removes the record.
	Active bool `json:"active"`

	// Provenance, immutable after creation.
	AddedBy generic.Identity `json:"added_by"`
	AddedAt generic.Height   `json:"added_at"`
}

// Covers reports whether the policy is valid at the given height:
// active and coverage not yet ended. Pure function of the snapshot.
func (p Policy) Covers(now generic.Height) bool {
	return p.Active && p.CoverageEnd.AtOrAfter(now)
}
