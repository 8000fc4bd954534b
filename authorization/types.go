// Package authorization implements the treatment authorization store.
// It instantiates the generic record-store pattern with a four-state status
// machine: requests start pending and an admin moves them to approved,
// denied, or completed.
package authorization

import "github.com/caremesh/record-engine/generic"

// =============================================================================
// STATUS
// =============================================================================

// Status is the authorization lifecycle state.
type Status string

const (
	StatusPending   Status = "pending" // initial only, never a transition target
	StatusApproved  Status = "approved"
	StatusDenied    Status = "denied"
	StatusCompleted Status = "completed"
)

// ValidTarget reports whether s may be the target of an explicit status
// change. Pending is excluded: it is set at request time only. Nothing here
// forbids re-invoking a change on an already-terminal status; no stricter
// machine is enforced than the wire contract requires.
func (s Status) ValidTarget() bool {
	switch s {
	case StatusApproved, StatusDenied, StatusCompleted:
		return true
	}
	return false
}

// =============================================================================
// AUTHORIZATION RECORD
// =============================================================================

// Authorization is an immutable value snapshot of a treatment authorization.
type Authorization struct {
	ID            generic.RecordID  `json:"id"`
	PatientID     generic.SubjectID `json:"patient_id"`
	ProviderID    string            `json:"provider_id"`
	TreatmentCode string            `json:"treatment_code"`
	Description   string            `json:"description"`

	// PolicyID references an insurance policy as an opaque string. The store
	// never dereferences it; cross-store consistency is out of scope.
	PolicyID string `json:"policy_id"`

	ExpiresAt generic.Height `json:"expires_at"`
	Status    Status         `json:"status"`

	// Provenance, immutable after request.
	RequestedBy generic.Identity `json:"requested_by"`
	RequestedAt generic.Height   `json:"requested_at"`
}

// ValidAt reports whether the authorization holds at the given height:
// approved and not expired. Pure function of the snapshot.
func (a Authorization) ValidAt(now generic.Height) bool {
	return a.Status == StatusApproved && a.ExpiresAt.AtOrAfter(now)
}
