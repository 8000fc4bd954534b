// Package consent implements the data-sharing consent store.
// It instantiates the generic record-store pattern with granter-owned
// records, an expiry height, and a one-way revocation flag.
package consent

import "github.com/caremesh/record-engine/generic"

// =============================================================================
// CONSENT RECORD
// =============================================================================

// Consent is an immutable value snapshot of a data-sharing consent.
type Consent struct {
	ID         generic.RecordID  `json:"id"`
	PatientID  generic.SubjectID `json:"patient_id"`
	ProviderID string            `json:"provider_id"` // opaque reference, not dereferenced
	Purpose    string            `json:"purpose"`

	// ExpiresAt must be strictly beyond the clock at grant time, and every
	// extension must move it strictly forward.
	ExpiresAt generic.Height `json:"expires_at"`

	// Revoked is one-way: there is no un-revoke, unlike the reactivation
	// path on patients and policies.
	Revoked bool `json:"revoked"`

	// Provenance, immutable after grant. GrantedBy is the granter, who holds
	// elevated rights over this record.
	GrantedBy generic.Identity `json:"granted_by"`
	GrantedAt generic.Height   `json:"granted_at"`
}

// ValidAt reports whether the consent holds at the given height: not revoked
// and not yet expired. Pure function of the snapshot.
func (c Consent) ValidAt(now generic.Height) bool {
	return !c.Revoked && c.ExpiresAt.AtOrAfter(now)
}
