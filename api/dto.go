/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

RETURN CONVENTION:
  Mutating endpoints return {"ok": true} on success or
  {"ok": false, "code": N, "error": "..."} with the stable wire code on
  failure. Read endpoints return the record (404 body for absence), a
  boolean wrapper, or a list - never a coded failure.

VALIDATION:
  Validation is done in handlers and domain packages, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/caremesh/record-engine/authorization"
	"github.com/caremesh/record-engine/consent"
	"github.com/caremesh/record-engine/generic"
	"github.com/caremesh/record-engine/insurance"
	"github.com/caremesh/record-engine/patient"
)

// =============================================================================
// RESULT WRAPPERS
// =============================================================================

// ResultDTO is the tagged result for mutating operations.
type ResultDTO struct {
	OK    bool   `json:"ok"`
	Code  int    `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// ValidityDTO wraps a validity evaluation.
type ValidityDTO struct {
	ID    string `json:"id"`
	Valid bool   `json:"valid"`
}

// OwnershipDTO wraps a secondary-index existence check.
type OwnershipDTO struct {
	PatientID string `json:"patient_id"`
	RecordID  string `json:"record_id"`
	Owned     bool   `json:"owned"`
}

// ClockDTO reports the current logical height.
type ClockDTO struct {
	Height uint64 `json:"height"`
}

// AdvanceClockRequest advances the dev clock by a number of heights.
type AdvanceClockRequest struct {
	By uint64 `json:"by"`
}

// TransferAdminRequest hands a store's admin role to a new identity.
type TransferAdminRequest struct {
	NewAdmin string `json:"new_admin"`
}

// =============================================================================
// PATIENT
// =============================================================================

// PatientDTO represents a patient in API responses.
type PatientDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DOB          string `json:"dob"`
	Active       bool   `json:"active"`
	RegisteredBy string `json:"registered_by"`
	RegisteredAt uint64 `json:"registered_at"`
}

func toPatientDTO(p *patient.Patient) PatientDTO {
	return PatientDTO{
		ID:           string(p.ID),
		Name:         p.Name,
		DOB:          p.DOB,
		Active:       p.Active,
		RegisteredBy: string(p.RegisteredBy),
		RegisteredAt: uint64(p.RegisteredAt),
	}
}

// RegisterPatientRequest creates a patient record.
type RegisterPatientRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	DOB  string `json:"dob"`
}

// UpdatePatientRequest replaces a patient's demographic fields.
type UpdatePatientRequest struct {
	Name string `json:"name"`
	DOB  string `json:"dob"`
}

// =============================================================================
// INSURANCE POLICY
// =============================================================================

// PolicyDTO represents an insurance policy in API responses.
// CoverageAmount travels as a string to keep decimal precision intact.
type PolicyDTO struct {
	ID             string `json:"id"`
	PatientID      string `json:"patient_id"`
	Provider       string `json:"provider"`
	PolicyNumber   string `json:"policy_number"`
	CoverageStart  uint64 `json:"coverage_start"`
	CoverageEnd    uint64 `json:"coverage_end"`
	CoverageAmount string `json:"coverage_amount"`
	Active         bool   `json:"active"`
	AddedBy        string `json:"added_by"`
	AddedAt        uint64 `json:"added_at"`
}

func toPolicyDTO(p *insurance.Policy) PolicyDTO {
	return PolicyDTO{
		ID:             string(p.ID),
		PatientID:      string(p.PatientID),
		Provider:       p.Provider,
		PolicyNumber:   p.PolicyNumber,
		CoverageStart:  uint64(p.CoverageStart),
		CoverageEnd:    uint64(p.CoverageEnd),
		CoverageAmount: p.CoverageAmount.String(),
		Active:         p.Active,
		AddedBy:        string(p.AddedBy),
		AddedAt:        uint64(p.AddedAt),
	}
}

// AddPolicyRequest creates an insurance policy record.
type AddPolicyRequest struct {
	ID             string `json:"id"`
	PatientID      string `json:"patient_id"`
	Provider       string `json:"provider"`
	PolicyNumber   string `json:"policy_number"`
	CoverageStart  uint64 `json:"coverage_start"`
	CoverageEnd    uint64 `json:"coverage_end"`
	CoverageAmount string `json:"coverage_amount,omitempty"`
}

// UpdatePolicyRequest replaces a policy's mutable fields.
type UpdatePolicyRequest struct {
	Provider       string `json:"provider"`
	PolicyNumber   string `json:"policy_number"`
	CoverageStart  uint64 `json:"coverage_start"`
	CoverageEnd    uint64 `json:"coverage_end"`
	CoverageAmount string `json:"coverage_amount,omitempty"`
}

// =============================================================================
// CONSENT
// =============================================================================

// ConsentDTO represents a consent in API responses.
type ConsentDTO struct {
	ID         string `json:"id"`
	PatientID  string `json:"patient_id"`
	ProviderID string `json:"provider_id"`
	Purpose    string `json:"purpose"`
	ExpiresAt  uint64 `json:"expires_at"`
	Revoked    bool   `json:"revoked"`
	GrantedBy  string `json:"granted_by"`
	GrantedAt  uint64 `json:"granted_at"`
}

func toConsentDTO(c *consent.Consent) ConsentDTO {
	return ConsentDTO{
		ID:         string(c.ID),
		PatientID:  string(c.PatientID),
		ProviderID: c.ProviderID,
		Purpose:    c.Purpose,
		ExpiresAt:  uint64(c.ExpiresAt),
		Revoked:    c.Revoked,
		GrantedBy:  string(c.GrantedBy),
		GrantedAt:  uint64(c.GrantedAt),
	}
}

// GrantConsentRequest creates a consent record.
type GrantConsentRequest struct {
	ID         string `json:"id"`
	PatientID  string `json:"patient_id"`
	ProviderID string `json:"provider_id"`
	Purpose    string `json:"purpose"`
	ExpiresAt  uint64 `json:"expires_at"`
}

// ExtendRequest moves a consent's or authorization's expiry forward.
type ExtendRequest struct {
	NewExpiry uint64 `json:"new_expiry"`
}

// =============================================================================
// AUTHORIZATION
// =============================================================================

// AuthorizationDTO represents a treatment authorization in API responses.
type AuthorizationDTO struct {
	ID            string `json:"id"`
	PatientID     string `json:"patient_id"`
	ProviderID    string `json:"provider_id"`
	TreatmentCode string `json:"treatment_code"`
	Description   string `json:"description"`
	PolicyID      string `json:"policy_id"`
	ExpiresAt     uint64 `json:"expires_at"`
	Status        string `json:"status"`
	RequestedBy   string `json:"requested_by"`
	RequestedAt   uint64 `json:"requested_at"`
}

func toAuthorizationDTO(a *authorization.Authorization) AuthorizationDTO {
	return AuthorizationDTO{
		ID:            string(a.ID),
		PatientID:     string(a.PatientID),
		ProviderID:    a.ProviderID,
		TreatmentCode: a.TreatmentCode,
		Description:   a.Description,
		PolicyID:      a.PolicyID,
		ExpiresAt:     uint64(a.ExpiresAt),
		Status:        string(a.Status),
		RequestedBy:   string(a.RequestedBy),
		RequestedAt:   uint64(a.RequestedAt),
	}
}

// RequestAuthorizationRequest creates an authorization record.
type RequestAuthorizationRequest struct {
	ID            string `json:"id"`
	PatientID     string `json:"patient_id"`
	ProviderID    string `json:"provider_id"`
	TreatmentCode string `json:"treatment_code"`
	Description   string `json:"description"`
	PolicyID      string `json:"policy_id"`
	ExpiresAt     uint64 `json:"expires_at"`
}

// UpdateStatusRequest changes an authorization's status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a demo scenario to load.
type LoadScenarioRequest struct {
	Name string `json:"name"`
}

// heightOf narrows a request field to the engine's height type.
func heightOf(v uint64) generic.Height { return generic.Height(v) }
