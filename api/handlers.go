/*
handlers.go - HTTP API handlers for the healthcare coordination record engine

PURPOSE:
  Exposes the four record stores via REST. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Patients:
    GET    /api/patients                 List patients
    POST   /api/patients                 Register patient
    GET    /api/patients/{id}            Get patient
    PUT    /api/patients/{id}            Update demographics
    POST   /api/patients/{id}/deactivate Soft-deactivate
    POST   /api/patients/{id}/reactivate Reactivate
    POST   /api/patients/admin/transfer  Transfer store admin

  Policies:
    GET    /api/policies, POST /api/policies, GET/PUT /api/policies/{id}
    GET    /api/policies/{id}/coverage              Validity at current height
    GET    /api/policies/{id}/ownership/{patientID} Secondary-index check
    POST   /api/policies/{id}/deactivate|reactivate
    POST   /api/policies/admin/transfer

  Consents:
    GET/POST /api/consents, GET /api/consents/{id}
    GET    /api/consents/{id}/verify
    GET    /api/consents/{id}/ownership/{patientID}
    POST   /api/consents/{id}/revoke | /extend
    POST   /api/consents/admin/transfer

  Authorizations:
    GET/POST /api/authorizations, GET /api/authorizations/{id}
    GET    /api/authorizations/{id}/verify
    GET    /api/authorizations/{id}/ownership/{patientID}
    POST   /api/authorizations/{id}/status | /extend
    POST   /api/authorizations/admin/transfer

  Clock:
    GET    /api/clock           Current height
    POST   /api/clock/advance   Advance the dev clock

CALLER IDENTITY:
  The host environment supplies the caller; over HTTP that is the
  X-Caller-ID header. No cryptographic authentication happens here - the
  engine compares identities, the deployment authenticates them.

ERROR HANDLING:
  Coded domain failures map to HTTP statuses but always carry the stable
  wire code in the body:
    100 Unauthorized  -> 403
    101 AlreadyExists -> 409
    102 NotFound      -> 404
    103 Expired       -> 400
    104 InvalidStatus/Revoked -> 409

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/caremesh/record-engine/authorization"
	"github.com/caremesh/record-engine/factory"
	"github.com/caremesh/record-engine/generic"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *factory.Engine
	Log    *zap.Logger
}

// NewHandler creates a new handler around a wired engine.
func NewHandler(engine *factory.Engine, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Engine: engine, Log: log}
}

// caller extracts the host-supplied caller identity.
func caller(r *http.Request) generic.Identity {
	return generic.Identity(r.Header.Get("X-Caller-ID"))
}

// =============================================================================
// PATIENT HANDLERS
// =============================================================================

// RegisterPatient creates a patient record.
func (h *Handler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	var req RegisterPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	err := h.Engine.Patients.Register(r.Context(), caller(r), generic.RecordID(req.ID), req.Name, req.DOB)
	h.finishMutation(w, generic.KindPatient, "register", req.ID, err)
}

// GetPatient returns a single patient.
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id := generic.RecordID(chi.URLParam(r, "id"))
	p, err := h.Engine.Patients.Get(r.Context(), id)
	if err != nil {
		writeInternal(w, h.Log, "get patient", err)
		return
	}
	if p == nil {
		writeNotFoundBody(w, "Patient not found")
		return
	}
	writeJSON(w, http.StatusOK, toPatientDTO(p))
}

// ListPatients returns all patients.
func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.Engine.Patients.List(r.Context())
	if err != nil {
		writeListError(w, h.Log, "list patients", err)
		return
	}
	dtos := make([]PatientDTO, len(patients))
	for i := range patients {
		dtos[i] = toPatientDTO(&patients[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdatePatient replaces a patient's demographic fields.
func (h *Handler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	err := h.Engine.Patients.Update(r.Context(), caller(r), generic.RecordID(id), req.Name, req.DOB)
	h.finishMutation(w, generic.KindPatient, "update", id, err)
}

// DeactivatePatient soft-deactivates a patient.
func (h *Handler) DeactivatePatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.Engine.Patients.Deactivate(r.Context(), caller(r), generic.RecordID(id))
	h.finishMutation(w, generic.KindPatient, "deactivate", id, err)
}

// ReactivatePatient reactivates a patient.
func (h *Handler) ReactivatePatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.Engine.Patients.Reactivate(r.Context(), caller(r), generic.RecordID(id))
	h.finishMutation(w, generic.KindPatient, "reactivate", id, err)
}

// TransferPatientAdmin hands the patient store's admin role over.
func (h *Handler) TransferPatientAdmin(w http.ResponseWriter, r *http.Request) {
	var req TransferAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	err := h.Engine.Patients.TransferAdmin(r.Context(), caller(r), generic.Identity(req.NewAdmin))
	h.finishMutation(w, generic.KindPatient, "transfer-admin", req.NewAdmin, err)
}

// =============================================================================
// INSURANCE POLICY HANDLERS
// =============================================================================

// AddPolicy creates an insurance policy record. Admin-only.
func (h *Handler) AddPolicy(w http.ResponseWriter, r *http.Request) {
	var req AddPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	amount := decimal.Zero
	if req.CoverageAmount != "" {
		var err error
		amount, err = decimal.NewFromString(req.CoverageAmount)
		if err != nil {
			writeBadRequest(w, "Invalid coverage_amount")
			return
		}
	}
	err := h.Engine.Policies.Add(r.Context(), caller(r),
		generic.RecordID(req.ID), generic.SubjectID(req.PatientID),
		req.Provider, req.PolicyNumber,
		heightOf(req.CoverageStart), heightOf(req.CoverageEnd), amount)
	h.finishMutation(w, generic.KindPolicy, "add", req.ID, err)
}

// GetPolicy returns a single insurance policy.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	id := generic.RecordID(chi.URLParam(r, "id"))
	p, err := h.Engine.Policies.Get(r.Context(), id)
	if err != nil {
		writeInternal(w, h.Log, "get policy", err)
		return
	}
	if p == nil {
		writeNotFoundBody(w, "Policy not found")
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(p))
}

// ListPolicies returns all insurance policies.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Engine.Policies.List(r.Context())
	if err != nil {
		writeListError(w, h.Log, "list policies", err)
		return
	}
	dtos := make([]PolicyDTO, len(policies))
	for i := range policies {
		dtos[i] = toPolicyDTO(&policies[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// VerifyCoverage evaluates policy validity at the current height.
func (h *Handler) VerifyCoverage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	valid, err := h.Engine.Policies.VerifyCoverage(r.Context(), generic.RecordID(id))
	if err != nil {
		writeInternal(w, h.Log, "verify coverage", err)
		return
	}
	writeJSON(w, http.StatusOK, ValidityDTO{ID: id, Valid: valid})
}

// PolicyOwnership checks the (patient, policy) secondary-index entry.
func (h *Handler) PolicyOwnership(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	patientID := chi.URLParam(r, "patientID")
	owned, err := h.Engine.Policies.IsPatientPolicy(r.Context(),
		generic.SubjectID(patientID), generic.RecordID(id))
	if err != nil {
		writeInternal(w, h.Log, "policy ownership", err)
		return
	}
	writeJSON(w, http.StatusOK, OwnershipDTO{PatientID: patientID, RecordID: id, Owned: owned})
}

// UpdatePolicy replaces a policy's mutable fields. Admin-only.
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	amount := decimal.Zero
	if req.CoverageAmount != "" {
		var err error
		amount, err = decimal.NewFromString(req.CoverageAmount)
		if err != nil {
			writeBadRequest(w, "Invalid coverage_amount")
			return
		}
	}
	err := h.Engine.Policies.Update(r.Context(), caller(r), generic.RecordID(id),
		req.Provider, req.PolicyNumber,
		heightOf(req.CoverageStart), heightOf(req.CoverageEnd), amount)
	h.finishMutation(w, generic.KindPolicy, "update", id, err)
}

// DeactivatePolicy soft-deactivates a policy. Admin-only.
func (h *Handler) DeactivatePolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.Engine.Policies.Deactivate(r.Context(), caller(r), generic.RecordID(id))
	h.finishMutation(w, generic.KindPolicy, "deactivate", id, err)
}

// ReactivatePolicy reactivates a policy. Admin-only.
func (h *Handler) ReactivatePolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.Engine.Policies.Reactivate(r.Context(), caller(r), generic.RecordID(id))
	h.finishMutation(w, generic.KindPolicy, "reactivate", id, err)
}

// TransferPolicyAdmin hands the policy store's admin role over.
func (h *Handler) TransferPolicyAdmin(w http.ResponseWriter, r *http.Request) {
	var req TransferAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	err := h.Engine.Policies.TransferAdmin(r.Context(), caller(r), generic.Identity(req.NewAdmin))
	h.finishMutation(w, generic.KindPolicy, "transfer-admin", req.NewAdmin, err)
}

// =============================================================================
// CONSENT HANDLERS
// =============================================================================

// GrantConsent creates a consent record; the caller becomes the granter.
func (h *Handler) GrantConsent(w http.ResponseWriter, r *http.Request) {
	var req GrantConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	err := h.Engine.Consents.Grant(r.Context(), caller(r),
		generic.RecordID(req.ID), generic.SubjectID(req.PatientID),
		req.ProviderID, req.Purpose, heightOf(req.ExpiresAt))
	h.finishMutation(w, generic.KindConsent, "grant", req.ID, err)
}

// GetConsent returns a single consent.
func (h *Handler) GetConsent(w http.ResponseWriter, r *http.Request) {
	id := generic.RecordID(chi.URLParam(r, "id"))
	c, err := h.Engine.Consents.Get(r.Context(), id)
	if err != nil {
		writeInternal(w, h.Log, "get consent", err)
		return
	}
	if c == nil {
		writeNotFoundBody(w, "Consent not found")
		return
	}
	writeJSON(w, http.StatusOK, toConsentDTO(c))
}

// ListConsents returns all consents.
func (h *Handler) ListConsents(w http.ResponseWriter, r *http.Request) {
	consents, err := h.Engine.Consents.List(r.Context())
	if err != nil {
		writeListError(w, h.Log, "list consents", err)
		return
	}
	dtos := make([]ConsentDTO, len(consents))
	for i := range consents {
		dtos[i] = toConsentDTO(&consents[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// VerifyConsent evaluates consent validity at the current height.
func (h *Handler) VerifyConsent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	valid, err := h.Engine.Consents.Verify(r.Context(), generic.RecordID(id))
	if err != nil {
		writeInternal(w, h.Log, "verify consent", err)
		return
	}
	writeJSON(w, http.StatusOK, ValidityDTO{ID: id, Valid: valid})
}

// ConsentOwnership checks the (patient, consent) secondary-index entry.
func (h *Handler) ConsentOwnership(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	patientID := chi.URLParam(r, "patientID")
	owned, err := h.Engine.Consents.IsPatientConsent(r.Context(),
		generic.SubjectID(patientID), generic.RecordID(id))
	if err != nil {
		writeInternal(w, h.Log, "consent ownership", err)
		return
	}
	writeJSON(w, http.StatusOK, OwnershipDTO{PatientID: patientID, RecordID: id, Owned: owned})
}

// RevokeConsent sets the one-way revoked flag. Admin or granter.
func (h *Handler) RevokeConsent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.Engine.Consents.Revoke(r.Context(), caller(r), generic.RecordID(id))
	h.finishMutation(w, generic.KindConsent, "revoke", id, err)
}

// ExtendConsent moves the expiry strictly forward. Granter only.
func (h *Handler) ExtendConsent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ExtendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	err := h.Engine.Consents.Extend(r.Context(), caller(r), generic.RecordID(id), heightOf(req.NewExpiry))
	h.finishMutation(w, generic.KindConsent, "extend", id, err)
}

// TransferConsentAdmin hands the consent store's admin role over.
func (h *Handler) TransferConsentAdmin(w http.ResponseWriter, r *http.Request) {
	var req TransferAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	err := h.Engine.Consents.TransferAdmin(r.Context(), caller(r), generic.Identity(req.NewAdmin))
	h.finishMutation(w, generic.KindConsent, "transfer-admin", req.NewAdmin, err)
}

// =============================================================================
// AUTHORIZATION HANDLERS
// =============================================================================

// RequestAuthorization creates a pending authorization record.
func (h *Handler) RequestAuthorization(w http.ResponseWriter, r *http.Request) {
	var req RequestAuthorizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	err := h.Engine.Authorizations.Request(r.Context(), caller(r),
		generic.RecordID(req.ID), generic.SubjectID(req.PatientID),
		req.ProviderID, req.TreatmentCode, req.Description, req.PolicyID,
		heightOf(req.ExpiresAt))
	h.finishMutation(w, generic.KindAuthorization, "request", req.ID, err)
}

// GetAuthorization returns a single authorization.
func (h *Handler) GetAuthorization(w http.ResponseWriter, r *http.Request) {
	id := generic.RecordID(chi.URLParam(r, "id"))
	a, err := h.Engine.Authorizations.Get(r.Context(), id)
	if err != nil {
		writeInternal(w, h.Log, "get authorization", err)
		return
	}
	if a == nil {
		writeNotFoundBody(w, "Authorization not found")
		return
	}
	writeJSON(w, http.StatusOK, toAuthorizationDTO(a))
}

// ListAuthorizations returns all authorizations.
func (h *Handler) ListAuthorizations(w http.ResponseWriter, r *http.Request) {
	auths, err := h.Engine.Authorizations.List(r.Context())
	if err != nil {
		writeListError(w, h.Log, "list authorizations", err)
		return
	}
	dtos := make([]AuthorizationDTO, len(auths))
	for i := range auths {
		dtos[i] = toAuthorizationDTO(&auths[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateAuthorizationStatus moves the status to approved/denied/completed.
// Admin-only.
func (h *Handler) UpdateAuthorizationStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	err := h.Engine.Authorizations.UpdateStatus(r.Context(), caller(r),
		generic.RecordID(id), authorization.Status(req.Status))
	h.finishMutation(w, generic.KindAuthorization, "update-status", id, err)
}

// VerifyAuthorization evaluates authorization validity at the current height.
func (h *Handler) VerifyAuthorization(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	valid, err := h.Engine.Authorizations.Verify(r.Context(), generic.RecordID(id))
	if err != nil {
		writeInternal(w, h.Log, "verify authorization", err)
		return
	}
	writeJSON(w, http.StatusOK, ValidityDTO{ID: id, Valid: valid})
}

// AuthorizationOwnership checks the (patient, authorization) index entry.
func (h *Handler) AuthorizationOwnership(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	patientID := chi.URLParam(r, "patientID")
	owned, err := h.Engine.Authorizations.IsPatientAuthorization(r.Context(),
		generic.SubjectID(patientID), generic.RecordID(id))
	if err != nil {
		writeInternal(w, h.Log, "authorization ownership", err)
		return
	}
	writeJSON(w, http.StatusOK, OwnershipDTO{PatientID: patientID, RecordID: id, Owned: owned})
}

// ExtendAuthorization moves the expiry strictly forward. Admin-only.
func (h *Handler) ExtendAuthorization(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ExtendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	err := h.Engine.Authorizations.Extend(r.Context(), caller(r), generic.RecordID(id), heightOf(req.NewExpiry))
	h.finishMutation(w, generic.KindAuthorization, "extend", id, err)
}

// TransferAuthorizationAdmin hands the authorization store's admin role over.
func (h *Handler) TransferAuthorizationAdmin(w http.ResponseWriter, r *http.Request) {
	var req TransferAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	err := h.Engine.Authorizations.TransferAdmin(r.Context(), caller(r), generic.Identity(req.NewAdmin))
	h.finishMutation(w, generic.KindAuthorization, "transfer-admin", req.NewAdmin, err)
}

// =============================================================================
// CLOCK HANDLERS
// =============================================================================

// GetClock reports the current logical height.
func (h *Handler) GetClock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ClockDTO{Height: uint64(h.Engine.Clock.Height())})
}

// AdvanceClock moves the dev clock forward. The clock never goes backwards.
func (h *Handler) AdvanceClock(w http.ResponseWriter, r *http.Request) {
	var req AdvanceClockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if req.By == 0 {
		req.By = 1
	}
	height := h.Engine.Clock.Advance(generic.Height(req.By))
	writeJSON(w, http.StatusOK, ClockDTO{Height: uint64(height)})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// finishMutation converts a domain result into the tagged wire result,
// counts the metric, and logs failures.
func (h *Handler) finishMutation(w http.ResponseWriter, kind generic.Kind, op, id string, err error) {
	observe(kind, op, err)

	if err == nil {
		writeJSON(w, http.StatusOK, ResultDTO{OK: true})
		return
	}

	if code, coded := generic.CodeOf(err); coded {
		h.Log.Info("operation rejected",
			zap.String("store", string(kind)),
			zap.String("op", op),
			zap.String("id", id),
			zap.Int("code", int(code)))
		writeJSON(w, httpStatusFor(code), ResultDTO{OK: false, Code: int(code), Error: err.Error()})
		return
	}

	h.Log.Error("operation failed",
		zap.String("store", string(kind)),
		zap.String("op", op),
		zap.String("id", id),
		zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, ResultDTO{OK: false, Error: "internal error"})
}

func httpStatusFor(code generic.Code) int {
	switch code {
	case generic.CodeUnauthorized:
		return http.StatusForbidden
	case generic.CodeAlreadyExists, generic.CodeInvalidState:
		return http.StatusConflict
	case generic.CodeNotFound:
		return http.StatusNotFound
	case generic.CodeExpired:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func writeNotFoundBody(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": msg})
}

func writeInternal(w http.ResponseWriter, log *zap.Logger, action string, err error) {
	log.Error(action, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

// writeListError degrades gracefully when the backend cannot enumerate.
func writeListError(w http.ResponseWriter, log *zap.Logger, action string, err error) {
	if errors.Is(err, generic.ErrStoreRequired) {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "backend does not support listing"})
		return
	}
	writeInternal(w, log, action, err)
}
