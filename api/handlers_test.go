package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caremesh/record-engine/api"
	"github.com/caremesh/record-engine/factory"
	"github.com/caremesh/record-engine/generic/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	t      *testing.T
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	engine, err := factory.NewEngine(context.Background(), store.NewMemory(),
		factory.SingleAdminConfig("admin", 100))
	require.NoError(t, err)
	return &testServer{t: t, router: api.NewRouter(api.NewHandler(engine, nil))}
}

// do issues a request as the given caller and decodes the JSON response into
// out when out is non-nil.
func (s *testServer) do(method, path, callerID string, body, out any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if callerID != "" {
		req.Header.Set("X-Caller-ID", callerID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(s.t, json.NewDecoder(rec.Body).Decode(out))
	}
	return rec
}

// =============================================================================
// PATIENTS
// =============================================================================

func TestRegisterAndGetPatient(t *testing.T) {
	s := newTestServer(t)

	var result api.ResultDTO
	rec := s.do(http.MethodPost, "/api/patients", "alice",
		api.RegisterPatientRequest{ID: "pat-1", Name: "Alice", DOB: "1990-01-01"}, &result)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, result.OK)

	var p api.PatientDTO
	rec = s.do(http.MethodGet, "/api/patients/pat-1", "", nil, &p)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, "alice", p.RegisteredBy)
	assert.Equal(t, uint64(100), p.RegisteredAt)
	assert.True(t, p.Active)

	rec = s.do(http.MethodGet, "/api/patients/ghost", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterPatient_DuplicateReturns409WithCode101(t *testing.T) {
	s := newTestServer(t)

	s.do(http.MethodPost, "/api/patients", "alice",
		api.RegisterPatientRequest{ID: "pat-1", Name: "Alice"}, nil)

	var result api.ResultDTO
	rec := s.do(http.MethodPost, "/api/patients", "bob",
		api.RegisterPatientRequest{ID: "pat-1", Name: "Bob"}, &result)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, result.OK)
	assert.Equal(t, 101, result.Code)
	assert.NotEmpty(t, result.Error)
}

func TestUpdatePatient_WireCodes(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/api/patients", "alice",
		api.RegisterPatientRequest{ID: "pat-1", Name: "Alice"}, nil)

	// Third party: 403 with code 100
	var result api.ResultDTO
	rec := s.do(http.MethodPut, "/api/patients/pat-1", "mallory",
		api.UpdatePatientRequest{Name: "Mallory"}, &result)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 100, result.Code)

	// Unknown id: 404 with code 102, even for a non-admin
	rec = s.do(http.MethodPut, "/api/patients/ghost", "mallory",
		api.UpdatePatientRequest{Name: "X"}, &result)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 102, result.Code)

	// Owner: ok
	rec = s.do(http.MethodPut, "/api/patients/pat-1", "alice",
		api.UpdatePatientRequest{Name: "Alice B", DOB: "1990-01-01"}, &result)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, result.OK)
}

// =============================================================================
// POLICIES
// =============================================================================

func TestPolicyLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	// Non-admin cannot add
	var result api.ResultDTO
	rec := s.do(http.MethodPost, "/api/policies", "mallory", api.AddPolicyRequest{
		ID: "pol-1", PatientID: "pat-1", Provider: "Acme",
		CoverageStart: 100, CoverageEnd: 200,
	}, &result)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 100, result.Code)

	// Admin with an inverted window: 400 with code 103
	rec = s.do(http.MethodPost, "/api/policies", "admin", api.AddPolicyRequest{
		ID: "pol-1", PatientID: "pat-1", Provider: "Acme",
		CoverageStart: 300, CoverageEnd: 200,
	}, &result)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 103, result.Code)

	// Admin with a valid window
	rec = s.do(http.MethodPost, "/api/policies", "admin", api.AddPolicyRequest{
		ID: "pol-1", PatientID: "pat-1", Provider: "Acme",
		CoverageStart: 100, CoverageEnd: 200, CoverageAmount: "250000.50",
	}, &result)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, result.OK)

	var p api.PolicyDTO
	s.do(http.MethodGet, "/api/policies/pol-1", "", nil, &p)
	assert.Equal(t, "250000.50", p.CoverageAmount)

	var validity api.ValidityDTO
	s.do(http.MethodGet, "/api/policies/pol-1/coverage", "", nil, &validity)
	assert.True(t, validity.Valid)

	var ownership api.OwnershipDTO
	s.do(http.MethodGet, "/api/policies/pol-1/ownership/pat-1", "", nil, &ownership)
	assert.True(t, ownership.Owned)
	s.do(http.MethodGet, "/api/policies/pol-1/ownership/pat-2", "", nil, &ownership)
	assert.False(t, ownership.Owned)

	// Deactivation kills coverage but not ownership
	s.do(http.MethodPost, "/api/policies/pol-1/deactivate", "admin", nil, &result)
	assert.True(t, result.OK)
	s.do(http.MethodGet, "/api/policies/pol-1/coverage", "", nil, &validity)
	assert.False(t, validity.Valid)
	s.do(http.MethodGet, "/api/policies/pol-1/ownership/pat-1", "", nil, &ownership)
	assert.True(t, ownership.Owned)
}

// =============================================================================
// CONSENTS
// =============================================================================

func TestConsentFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)

	var result api.ResultDTO
	rec := s.do(http.MethodPost, "/api/consents", "pat-1", api.GrantConsentRequest{
		ID: "con-1", PatientID: "pat-1", ProviderID: "dr-house",
		Purpose: "treatment", ExpiresAt: 200,
	}, &result)
	require.Equal(t, http.StatusOK, rec.Code)

	var validity api.ValidityDTO
	s.do(http.MethodGet, "/api/consents/con-1/verify", "", nil, &validity)
	assert.True(t, validity.Valid)

	s.do(http.MethodPost, "/api/consents/con-1/revoke", "pat-1", nil, &result)
	assert.True(t, result.OK)

	s.do(http.MethodGet, "/api/consents/con-1/verify", "", nil, &validity)
	assert.False(t, validity.Valid)

	// Extending a revoked consent: 409 with code 104
	rec = s.do(http.MethodPost, "/api/consents/con-1/extend", "pat-1",
		api.ExtendRequest{NewExpiry: 300}, &result)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 104, result.Code)
}

// =============================================================================
// AUTHORIZATIONS
// =============================================================================

func TestAuthorizationFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)

	// Expiry at or below the clock is rejected up front: 400 with code 103
	var result api.ResultDTO
	rec := s.do(http.MethodPost, "/api/authorizations", "dr-house", api.RequestAuthorizationRequest{
		ID: "auth-1", PatientID: "pat-1", ProviderID: "dr-house",
		TreatmentCode: "MRI-7", ExpiresAt: 90,
	}, &result)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 103, result.Code)
	rec = s.do(http.MethodGet, "/api/authorizations/auth-1", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "failed request leaves no record")

	rec = s.do(http.MethodPost, "/api/authorizations", "dr-house", api.RequestAuthorizationRequest{
		ID: "auth-1", PatientID: "pat-1", ProviderID: "dr-house",
		TreatmentCode: "MRI-7", ExpiresAt: 200,
	}, &result)
	require.Equal(t, http.StatusOK, rec.Code)

	// Unknown target status: 409 with code 104 even for the admin
	rec = s.do(http.MethodPost, "/api/authorizations/auth-1/status", "admin",
		api.UpdateStatusRequest{Status: "shipped"}, &result)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 104, result.Code)

	s.do(http.MethodPost, "/api/authorizations/auth-1/status", "admin",
		api.UpdateStatusRequest{Status: "approved"}, &result)
	assert.True(t, result.OK)

	var validity api.ValidityDTO
	s.do(http.MethodGet, "/api/authorizations/auth-1/verify", "", nil, &validity)
	assert.True(t, validity.Valid)
}

// =============================================================================
// CLOCK
// =============================================================================

func TestClockEndpoints(t *testing.T) {
	s := newTestServer(t)

	var clock api.ClockDTO
	rec := s.do(http.MethodGet, "/api/clock", "", nil, &clock)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(100), clock.Height)

	s.do(http.MethodPost, "/api/clock/advance", "", api.AdvanceClockRequest{By: 5}, &clock)
	assert.Equal(t, uint64(105), clock.Height)

	// Zero defaults to a single height
	s.do(http.MethodPost, "/api/clock/advance", "", api.AdvanceClockRequest{}, &clock)
	assert.Equal(t, uint64(106), clock.Height)
}

func TestClockDrivesValidity(t *testing.T) {
	s := newTestServer(t)

	var result api.ResultDTO
	s.do(http.MethodPost, "/api/consents", "pat-1", api.GrantConsentRequest{
		ID: "con-1", PatientID: "pat-1", ProviderID: "dr-house", ExpiresAt: 150,
	}, &result)
	require.True(t, result.OK)

	var validity api.ValidityDTO
	s.do(http.MethodGet, "/api/consents/con-1/verify", "", nil, &validity)
	assert.True(t, validity.Valid)

	var clock api.ClockDTO
	s.do(http.MethodPost, "/api/clock/advance", "", api.AdvanceClockRequest{By: 51}, &clock)
	require.Equal(t, uint64(151), clock.Height)

	s.do(http.MethodGet, "/api/consents/con-1/verify", "", nil, &validity)
	assert.False(t, validity.Valid, "expiry passed once the clock moved")
}

// =============================================================================
// ADMIN TRANSFER AND SCENARIOS
// =============================================================================

func TestTransferAdminOverHTTP(t *testing.T) {
	s := newTestServer(t)

	var result api.ResultDTO
	rec := s.do(http.MethodPost, "/api/policies/admin/transfer", "mallory",
		api.TransferAdminRequest{NewAdmin: "mallory"}, &result)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 100, result.Code)

	rec = s.do(http.MethodPost, "/api/policies/admin/transfer", "admin",
		api.TransferAdminRequest{NewAdmin: "carol"}, &result)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, result.OK)

	// The old admin lost the role for this store only.
	rec = s.do(http.MethodPost, "/api/policies", "admin", api.AddPolicyRequest{
		ID: "pol-1", PatientID: "pat-1", CoverageStart: 100, CoverageEnd: 200,
	}, &result)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodPost, "/api/policies", "carol", api.AddPolicyRequest{
		ID: "pol-1", PatientID: "pat-1", CoverageStart: 100, CoverageEnd: 200,
	}, &result)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestScenarios(t *testing.T) {
	s := newTestServer(t)

	var list []api.ScenarioDTO
	rec := s.do(http.MethodGet, "/api/scenarios", "", nil, &list)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, list)

	var result api.ResultDTO
	rec = s.do(http.MethodPost, "/api/scenarios/load", "admin",
		api.LoadScenarioRequest{Name: list[0].Name}, &result)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, result.OK)

	// Loaded data is reachable through the ordinary endpoints.
	var patients []api.PatientDTO
	s.do(http.MethodGet, "/api/patients", "", nil, &patients)
	assert.NotEmpty(t, patients)
}

func TestMissingCallerIsRejected(t *testing.T) {
	s := newTestServer(t)

	// No X-Caller-ID: the empty identity holds no rights anywhere.
	var result api.ResultDTO
	rec := s.do(http.MethodPost, "/api/policies", "", api.AddPolicyRequest{
		ID: "pol-1", PatientID: "pat-1", CoverageStart: 100, CoverageEnd: 200,
	}, &result)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 100, result.Code)
}
