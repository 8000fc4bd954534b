package authorization_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caremesh/record-engine/authorization"
	"github.com/caremesh/record-engine/generic"
	"github.com/caremesh/record-engine/generic/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRegistry(t *testing.T) (*authorization.Registry, *generic.Manual) {
	t.Helper()
	clock := generic.NewManual(100)
	reg, err := authorization.NewRegistry(context.Background(), store.NewMemory(), clock, "admin")
	require.NoError(t, err)
	return reg, clock
}

func request(t *testing.T, reg *authorization.Registry, caller, id, patientID string, expiresAt generic.Height) {
	t.Helper()
	err := reg.Request(context.Background(), generic.Identity(caller), generic.RecordID(id),
		generic.SubjectID(patientID), "dr-house", "MRI-7", "knee scan", "pol-1", expiresAt)
	require.NoError(t, err)
}

// =============================================================================
// REQUEST
// =============================================================================

func TestRequest_StartsPending(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	request(t, reg, "dr-house", "auth-1", "pat-1", 200)

	a, err := reg.Get(ctx, "auth-1")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, authorization.StatusPending, a.Status)
	assert.Equal(t, generic.Identity("dr-house"), a.RequestedBy)
	assert.Equal(t, generic.Height(100), a.RequestedAt)

	// Pending requests never verify, whatever the clock says.
	valid, _ := reg.Verify(ctx, "auth-1")
	assert.False(t, valid)
}

func TestRequest_RejectsEmptyCaller(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	err := reg.Request(ctx, generic.Nobody, "auth-1", "pat-1", "dr-house", "MRI-7", "", "", 200)
	assert.ErrorIs(t, err, generic.ErrUnauthorized)

	a, _ := reg.Get(ctx, "auth-1")
	assert.Nil(t, a, "rejected request must leave no record")
}

func TestRequest_ExpiryInThePast(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	// clock=100, expiresAt=90
	err := reg.Request(ctx, "dr-house", "auth-bad", "pat-1", "dr-house", "MRI-7", "", "", 90)
	assert.ErrorIs(t, err, generic.ErrExpired)
	code, _ := generic.CodeOf(err)
	assert.Equal(t, generic.CodeExpired, code)

	a, _ := reg.Get(ctx, "auth-bad")
	assert.Nil(t, a, "failed request must leave no record")
	owned, _ := reg.IsPatientAuthorization(ctx, "pat-1", "auth-bad")
	assert.False(t, owned, "failed request must leave no index entry")
}

func TestRequest_DuplicateID(t *testing.T) {
	reg, _ := newTestRegistry(t)
	request(t, reg, "dr-house", "auth-1", "pat-1", 200)

	err := reg.Request(context.Background(), "dr-wilson", "auth-1", "pat-2", "dr-wilson", "XR-2", "", "", 300)
	assert.ErrorIs(t, err, generic.ErrAlreadyExists)

	a, _ := reg.Get(context.Background(), "auth-1")
	assert.Equal(t, generic.SubjectID("pat-1"), a.PatientID)
}

// =============================================================================
// STATUS TRANSITIONS
// =============================================================================

func TestUpdateStatus_AdminOnly(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	request(t, reg, "dr-house", "auth-1", "pat-1", 200)

	err := reg.UpdateStatus(ctx, "dr-house", "auth-1", authorization.StatusApproved)
	assert.ErrorIs(t, err, generic.ErrUnauthorized, "not even the requester may decide")

	a, _ := reg.Get(ctx, "auth-1")
	assert.Equal(t, authorization.StatusPending, a.Status, "failed update must not change state")

	require.NoError(t, reg.UpdateStatus(ctx, "admin", "auth-1", authorization.StatusApproved))
	a, _ = reg.Get(ctx, "auth-1")
	assert.Equal(t, authorization.StatusApproved, a.Status)
}

func TestUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	request(t, reg, "dr-house", "auth-1", "pat-1", 200)

	// Not a recognized target even when the admin asks.
	err := reg.UpdateStatus(ctx, "admin", "auth-1", authorization.Status("shipped"))
	assert.ErrorIs(t, err, generic.ErrInvalidStatus)
	code, ok := generic.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, generic.CodeInvalidState, code)

	// Pending is a starting state, not a target.
	err = reg.UpdateStatus(ctx, "admin", "auth-1", authorization.StatusPending)
	assert.ErrorIs(t, err, generic.ErrInvalidStatus)
}

func TestUpdateStatus_UnknownIDIsNotFound(t *testing.T) {
	// Existence is checked before authorization, so a non-admin probing an
	// unknown id sees 102, not 100.
	reg, _ := newTestRegistry(t)

	err := reg.UpdateStatus(context.Background(), "mallory", "ghost", authorization.StatusApproved)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestUpdateStatus_TerminalStatesRemainMutable(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	request(t, reg, "dr-house", "auth-1", "pat-1", 200)

	require.NoError(t, reg.UpdateStatus(ctx, "admin", "auth-1", authorization.StatusDenied))
	require.NoError(t, reg.UpdateStatus(ctx, "admin", "auth-1", authorization.StatusApproved))
	require.NoError(t, reg.UpdateStatus(ctx, "admin", "auth-1", authorization.StatusCompleted))

	a, _ := reg.Get(ctx, "auth-1")
	assert.Equal(t, authorization.StatusCompleted, a.Status)
}

// =============================================================================
// VERIFICATION
// =============================================================================

func TestVerify_RequiresApprovedAndUnexpired(t *testing.T) {
	reg, clock := newTestRegistry(t)
	ctx := context.Background()
	request(t, reg, "dr-house", "auth-1", "pat-1", 200)

	require.NoError(t, reg.UpdateStatus(ctx, "admin", "auth-1", authorization.StatusApproved))
	valid, err := reg.Verify(ctx, "auth-1")
	require.NoError(t, err)
	assert.True(t, valid)

	clock.SetAtLeast(200)
	valid, _ = reg.Verify(ctx, "auth-1")
	assert.True(t, valid, "expiry is inclusive")

	clock.SetAtLeast(201)
	valid, _ = reg.Verify(ctx, "auth-1")
	assert.False(t, valid)

	clock.SetAtLeast(300)
	valid, _ = reg.Verify(ctx, "auth-1")
	assert.False(t, valid)
}

func TestVerify_NonApprovedStatusesNeverVerify(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	for _, status := range []authorization.Status{authorization.StatusDenied, authorization.StatusCompleted} {
		id := generic.RecordID("auth-" + string(status))
		request(t, reg, "dr-house", string(id), "pat-1", 200)
		require.NoError(t, reg.UpdateStatus(ctx, "admin", id, status))

		valid, _ := reg.Verify(ctx, id)
		assert.False(t, valid, "status %s must not verify", status)
	}
}

func TestVerify_UnknownID(t *testing.T) {
	reg, _ := newTestRegistry(t)

	valid, err := reg.Verify(context.Background(), "ghost")
	assert.NoError(t, err)
	assert.False(t, valid)
}

// =============================================================================
// EXTENSION
// =============================================================================

func TestExtend_AdminOnly(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	request(t, reg, "dr-house", "auth-1", "pat-1", 200)

	err := reg.Extend(ctx, "dr-house", "auth-1", 300)
	assert.ErrorIs(t, err, generic.ErrUnauthorized)

	require.NoError(t, reg.Extend(ctx, "admin", "auth-1", 300))
	a, _ := reg.Get(ctx, "auth-1")
	assert.Equal(t, generic.Height(300), a.ExpiresAt)
}

func TestExtend_MustMoveExpiryForward(t *testing.T) {
	reg, clock := newTestRegistry(t)
	ctx := context.Background()
	request(t, reg, "dr-house", "auth-1", "pat-1", 200)

	assert.ErrorIs(t, reg.Extend(ctx, "admin", "auth-1", 200), generic.ErrExpired)
	assert.ErrorIs(t, reg.Extend(ctx, "admin", "auth-1", 150), generic.ErrExpired)

	clock.SetAtLeast(500)
	assert.ErrorIs(t, reg.Extend(ctx, "admin", "auth-1", 400), generic.ErrExpired)

	a, _ := reg.Get(ctx, "auth-1")
	assert.Equal(t, generic.Height(200), a.ExpiresAt)
}

// =============================================================================
// OWNERSHIP INDEX
// =============================================================================

func TestIsPatientAuthorization_SurvivesDenial(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	request(t, reg, "dr-house", "auth-1", "pat-1", 200)

	require.NoError(t, reg.UpdateStatus(ctx, "admin", "auth-1", authorization.StatusDenied))

	owned, err := reg.IsPatientAuthorization(ctx, "pat-1", "auth-1")
	require.NoError(t, err)
	assert.True(t, owned)

	owned, _ = reg.IsPatientAuthorization(ctx, "pat-2", "auth-1")
	assert.False(t, owned)
}
