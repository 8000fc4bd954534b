/*
scenarios.go - Demo scenario loaders

PURPOSE:
  Seeds the engine with named demo datasets so the API can be explored
  without hand-crafting records. Each scenario runs ordinary engine
  operations as the store admins, so everything it creates obeys the same
  invariants as live traffic.

SCENARIOS:
  clinic-onboarding: Two patients, a policy each, consents for a provider
  claims-review:     Patients with authorizations in several statuses

SEE ALSO:
  - handlers.go: Route wiring for /api/scenarios
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/caremesh/record-engine/authorization"
	"github.com/caremesh/record-engine/factory"
	"github.com/caremesh/record-engine/generic"
)

// scenario is one loadable demo dataset.
type scenario struct {
	Name        string
	Description string
	Load        func(ctx context.Context, e *factory.Engine) error
}

var scenarios = []scenario{
	{
		Name:        "clinic-onboarding",
		Description: "Two registered patients with active policies and provider consents",
		Load:        loadClinicOnboarding,
	},
	{
		Name:        "claims-review",
		Description: "Patients with treatment authorizations across the status machine",
		Load:        loadClaimsReview,
	},
}

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = ScenarioDTO{Name: s.Name, Description: s.Description}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadScenario seeds the engine with the named scenario. Loading on top of
// existing data fails with AlreadyExists like any other create; start from
// an empty backend for a clean demo.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	for _, s := range scenarios {
		if s.Name != req.Name {
			continue
		}
		if err := s.Load(r.Context(), h.Engine); err != nil {
			h.finishMutation(w, "scenario", "load", req.Name, err)
			return
		}
		writeJSON(w, http.StatusOK, ResultDTO{OK: true})
		return
	}
	writeNotFoundBody(w, fmt.Sprintf("Unknown scenario %q", req.Name))
}

// =============================================================================
// SCENARIO DATA
// =============================================================================

func loadClinicOnboarding(ctx context.Context, e *factory.Engine) error {
	now := e.Clock.Height()
	admin := e.Policies.Admin()

	patients := []struct{ id, name, dob string }{
		{"pat-100", "Maya Torres", "1984-03-12"},
		{"pat-101", "Jonas Weber", "1962-11-30"},
	}
	for _, p := range patients {
		if err := e.Patients.Register(ctx, "reception-1", generic.RecordID(p.id), p.name, p.dob); err != nil {
			return err
		}
	}

	if err := e.Policies.Add(ctx, admin, "pol-100", "pat-100", "Acme Health", "AH-55012",
		now, now+5000, decimal.NewFromInt(250000)); err != nil {
		return err
	}
	if err := e.Policies.Add(ctx, admin, "pol-101", "pat-101", "Beacon Mutual", "BM-90331",
		now, now+2500, decimal.NewFromInt(100000)); err != nil {
		return err
	}

	for _, c := range []struct {
		id, patient, purpose string
		expiry               generic.Height
	}{
		{"con-100", "pat-100", "primary-care", now + 1000},
		{"con-101", "pat-101", "cardiology-referral", now + 400},
	} {
		if err := e.Consents.Grant(ctx, "dr-freeman", generic.RecordID(c.id),
			generic.SubjectID(c.patient), "prov-77", c.purpose, c.expiry); err != nil {
			return err
		}
	}
	return nil
}

func loadClaimsReview(ctx context.Context, e *factory.Engine) error {
	now := e.Clock.Height()
	admin := e.Authorizations.Admin()

	if err := e.Patients.Register(ctx, "reception-2", "pat-200", "Ida Lindqvist", "1975-07-04"); err != nil {
		return err
	}
	if err := e.Policies.Add(ctx, e.Policies.Admin(), "pol-200", "pat-200", "Acme Health", "AH-20990",
		now, now+3000, decimal.NewFromInt(500000)); err != nil {
		return err
	}

	auths := []struct {
		id, code, desc string
		status         authorization.Status
	}{
		{"auth-200", "MRI-HEAD", "Head MRI with contrast", authorization.StatusApproved},
		{"auth-201", "PT-12", "Twelve physical therapy sessions", authorization.StatusPending},
		{"auth-202", "SURG-KNEE", "Arthroscopic knee surgery", authorization.StatusDenied},
	}
	for _, a := range auths {
		if err := e.Authorizations.Request(ctx, "dr-okafor", generic.RecordID(a.id),
			"pat-200", "prov-88", a.code, a.desc, "pol-200", now+800); err != nil {
			return err
		}
		if a.status == authorization.StatusPending {
			continue
		}
		if err := e.Authorizations.UpdateStatus(ctx, admin, generic.RecordID(a.id), a.status); err != nil {
			return err
		}
	}
	return nil
}
