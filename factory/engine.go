/*
Package factory provides JSON to Go engine construction.

PURPOSE:
  Converts a JSON engine definition into the four wired record registries.
  This enables deployment configuration without code changes - operators can
  set per-store admin identities and the starting height in JSON.

JSON SCHEMA:
  {
    "start_height": 100,
    "admins": {
      "patient": "ops-admin",
      "insurance_policy": "ops-admin",
      "consent": "privacy-admin",
      "authorization": "claims-admin"
    },
    "default_admin": "ops-admin"
  }

KEY FEATURES:
  - Validates the config structure
  - Falls back to default_admin for stores without an explicit entry
  - Wires all four registries onto one backend and one clock

USAGE:
  cfg, err := factory.ParseConfig(jsonString)
  engine, err := factory.NewEngine(ctx, backend, cfg)
  engine.Consents.Grant(ctx, caller, "c1", "p1", "dr-1", "care", 200)

SEE ALSO:
  - generic/registry.go: The shared store pattern
  - cmd/server/main.go: Builds an engine at startup
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/caremesh/record-engine/authorization"
	"github.com/caremesh/record-engine/consent"
	"github.com/caremesh/record-engine/generic"
	"github.com/caremesh/record-engine/insurance"
	"github.com/caremesh/record-engine/patient"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// EngineConfig is the JSON representation of an engine deployment.
type EngineConfig struct {
	StartHeight  generic.Height                    `json:"start_height,omitempty"`
	Admins       map[generic.Kind]generic.Identity `json:"admins,omitempty"`
	DefaultAdmin generic.Identity                  `json:"default_admin,omitempty"`
}

// ParseConfig parses and validates an engine configuration.
func ParseConfig(raw string) (EngineConfig, error) {
	var cfg EngineConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("invalid engine config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}

func (c EngineConfig) validate() error {
	for kind := range c.Admins {
		switch kind {
		case generic.KindPatient, generic.KindPolicy, generic.KindConsent, generic.KindAuthorization:
		default:
			return fmt.Errorf("invalid engine config: unknown store kind %q", kind)
		}
	}
	if c.DefaultAdmin == generic.Nobody {
		for _, kind := range allKinds {
			if c.Admins[kind] == generic.Nobody {
				return fmt.Errorf("invalid engine config: no admin for %q and no default_admin", kind)
			}
		}
	}
	return nil
}

// adminFor resolves the initial admin for a store kind.
func (c EngineConfig) adminFor(kind generic.Kind) generic.Identity {
	if admin, ok := c.Admins[kind]; ok && admin != generic.Nobody {
		return admin
	}
	return c.DefaultAdmin
}

var allKinds = []generic.Kind{
	generic.KindPatient,
	generic.KindPolicy,
	generic.KindConsent,
	generic.KindAuthorization,
}

// =============================================================================
// ENGINE - The four registries over one backend
// =============================================================================

// Engine bundles the four record registries, one shared backend, and the
// host clock. No operation ever spans more than one registry.
type Engine struct {
	Patients       *patient.Registry
	Policies       *insurance.Registry
	Consents       *consent.Registry
	Authorizations *authorization.Registry

	Clock *generic.Manual
}

// NewEngine wires the four registries onto the backend per the config.
func NewEngine(ctx context.Context, backend generic.TxRecordStore, cfg EngineConfig) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	clock := generic.NewManual(cfg.StartHeight)

	patients, err := patient.NewRegistry(ctx, backend, clock, cfg.adminFor(generic.KindPatient))
	if err != nil {
		return nil, fmt.Errorf("patient registry: %w", err)
	}
	policies, err := insurance.NewRegistry(ctx, backend, clock, cfg.adminFor(generic.KindPolicy))
	if err != nil {
		return nil, fmt.Errorf("insurance registry: %w", err)
	}
	consents, err := consent.NewRegistry(ctx, backend, clock, cfg.adminFor(generic.KindConsent))
	if err != nil {
		return nil, fmt.Errorf("consent registry: %w", err)
	}
	authorizations, err := authorization.NewRegistry(ctx, backend, clock, cfg.adminFor(generic.KindAuthorization))
	if err != nil {
		return nil, fmt.Errorf("authorization registry: %w", err)
	}

	return &Engine{
		Patients:       patients,
		Policies:       policies,
		Consents:       consents,
		Authorizations: authorizations,
		Clock:          clock,
	}, nil
}

// SingleAdminConfig is a convenience for deployments with one admin identity
// across all four stores.
func SingleAdminConfig(admin generic.Identity, startHeight generic.Height) EngineConfig {
	return EngineConfig{StartHeight: startHeight, DefaultAdmin: admin}
}
