/*
Package generic provides the core permissioned record-store engine.

PURPOSE:
  This package contains domain-agnostic types and building blocks for managing
  keyed, time-bounded records behind role-based access control. Whether the
  record is a patient identity, an insurance policy, a data-sharing consent, or
  a treatment authorization, the same machinery handles keyed storage, admin
  gating, secondary indexing, and expiry evaluation against a logical clock.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identity: An opaque caller/owner identity supplied by the host environment
  - Height:   A logical clock value (block height) used for all temporal checks
  - Kind:     Discriminator separating the record stores sharing one backend
  - RecordID/SubjectID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Records are value snapshots; updates replace, never mutate
  2. Determinism: All temporal checks compare stored heights to the host clock
  3. Type Safety: Strong typing for identities and ids prevents mix-ups
  4. Locality: The engine never advances the clock and never spans two stores

SEE ALSO:
  - access.go: Admin identity and transfer rules
  - store.go:  Persistence interfaces (records, secondary index, admin state)
  - clock.go:  Logical clock interface
  - errors.go: Sentinel errors and wire codes
*/
package generic

// =============================================================================
// IDENTITY - Opaque caller/owner identity supplied by the host
// =============================================================================

// Identity is the principal performing or owning an operation. The host
// environment authenticates it; the engine only compares it for equality.
type Identity string

// Nobody is the zero identity. No caller ever matches it.
const Nobody Identity = ""

// =============================================================================
// HEIGHT - Logical clock value (block height)
// =============================================================================

// Height is a monotonically non-decreasing logical clock value. The engine
// reads it for expiry checks but never advances it.
type Height uint64

// After reports whether h is strictly greater than other.
func (h Height) After(other Height) bool { return h > other }

// AtOrAfter reports whether h is greater than or equal to other.
func (h Height) AtOrAfter(other Height) bool { return h >= other }

// =============================================================================
// IDENTIFIERS
// =============================================================================

// RecordID uniquely identifies a record within one store. The external caller
// supplies it; uniqueness is enforced at creation time.
type RecordID string

// SubjectID identifies the subject (patient) a record belongs to, used as the
// leading component of secondary-index keys.
type SubjectID string

// =============================================================================
// KIND - Store discriminator
// =============================================================================

// Kind names one of the record stores sharing a backend. Each Kind owns its
// own keyspace: records, index entries, and admin state never collide across
// kinds.
type Kind string

const (
	KindPatient       Kind = "patient"
	KindPolicy        Kind = "insurance_policy"
	KindConsent       Kind = "consent"
	KindAuthorization Kind = "authorization"
)
