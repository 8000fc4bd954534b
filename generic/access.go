/*
access.go - Single-admin access control per record store

PURPOSE:
  Each record store is guarded by exactly one mutable admin identity. Every
  privileged mutation checks it; some operations additionally permit the
  record's own creator. This file holds the controller and the transfer rule.

CONTRACT:
  - IsAdmin(caller) is true iff caller equals the stored admin.
  - TransferAdmin(newAdmin, caller) fails with ErrUnauthorized unless caller
    is the current admin; on success the replacement is atomic.
  - The admin is never destroyed. No queue, no multisig: a lost or compromised
    admin identity is a single point of failure, documented rather than
    mitigated here.

PERSISTENCE:
  The controller itself is in-memory state owned by the store instance. When
  the backing store implements AdminStore, registries load the saved admin at
  construction and save on transfer, so the identity survives restarts.

SEE ALSO:
  - store.go: AdminStore capability interface
*/
package generic

import "sync"

// AccessController holds the single admin identity for one record store.
type AccessController struct {
	mu    sync.RWMutex
	admin Identity
}

// NewAccessController creates a controller with the given initial admin,
// normally the deploying identity.
func NewAccessController(admin Identity) *AccessController {
	return &AccessController{admin: admin}
}

// Admin returns the current admin identity.
func (a *AccessController) Admin() Identity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.admin
}

// IsAdmin reports whether caller is the current admin.
func (a *AccessController) IsAdmin(caller Identity) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return caller != Nobody && caller == a.admin
}

// TransferAdmin replaces the admin identity. Only the current admin may call.
func (a *AccessController) TransferAdmin(newAdmin, caller Identity) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller == Nobody || caller != a.admin {
		return ErrUnauthorized
	}
	a.admin = newAdmin
	return nil
}
