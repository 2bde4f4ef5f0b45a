// Package identity registers stakeholders into write-once roles.
package identity

import (
	"time"

	"xdao.co/trustchain/domain"
	"xdao.co/trustchain/state"
)

// Registry is the IdentityRegistry over a shared state.Store.
type Registry struct {
	store *state.Store
	now   func() time.Time
}

// New returns a registry. A nil clock defaults to time.Now.
func New(store *state.Store, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{store: store, now: now}
}

// Register creates a zero-balance record for addr. A second attempt for the
// same address fails with ErrAlreadyRegistered whatever role it names.
func (r *Registry) Register(addr domain.Address, role domain.Role) (domain.Stakeholder, error) {
	if addr.IsZero() {
		return domain.Stakeholder{}, domain.ErrInvalidAddress
	}
	if !role.Valid() {
		return domain.Stakeholder{}, domain.ErrInvalidRole
	}
	sh := domain.Stakeholder{Address: addr, Role: role, RegisteredAt: r.now().UTC()}
	if !r.store.InsertStakeholder(sh) {
		return domain.Stakeholder{}, domain.ErrAlreadyRegistered
	}
	return sh, nil
}

func (r *Registry) IsRegistered(addr domain.Address) bool {
	_, ok := r.store.Stakeholder(addr)
	return ok
}

// RoleOf returns the role of a registered address.
func (r *Registry) RoleOf(addr domain.Address) (domain.Role, error) {
	sh, ok := r.store.Stakeholder(addr)
	if !ok {
		return 0, domain.ErrNotRegistered
	}
	return sh.Role, nil
}

// Stakeholder returns the full record for addr.
func (r *Registry) Stakeholder(addr domain.Address) (domain.Stakeholder, error) {
	sh, ok := r.store.Stakeholder(addr)
	if !ok {
		return domain.Stakeholder{}, domain.ErrNotRegistered
	}
	return sh, nil
}

// Require returns the stakeholder record for addr if it is registered and
// allowed by permits; otherwise an authorization error.
func (r *Registry) Require(addr domain.Address, permits func(domain.Role) bool) (domain.Stakeholder, error) {
	sh, ok := r.store.Stakeholder(addr)
	if !ok {
		return domain.Stakeholder{}, domain.ErrNotRegistered
	}
	if !permits(sh.Role) {
		return domain.Stakeholder{}, domain.ErrWrongRole
	}
	return sh, nil
}
