package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Role is an additive capability granted to an address. Roles are not
// hierarchical; an address may hold zero or more of them.
type Role string

const (
	// RoleAdmin can pause and unpause the registry, manage roles and
	// update the eligibility root.
	RoleAdmin Role = "admin"
	// RoleRegistrar can create voting sessions and finalize them.
	RoleRegistrar Role = "registrar"
)

// RoleStore persists the role membership set, keyed by hex address, so
// grants and revocations survive restarts.
type RoleStore interface {
	SetRoles(map[string][]string) error
	Roles() (map[string][]string, error)
}

// AccessControl holds the role membership set and the global pause switch.
// It is passed explicitly into registry operations so capability checks stay
// a pure function of caller, role set and pause flag.
type AccessControl struct {
	mu     sync.RWMutex
	roles  map[common.Address]map[Role]bool
	store  RoleStore
	paused bool
}

// NewAccessControl creates an access control state with the given address
// holding the admin role. If a store is given, previously persisted roles
// are loaded and every later grant or revoke is written back to it.
func NewAccessControl(admin common.Address, store RoleStore) *AccessControl {
	ac := &AccessControl{
		roles: make(map[common.Address]map[Role]bool),
		store: store,
	}
	if store != nil {
		if persisted, err := store.Roles(); err == nil {
			for addr, names := range persisted {
				set := make(map[Role]bool, len(names))
				for _, name := range names {
					set[Role(name)] = true
				}
				ac.roles[common.HexToAddress(addr)] = set
			}
		}
	}
	if ac.roles[admin] == nil {
		ac.roles[admin] = make(map[Role]bool)
	}
	ac.roles[admin][RoleAdmin] = true
	return ac
}

// snapshot flattens the role set for persistence. Callers must hold mu.
func (ac *AccessControl) snapshot() map[string][]string {
	out := make(map[string][]string, len(ac.roles))
	for addr, set := range ac.roles {
		var names []string
		for role, ok := range set {
			if ok {
				names = append(names, string(role))
			}
		}
		if len(names) > 0 {
			sort.Strings(names)
			out[addr.Hex()] = names
		}
	}
	return out
}

// persist writes the current role set to the store. Callers must hold mu.
func (ac *AccessControl) persist() error {
	if ac.store == nil {
		return nil
	}
	return ac.store.SetRoles(ac.snapshot())
}

// Grant gives a role to an address. Only an admin can grant roles.
func (ac *AccessControl) Grant(caller, addr common.Address, role Role) error {
	if !ac.HasRole(caller, RoleAdmin) {
		return ErrNotAuthorized
	}
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.roles[addr] == nil {
		ac.roles[addr] = make(map[Role]bool)
	}
	had := ac.roles[addr][role]
	ac.roles[addr][role] = true
	if err := ac.persist(); err != nil {
		if !had {
			delete(ac.roles[addr], role)
		}
		return fmt.Errorf("persist roles: %w", err)
	}
	return nil
}

// Revoke removes a role from an address. Only an admin can revoke roles.
func (ac *AccessControl) Revoke(caller, addr common.Address, role Role) error {
	if !ac.HasRole(caller, RoleAdmin) {
		return ErrNotAuthorized
	}
	ac.mu.Lock()
	defer ac.mu.Unlock()
	had := ac.roles[addr][role]
	delete(ac.roles[addr], role)
	if err := ac.persist(); err != nil {
		if had {
			ac.roles[addr][role] = true
		}
		return fmt.Errorf("persist roles: %w", err)
	}
	return nil
}

// HasRole reports whether an address holds a role.
func (ac *AccessControl) HasRole(addr common.Address, role Role) bool {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.roles[addr][role]
}

// Pause blocks all mutating registry operations. Admin only.
func (ac *AccessControl) Pause(caller common.Address) error {
	if !ac.HasRole(caller, RoleAdmin) {
		return ErrNotAuthorized
	}
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.paused = true
	return nil
}

// Unpause re-enables mutating registry operations. Admin only.
func (ac *AccessControl) Unpause(caller common.Address) error {
	if !ac.HasRole(caller, RoleAdmin) {
		return ErrNotAuthorized
	}
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.paused = false
	return nil
}

// Paused reports whether the registry is paused.
func (ac *AccessControl) Paused() bool {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.paused
}
