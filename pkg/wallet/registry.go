package wallet

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Registry holds the current owner set and the approval threshold. It is the
// single source of truth for "who may approve" and "how many approvals are
// enough"; the threshold is always read at call time, never captured at
// submission time.
//
// Registry is not self-locking. The wallet serializes every access under its
// own lock so owner-set reads are never interleaved with governance changes.
type Registry struct {
	owners  []common.Address
	members map[common.Address]struct{}

	required int
}

// NewRegistry builds a registry from an ordered owner list and a threshold.
// Fails with ErrInvalidOwnerSet on an empty list, a zero address, or a
// duplicate, and with ErrInvalidThreshold unless 1 <= required <= len(owners).
func NewRegistry(owners []common.Address, required int) (*Registry, error) {
	if len(owners) == 0 {
		return nil, errors.Wrap(ErrInvalidOwnerSet, "no owners")
	}

	members := make(map[common.Address]struct{}, len(owners))
	ordered := make([]common.Address, 0, len(owners))
	for _, owner := range owners {
		if owner == (common.Address{}) {
			return nil, errors.Wrap(ErrInvalidOwnerSet, "zero address owner")
		}
		if _, ok := members[owner]; ok {
			return nil, errors.Wrapf(ErrInvalidOwnerSet, "duplicate owner %s", owner.Hex())
		}
		members[owner] = struct{}{}
		ordered = append(ordered, owner)
	}

	if required < 1 || required > len(ordered) {
		return nil, errors.Wrapf(ErrInvalidThreshold, "required %d with %d owners", required, len(ordered))
	}

	return &Registry{
		owners:   ordered,
		members:  members,
		required: required,
	}, nil
}

// IsOwner reports whether the address is a current owner.
func (r *Registry) IsOwner(addr common.Address) bool {
	_, ok := r.members[addr]
	return ok
}

// Owners returns a copy of the current owner list.
func (r *Registry) Owners() []common.Address {
	out := make([]common.Address, len(r.owners))
	copy(out, r.owners)
	return out
}

// Required returns the current approval threshold.
func (r *Registry) Required() int {
	return r.required
}

// AddOwner appends a new owner. Fails with ErrInvalidPrincipal for the zero
// address and ErrOwnerAlreadyExists for a current owner.
func (r *Registry) AddOwner(owner common.Address) error {
	if owner == (common.Address{}) {
		return errors.Wrap(ErrInvalidPrincipal, "zero address owner")
	}
	if _, ok := r.members[owner]; ok {
		return errors.Wrapf(ErrOwnerAlreadyExists, "owner %s", owner.Hex())
	}

	r.members[owner] = struct{}{}
	r.owners = append(r.owners, owner)
	return nil
}

// RemoveOwner removes a current owner. Fails with ErrNotOwner if the address
// is not an owner and ErrCannotRemoveBelowThreshold if removal would leave
// fewer owners than the threshold requires. The remaining order may change:
// the last owner is swapped into the removed slot.
func (r *Registry) RemoveOwner(owner common.Address) error {
	if _, ok := r.members[owner]; !ok {
		return errors.Wrapf(ErrNotOwner, "owner %s", owner.Hex())
	}
	if len(r.owners)-1 < r.required {
		return errors.Wrapf(ErrCannotRemoveBelowThreshold, "%d owners remaining, %d required", len(r.owners)-1, r.required)
	}

	delete(r.members, owner)
	for i, o := range r.owners {
		if o == owner {
			last := len(r.owners) - 1
			r.owners[i] = r.owners[last]
			r.owners = r.owners[:last]
			break
		}
	}
	return nil
}

// ChangeRequired updates the approval threshold. Fails with
// ErrInvalidThreshold unless 1 <= required <= len(owners).
func (r *Registry) ChangeRequired(required int) error {
	if required < 1 || required > len(r.owners) {
		return errors.Wrapf(ErrInvalidThreshold, "required %d with %d owners", required, len(r.owners))
	}
	r.required = required
	return nil
}
