package wallet

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ownerA = common.HexToAddress("0xa000000000000000000000000000000000000001")
	ownerB = common.HexToAddress("0xb000000000000000000000000000000000000002")
	ownerC = common.HexToAddress("0xc000000000000000000000000000000000000003")
	ownerD = common.HexToAddress("0xd000000000000000000000000000000000000004")
)

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry([]common.Address{ownerA, ownerB, ownerC}, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, r.Required())
	assert.Equal(t, []common.Address{ownerA, ownerB, ownerC}, r.Owners())
	assert.True(t, r.IsOwner(ownerA))
	assert.True(t, r.IsOwner(ownerB))
	assert.True(t, r.IsOwner(ownerC))
	assert.False(t, r.IsOwner(ownerD))
}

func TestNewRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		owners   []common.Address
		required int
		sentinel error
	}{
		{"empty owners", nil, 1, ErrInvalidOwnerSet},
		{"zero address owner", []common.Address{{}}, 1, ErrInvalidOwnerSet},
		{"duplicate owner", []common.Address{ownerA, ownerA}, 1, ErrInvalidOwnerSet},
		{"zero threshold", []common.Address{ownerA, ownerB}, 0, ErrInvalidThreshold},
		{"threshold above owner count", []common.Address{ownerA, ownerB}, 3, ErrInvalidThreshold},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRegistry(tc.owners, tc.required)
			assert.ErrorIs(t, err, tc.sentinel)
		})
	}
}

func TestRegistry_AddOwner(t *testing.T) {
	r, err := NewRegistry([]common.Address{ownerA, ownerB}, 2)
	require.NoError(t, err)

	require.NoError(t, r.AddOwner(ownerC))
	assert.True(t, r.IsOwner(ownerC))
	assert.Equal(t, []common.Address{ownerA, ownerB, ownerC}, r.Owners())

	assert.ErrorIs(t, r.AddOwner(ownerC), ErrOwnerAlreadyExists)
	assert.ErrorIs(t, r.AddOwner(common.Address{}), ErrInvalidPrincipal)
}

func TestRegistry_RemoveOwner(t *testing.T) {
	r, err := NewRegistry([]common.Address{ownerA, ownerB, ownerC}, 2)
	require.NoError(t, err)

	require.NoError(t, r.RemoveOwner(ownerA))
	assert.False(t, r.IsOwner(ownerA))
	assert.Len(t, r.Owners(), 2)

	// Dropping to one owner would make required=2 unsatisfiable
	assert.ErrorIs(t, r.RemoveOwner(ownerB), ErrCannotRemoveBelowThreshold)
	assert.True(t, r.IsOwner(ownerB))

	assert.ErrorIs(t, r.RemoveOwner(ownerD), ErrNotOwner)
}

func TestRegistry_ChangeRequired(t *testing.T) {
	r, err := NewRegistry([]common.Address{ownerA, ownerB, ownerC}, 2)
	require.NoError(t, err)

	require.NoError(t, r.ChangeRequired(3))
	assert.Equal(t, 3, r.Required())

	require.NoError(t, r.ChangeRequired(1))
	assert.Equal(t, 1, r.Required())

	assert.ErrorIs(t, r.ChangeRequired(0), ErrInvalidThreshold)
	assert.ErrorIs(t, r.ChangeRequired(4), ErrInvalidThreshold)
	assert.Equal(t, 1, r.Required())
}

func TestRegistry_OwnersReturnsCopy(t *testing.T) {
	r, err := NewRegistry([]common.Address{ownerA, ownerB}, 1)
	require.NoError(t, err)

	owners := r.Owners()
	owners[0] = ownerD

	assert.Equal(t, []common.Address{ownerA, ownerB}, r.Owners())
}
