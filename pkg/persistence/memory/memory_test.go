package memory

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultsig/multisig-go/pkg/types"
)

func sampleRegistryState() *types.RegistryState {
	return &types.RegistryState{
		Owners: []string{
			"0xA000000000000000000000000000000000000001",
			"0xB000000000000000000000000000000000000002",
		},
		Required:  2,
		Authority: "0xC000000000000000000000000000000000000003",
	}
}

func sampleTransaction(index uint64) *types.TransactionRecord {
	return &types.TransactionRecord{
		Index:       index,
		To:          "0x2000000000000000000000000000000000000002",
		Value:       big.NewInt(42),
		Payload:     []byte{0xde, 0xad},
		Description: "sample",
		Nonce:       7,
		Approvals:   []string{"0xA000000000000000000000000000000000000001"},
	}
}

func TestMemoryPersistence_RegistryState(t *testing.T) {
	m := NewMemoryPersistence()

	// Not found is nil, not an error
	state, err := m.LoadRegistryState()
	require.NoError(t, err)
	assert.Nil(t, state)

	original := sampleRegistryState()
	require.NoError(t, m.SaveRegistryState(original))

	loaded, err := m.LoadRegistryState()
	require.NoError(t, err)
	assert.Equal(t, original, loaded)

	// Mutating the loaded copy must not affect stored state
	loaded.Owners[0] = "tampered"
	reloaded, err := m.LoadRegistryState()
	require.NoError(t, err)
	assert.Equal(t, original.Owners[0], reloaded.Owners[0])

	assert.Error(t, m.SaveRegistryState(nil))
}

func TestMemoryPersistence_Transactions(t *testing.T) {
	m := NewMemoryPersistence()

	record, err := m.LoadTransaction(0)
	require.NoError(t, err)
	assert.Nil(t, record)

	tx0 := sampleTransaction(0)
	tx1 := sampleTransaction(1)
	require.NoError(t, m.SaveTransaction(tx1))
	require.NoError(t, m.SaveTransaction(tx0))

	loaded, err := m.LoadTransaction(0)
	require.NoError(t, err)
	assert.Equal(t, tx0, loaded)

	// Listed in index order regardless of save order
	all, err := m.ListTransactions()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, uint64(0), all[0].Index)
	assert.Equal(t, uint64(1), all[1].Index)

	// Saving the same index overwrites
	tx0.Executed = true
	require.NoError(t, m.SaveTransaction(tx0))
	loaded, err = m.LoadTransaction(0)
	require.NoError(t, err)
	assert.True(t, loaded.Executed)

	assert.Error(t, m.SaveTransaction(nil))
}

func TestMemoryPersistence_SaveSubmission(t *testing.T) {
	m := NewMemoryPersistence()

	used, err := m.IsSignatureConsumed("0xabc")
	require.NoError(t, err)
	assert.False(t, used)

	require.NoError(t, m.SaveSubmission(sampleTransaction(0), "0xabc"))
	require.NoError(t, m.SaveSubmission(sampleTransaction(1), "0xdef"))

	// Both the record and the consumption mark land
	record, err := m.LoadTransaction(0)
	require.NoError(t, err)
	assert.Equal(t, sampleTransaction(0), record)

	used, err = m.IsSignatureConsumed("0xabc")
	require.NoError(t, err)
	assert.True(t, used)

	all, err := m.ListConsumedSignatures()
	require.NoError(t, err)
	assert.Equal(t, []string{"0xabc", "0xdef"}, all)
}

func TestMemoryPersistence_SaveSubmission_Invalid(t *testing.T) {
	m := NewMemoryPersistence()

	assert.Error(t, m.SaveSubmission(nil, "0xabc"))
	assert.Error(t, m.SaveSubmission(sampleTransaction(0), ""))

	// A rejected call writes neither surface
	record, err := m.LoadTransaction(0)
	require.NoError(t, err)
	assert.Nil(t, record)

	used, err := m.IsSignatureConsumed("0xabc")
	require.NoError(t, err)
	assert.False(t, used)
}

func TestMemoryPersistence_Close(t *testing.T) {
	m := NewMemoryPersistence()
	require.NoError(t, m.HealthCheck())
	require.NoError(t, m.Close())

	assert.Error(t, m.HealthCheck())
	assert.Error(t, m.SaveRegistryState(sampleRegistryState()))
	_, err := m.LoadRegistryState()
	assert.Error(t, err)
	assert.Error(t, m.SaveTransaction(sampleTransaction(0)))
	_, err = m.ListTransactions()
	assert.Error(t, err)
	assert.Error(t, m.SaveSubmission(sampleTransaction(0), "0xabc"))
	_, err = m.ListConsumedSignatures()
	assert.Error(t, err)
}
