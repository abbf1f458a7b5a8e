package badger

import (
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultsig/multisig-go/pkg/logger"
	"github.com/vaultsig/multisig-go/pkg/types"
)

func newTestPersistence(t *testing.T) *BadgerPersistence {
	t.Helper()

	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	bp, err := NewBadgerPersistence(t.TempDir(), testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bp.Close() })

	return bp
}

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

func TestBadgerPersistence_RegistryState(t *testing.T) {
	bp := newTestPersistence(t)

	// Not found is nil, not an error
	state, err := bp.LoadRegistryState()
	require.NoError(t, err)
	assert.Nil(t, state)

	original := sampleRegistryState()
	require.NoError(t, bp.SaveRegistryState(original))

	loaded, err := bp.LoadRegistryState()
	require.NoError(t, err)
	assert.Equal(t, original, loaded)

	assert.Error(t, bp.SaveRegistryState(nil))
}

func TestBadgerPersistence_SaveAndLoadTransaction(t *testing.T) {
	bp := newTestPersistence(t)

	tx := sampleTransaction(0)
	require.NoError(t, bp.SaveTransaction(tx))

	loaded, err := bp.LoadTransaction(0)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, tx, loaded)

	// Overwrite with updated state
	tx.Executed = true
	tx.Approvals = append(tx.Approvals, "0xB000000000000000000000000000000000000002")
	require.NoError(t, bp.SaveTransaction(tx))

	loaded, err = bp.LoadTransaction(0)
	require.NoError(t, err)
	assert.True(t, loaded.Executed)
	assert.Len(t, loaded.Approvals, 2)
}

func TestBadgerPersistence_LoadTransaction_NotFound(t *testing.T) {
	bp := newTestPersistence(t)

	loaded, err := bp.LoadTransaction(9999)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestBadgerPersistence_SaveTransaction_Nil(t *testing.T) {
	bp := newTestPersistence(t)

	err := bp.SaveTransaction(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil TransactionRecord")
}

func TestBadgerPersistence_ListTransactions(t *testing.T) {
	bp := newTestPersistence(t)

	// Save out of order; zero-padded keys must still list by index
	for _, index := range []uint64{3, 0, 11, 2, 1} {
		require.NoError(t, bp.SaveTransaction(sampleTransaction(index)))
	}

	listed, err := bp.ListTransactions()
	require.NoError(t, err)
	require.Len(t, listed, 5)

	expected := []uint64{0, 1, 2, 3, 11}
	for i, record := range listed {
		assert.Equal(t, expected[i], record.Index)
	}
}

func TestBadgerPersistence_ListTransactions_Empty(t *testing.T) {
	bp := newTestPersistence(t)

	listed, err := bp.ListTransactions()
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestBadgerPersistence_SaveSubmission(t *testing.T) {
	bp := newTestPersistence(t)

	used, err := bp.IsSignatureConsumed("0xabc")
	require.NoError(t, err)
	assert.False(t, used)

	require.NoError(t, bp.SaveSubmission(sampleTransaction(0), "0xabc"))
	require.NoError(t, bp.SaveSubmission(sampleTransaction(1), "0xdef"))

	// Both the record and the consumption mark land
	record, err := bp.LoadTransaction(0)
	require.NoError(t, err)
	assert.Equal(t, sampleTransaction(0), record)

	used, err = bp.IsSignatureConsumed("0xabc")
	require.NoError(t, err)
	assert.True(t, used)

	all, err := bp.ListConsumedSignatures()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"0xabc", "0xdef"}, all)

	assert.Error(t, bp.SaveSubmission(nil, "0xabc"))
	assert.Error(t, bp.SaveSubmission(sampleTransaction(2), ""))
}

func TestBadgerPersistence_Close(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	bp, err := NewBadgerPersistence(t.TempDir(), testLogger)
	require.NoError(t, err)

	require.NoError(t, bp.Close())

	// Operations after close should fail
	err = bp.SaveRegistryState(sampleRegistryState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")

	_, err = bp.LoadTransaction(0)
	require.Error(t, err)

	require.Error(t, bp.HealthCheck())

	// Second close should also succeed
	require.NoError(t, bp.Close())
}

func TestBadgerPersistence_HealthCheck(t *testing.T) {
	bp := newTestPersistence(t)
	require.NoError(t, bp.HealthCheck())
}

func TestBadgerPersistence_ThreadSafety(t *testing.T) {
	bp := newTestPersistence(t)

	var wg sync.WaitGroup
	numGoroutines := 10
	numOperations := 50

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				err := bp.SaveTransaction(sampleTransaction(uint64(id*1000 + j)))
				assert.NoError(t, err)
			}
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				_, err := bp.LoadTransaction(uint64(id*1000 + j))
				assert.NoError(t, err)
			}
		}(i)
	}

	wg.Wait()
}

func TestBadgerPersistence_AcrossRestarts(t *testing.T) {
	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	bp1, err := NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)

	require.NoError(t, bp1.SaveRegistryState(sampleRegistryState()))
	require.NoError(t, bp1.SaveSubmission(sampleTransaction(0), "0xabc"))
	require.NoError(t, bp1.Close())

	bp2, err := NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)
	defer func() { _ = bp2.Close() }()

	state, err := bp2.LoadRegistryState()
	require.NoError(t, err)
	assert.Equal(t, sampleRegistryState(), state)

	record, err := bp2.LoadTransaction(0)
	require.NoError(t, err)
	assert.Equal(t, sampleTransaction(0), record)

	used, err := bp2.IsSignatureConsumed("0xabc")
	require.NoError(t, err)
	assert.True(t, used)
}
