package memory

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/vaultsig/multisig-go/pkg/types"
)

// MemoryPersistence is an in-memory implementation of IWalletPersistence.
// This implementation is intended for TESTING ONLY.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	// Registry state (owners, threshold, authority)
	registry *types.RegistryState

	// Transaction ledger: index -> TransactionRecord
	transactions map[uint64]*types.TransactionRecord

	// Consumed signature hashes
	consumedSigs map[string]struct{}

	// Closed flag
	closed bool
}

// NewMemoryPersistence creates a new in-memory persistence layer.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		transactions: make(map[uint64]*types.TransactionRecord),
		consumedSigs: make(map[string]struct{}),
	}
}

// SaveRegistryState persists the registry state.
func (m *MemoryPersistence) SaveRegistryState(state *types.RegistryState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil RegistryState")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	m.registry = deepCopyRegistryState(state)
	return nil
}

// LoadRegistryState retrieves the registry state.
func (m *MemoryPersistence) LoadRegistryState() (*types.RegistryState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	if m.registry == nil {
		return nil, nil // Not found is not an error
	}

	return deepCopyRegistryState(m.registry), nil
}

// SaveSubmission persists a new ledger entry and its consumed signature hash
// in one step. Both maps are updated under the same lock, so a failure (nil
// record, empty hash, closed layer) leaves neither written.
func (m *MemoryPersistence) SaveSubmission(record *types.TransactionRecord, sigHash string) error {
	if record == nil {
		return fmt.Errorf("cannot save nil TransactionRecord")
	}
	if sigHash == "" {
		return fmt.Errorf("cannot mark empty signature hash")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	m.transactions[record.Index] = deepCopyTransactionRecord(record)
	m.consumedSigs[sigHash] = struct{}{}
	return nil
}

// SaveTransaction persists a ledger entry keyed by index.
func (m *MemoryPersistence) SaveTransaction(record *types.TransactionRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil TransactionRecord")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	m.transactions[record.Index] = deepCopyTransactionRecord(record)
	return nil
}

// LoadTransaction retrieves a ledger entry by index.
func (m *MemoryPersistence) LoadTransaction(index uint64) (*types.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	record, exists := m.transactions[index]
	if !exists {
		return nil, nil // Not found is not an error
	}

	return deepCopyTransactionRecord(record), nil
}

// ListTransactions returns all ledger entries sorted by index.
func (m *MemoryPersistence) ListTransactions() ([]*types.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	indices := make([]uint64, 0, len(m.transactions))
	for index := range m.transactions {
		indices = append(indices, index)
	}
	sort.Slice(indices, func(i, j int) bool {
		return indices[i] < indices[j]
	})

	result := make([]*types.TransactionRecord, 0, len(indices))
	for _, index := range indices {
		result = append(result, deepCopyTransactionRecord(m.transactions[index]))
	}

	return result, nil
}

// IsSignatureConsumed reports whether a signature hash has been consumed.
func (m *MemoryPersistence) IsSignatureConsumed(sigHash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, fmt.Errorf("persistence layer is closed")
	}

	_, ok := m.consumedSigs[sigHash]
	return ok, nil
}

// ListConsumedSignatures returns all consumed signature hashes.
func (m *MemoryPersistence) ListConsumedSignatures() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	result := make([]string, 0, len(m.consumedSigs))
	for sigHash := range m.consumedSigs {
		result = append(result, sigHash)
	}
	sort.Strings(result)

	return result, nil
}

// Close shuts down the persistence layer.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return nil
}

// Deep copy helpers

func deepCopyRegistryState(rs *types.RegistryState) *types.RegistryState {
	if rs == nil {
		return nil
	}

	owners := make([]string, len(rs.Owners))
	copy(owners, rs.Owners)

	return &types.RegistryState{
		Owners:    owners,
		Required:  rs.Required,
		Authority: rs.Authority,
	}
}

func deepCopyTransactionRecord(tr *types.TransactionRecord) *types.TransactionRecord {
	if tr == nil {
		return nil
	}

	var value *big.Int
	if tr.Value != nil {
		value = new(big.Int).Set(tr.Value)
	}

	var payload []byte
	if len(tr.Payload) > 0 {
		payload = make([]byte, len(tr.Payload))
		copy(payload, tr.Payload)
	}

	approvals := make([]string, len(tr.Approvals))
	copy(approvals, tr.Approvals)

	return &types.TransactionRecord{
		Index:       tr.Index,
		To:          tr.To,
		Value:       value,
		Payload:     payload,
		Description: tr.Description,
		Nonce:       tr.Nonce,
		Executed:    tr.Executed,
		Approvals:   approvals,
	}
}
