package persistence

import "github.com/vaultsig/multisig-go/pkg/types"

// IWalletPersistence defines the interface for persisting wallet state across
// restarts. All implementations must be thread-safe as wallet operations are
// concurrent.
//
// Three state surfaces are durable:
// - Registry state (owner set, threshold, governance authority)
// - The transaction ledger (append-only, keyed by stable index)
// - The consumed-signature set (grows monotonically, never shrinks)
type IWalletPersistence interface {
	// Registry State

	// SaveRegistryState persists the owner set, threshold and authority.
	// Overwrites any existing state.
	SaveRegistryState(state *types.RegistryState) error

	// LoadRegistryState retrieves the registry state.
	// Returns nil if none exists (first run), error only on storage failure.
	LoadRegistryState() (*types.RegistryState, error)

	// Transaction Ledger

	// SaveSubmission atomically persists a newly submitted ledger entry and
	// marks its authorizing signature hash (0x-prefixed hex) as consumed.
	// Either both writes land or neither does: a failure must not leave the
	// record without the consumption mark or vice versa.
	SaveSubmission(record *types.TransactionRecord, sigHash string) error

	// SaveTransaction persists a ledger entry keyed by its index. Called on
	// approval/execution state changes (overwrite). Indices are never reused.
	SaveTransaction(record *types.TransactionRecord) error

	// LoadTransaction retrieves a ledger entry by index.
	// Returns nil if the entry doesn't exist, error only on storage failure.
	LoadTransaction(index uint64) (*types.TransactionRecord, error)

	// ListTransactions returns all persisted entries sorted by index
	// (ascending). Returns empty slice if none exist, error only on storage
	// failure.
	ListTransactions() ([]*types.TransactionRecord, error)

	// Consumed-Signature Set

	// IsSignatureConsumed reports whether a signature hash has been consumed.
	IsSignatureConsumed(sigHash string) (bool, error)

	// ListConsumedSignatures returns all consumed signature hashes. Used
	// during startup to rebuild the in-memory set.
	ListConsumedSignatures() ([]string, error)

	// Lifecycle Management

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	// Returns nil if healthy, error describing the problem if not.
	// Should be called during startup to fail fast.
	HealthCheck() error
}
