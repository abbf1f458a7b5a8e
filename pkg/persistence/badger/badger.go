package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/vaultsig/multisig-go/pkg/persistence"
	"github.com/vaultsig/multisig-go/pkg/types"
)

// Key prefixes for namespacing
const (
	keyRegistryState     = "registry:main"
	keyPrefixTransaction = "tx:"
	keyPrefixConsumedSig = "sig:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// txKey builds a zero-padded transaction key so that byte-ordered iteration
// yields entries in index order.
func txKey(index uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefixTransaction, index))
}

// BadgerPersistence is a production-ready persistence implementation using Badger.
// Provides durable, disk-based storage with ACID guarantees.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerPersistence creates a new Badger-backed persistence layer.
// The database is opened at the specified path with SyncWrites enabled for
// durability. A background goroutine is started for garbage collection.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true // Ensure durability (fsync on every write)
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1 // We don't need versioning within Badger

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)

	return bp, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			// First time setup - set schema version
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic garbage collection in the background
func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// SaveRegistryState persists the registry state.
func (b *BadgerPersistence) SaveRegistryState(state *types.RegistryState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil RegistryState")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalRegistryState(state)
	if err != nil {
		return fmt.Errorf("failed to marshal RegistryState: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keyRegistryState), data)
	})
}

// LoadRegistryState retrieves the registry state.
func (b *BadgerPersistence) LoadRegistryState() (*types.RegistryState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	data, err := b.get([]byte(keyRegistryState))
	if err != nil {
		return nil, fmt.Errorf("failed to load RegistryState: %w", err)
	}
	if data == nil {
		return nil, nil // Not found
	}

	state, err := persistence.UnmarshalRegistryState(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal RegistryState: %w", err)
	}

	return state, nil
}

// SaveSubmission persists a new ledger entry and its consumed signature hash
// in a single Badger transaction, so a storage failure leaves neither write
// behind.
func (b *BadgerPersistence) SaveSubmission(record *types.TransactionRecord, sigHash string) error {
	if record == nil {
		return fmt.Errorf("cannot save nil TransactionRecord")
	}
	if sigHash == "" {
		return fmt.Errorf("cannot mark empty signature hash")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalTransactionRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal TransactionRecord: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(txKey(record.Index), data); err != nil {
			return err
		}
		return txn.Set([]byte(keyPrefixConsumedSig+sigHash), []byte(strconv.FormatInt(time.Now().Unix(), 10)))
	})
}

// SaveTransaction persists a ledger entry keyed by index.
func (b *BadgerPersistence) SaveTransaction(record *types.TransactionRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil TransactionRecord")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalTransactionRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal TransactionRecord: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(txKey(record.Index), data)
	})
}

// LoadTransaction retrieves a ledger entry by index.
func (b *BadgerPersistence) LoadTransaction(index uint64) (*types.TransactionRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	data, err := b.get(txKey(index))
	if err != nil {
		return nil, fmt.Errorf("failed to load TransactionRecord: %w", err)
	}
	if data == nil {
		return nil, nil // Not found
	}

	record, err := persistence.UnmarshalTransactionRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal TransactionRecord: %w", err)
	}

	return record, nil
}

// ListTransactions returns all ledger entries sorted by index.
// Zero-padded keys make prefix iteration order equal index order.
func (b *BadgerPersistence) ListTransactions() ([]*types.TransactionRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	result := make([]*types.TransactionRecord, 0)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixTransaction)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var data []byte
			err := it.Item().Value(func(val []byte) error {
				data = append([]byte{}, val...) // Copy value
				return nil
			})
			if err != nil {
				return err
			}

			record, err := persistence.UnmarshalTransactionRecord(data)
			if err != nil {
				return err
			}
			result = append(result, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	return result, nil
}

// IsSignatureConsumed reports whether a signature hash has been consumed.
func (b *BadgerPersistence) IsSignatureConsumed(sigHash string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, fmt.Errorf("persistence layer is closed")
	}

	data, err := b.get([]byte(keyPrefixConsumedSig + sigHash))
	if err != nil {
		return false, fmt.Errorf("failed to check consumed signature: %w", err)
	}
	return data != nil, nil
}

// ListConsumedSignatures returns all consumed signature hashes.
func (b *BadgerPersistence) ListConsumedSignatures() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	result := make([]string, 0)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixConsumedSig)
		opts.PrefetchValues = false // Keys only
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			result = append(result, key[len(keyPrefixConsumedSig):])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list consumed signatures: %w", err)
	}

	return result, nil
}

// Close cleanly shuts down the persistence layer.
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	// Stop background GC before closing the database
	b.gcCancel()
	b.gcWg.Wait()

	return b.db.Close()
}

// HealthCheck verifies the persistence layer is operational.
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	// A read transaction against a known key exercises the storage path.
	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// get reads a single key, returning nil (not an error) when absent.
func (b *BadgerPersistence) get(key []byte) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err == badgerdb.ErrKeyNotFound {
			return nil // Not found is not an error
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...) // Copy value
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
