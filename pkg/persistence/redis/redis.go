package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vaultsig/multisig-go/pkg/persistence"
	"github.com/vaultsig/multisig-go/pkg/types"
)

// Key prefixes for namespacing in Redis
const (
	keyRegistryState     = "msig:registry:main"
	keyPrefixTransaction = "msig:tx:"
	keySchemaVersion     = "msig:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Key sets for listing operations (Redis doesn't support prefix iteration natively)
	keySetTransactions = "msig:txs:index"
	keySetConsumedSigs = "msig:sigs:consumed"
)

// operationTimeout bounds every Redis round trip.
const operationTimeout = 5 * time.Second

// RedisPersistence is a production-ready persistence implementation using Redis.
// Provides durable, distributed storage suitable for cloud-native deployments.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string // Custom prefix for all keys
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant
	// setups). If set, this prefix is prepended to all keys, e.g. "mywallet:"
	// results in keys like "mywallet:msig:tx:0". If empty, keys use the
	// default "msig:" prefix.
	KeyPrefix string
}

// NewRedisPersistence creates a new Redis-backed persistence layer.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB)

	return rp, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		// First time setup - set schema version
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

func (r *RedisPersistence) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), operationTimeout)
}

// SaveRegistryState persists the registry state.
func (r *RedisPersistence) SaveRegistryState(state *types.RegistryState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil RegistryState")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalRegistryState(state)
	if err != nil {
		return fmt.Errorf("failed to marshal RegistryState: %w", err)
	}

	ctx, cancel := r.opContext()
	defer cancel()

	return r.client.Set(ctx, r.prefixKey(keyRegistryState), data, 0).Err()
}

// LoadRegistryState retrieves the registry state.
func (r *RedisPersistence) LoadRegistryState() (*types.RegistryState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := r.opContext()
	defer cancel()

	data, err := r.client.Get(ctx, r.prefixKey(keyRegistryState)).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load RegistryState: %w", err)
	}

	return persistence.UnmarshalRegistryState(data)
}

// SaveSubmission persists a new ledger entry, its index-set membership and
// its consumed signature hash in a single MULTI/EXEC pipeline, so a storage
// failure leaves none of the three writes behind.
func (r *RedisPersistence) SaveSubmission(record *types.TransactionRecord, sigHash string) error {
	if record == nil {
		return fmt.Errorf("cannot save nil TransactionRecord")
	}
	if sigHash == "" {
		return fmt.Errorf("cannot mark empty signature hash")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalTransactionRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal TransactionRecord: %w", err)
	}

	ctx, cancel := r.opContext()
	defer cancel()

	indexStr := strconv.FormatUint(record.Index, 10)
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.prefixKey(keyPrefixTransaction+indexStr), data, 0)
	pipe.SAdd(ctx, r.prefixKey(keySetTransactions), indexStr)
	pipe.SAdd(ctx, r.prefixKey(keySetConsumedSigs), sigHash)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}

	return nil
}

// SaveTransaction persists a ledger entry keyed by index and records the
// index in the index set used for listing.
func (r *RedisPersistence) SaveTransaction(record *types.TransactionRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil TransactionRecord")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalTransactionRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal TransactionRecord: %w", err)
	}

	ctx, cancel := r.opContext()
	defer cancel()

	indexStr := strconv.FormatUint(record.Index, 10)
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.prefixKey(keyPrefixTransaction+indexStr), data, 0)
	pipe.SAdd(ctx, r.prefixKey(keySetTransactions), indexStr)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save TransactionRecord: %w", err)
	}

	return nil
}

// LoadTransaction retrieves a ledger entry by index.
func (r *RedisPersistence) LoadTransaction(index uint64) (*types.TransactionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := r.opContext()
	defer cancel()

	key := r.prefixKey(keyPrefixTransaction + strconv.FormatUint(index, 10))
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load TransactionRecord: %w", err)
	}

	return persistence.UnmarshalTransactionRecord(data)
}

// ListTransactions returns all ledger entries sorted by index.
func (r *RedisPersistence) ListTransactions() ([]*types.TransactionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := r.opContext()
	defer cancel()

	members, err := r.client.SMembers(ctx, r.prefixKey(keySetTransactions)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction indices: %w", err)
	}

	indices := make([]uint64, 0, len(members))
	for _, member := range members {
		index, err := strconv.ParseUint(member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid transaction index %q in index set: %w", member, err)
		}
		indices = append(indices, index)
	}
	sort.Slice(indices, func(i, j int) bool {
		return indices[i] < indices[j]
	})

	result := make([]*types.TransactionRecord, 0, len(indices))
	for _, index := range indices {
		key := r.prefixKey(keyPrefixTransaction + strconv.FormatUint(index, 10))
		data, err := r.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue // Index set ahead of record write; skip
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load TransactionRecord %d: %w", index, err)
		}

		record, err := persistence.UnmarshalTransactionRecord(data)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}

	return result, nil
}

// IsSignatureConsumed reports whether a signature hash has been consumed.
func (r *RedisPersistence) IsSignatureConsumed(sigHash string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false, fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := r.opContext()
	defer cancel()

	return r.client.SIsMember(ctx, r.prefixKey(keySetConsumedSigs), sigHash).Result()
}

// ListConsumedSignatures returns all consumed signature hashes.
func (r *RedisPersistence) ListConsumedSignatures() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := r.opContext()
	defer cancel()

	members, err := r.client.SMembers(ctx, r.prefixKey(keySetConsumedSigs)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list consumed signatures: %w", err)
	}
	sort.Strings(members)

	return members, nil
}

// Close cleanly shuts down the persistence layer.
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	return r.client.Close()
}

// HealthCheck verifies the persistence layer is operational.
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := r.opContext()
	defer cancel()

	return r.client.Ping(ctx).Err()
}
