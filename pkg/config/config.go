package config

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for wallet server configuration
const (
	EnvWalletPort          = "MSIG_PORT"
	EnvWalletChainID       = "MSIG_CHAIN_ID"
	EnvWalletInstance      = "MSIG_INSTANCE_ADDRESS"
	EnvWalletOwners        = "MSIG_OWNERS"
	EnvWalletRequired      = "MSIG_REQUIRED"
	EnvWalletAuthority     = "MSIG_AUTHORITY"
	EnvWalletPersistence   = "MSIG_PERSISTENCE_TYPE"
	EnvWalletDataDir       = "MSIG_DATA_DIR"
	EnvWalletRedisAddress  = "MSIG_REDIS_ADDRESS"
	EnvWalletRedisPassword = "MSIG_REDIS_PASSWORD"
	EnvWalletRedisDB       = "MSIG_REDIS_DB"
	EnvWalletVerbose       = "MSIG_VERBOSE"
)

// PersistenceType selects the storage backend.
type PersistenceType string

const (
	// PersistenceMemory keeps all state in memory. TESTING ONLY: the owner
	// set, ledger and consumed-signature set are lost on restart.
	PersistenceMemory PersistenceType = "memory"
	PersistenceBadger PersistenceType = "badger"
	PersistenceRedis  PersistenceType = "redis"
)

// WalletServerConfig represents the complete configuration for a wallet server
type WalletServerConfig struct {
	Port int `json:"port"`

	// Signature domain
	ChainID         uint64 `json:"chain_id"`
	InstanceAddress string `json:"instance_address"` // Wallet identity for domain separation

	// Initial registry (ignored when persisted registry state exists)
	Owners    []string `json:"owners"`
	Required  int      `json:"required"`
	Authority string   `json:"authority"` // Governance authority address

	// Storage
	PersistenceType PersistenceType `json:"persistence_type"`
	DataDir         string          `json:"data_dir,omitempty"`       // Badger only
	RedisAddress    string          `json:"redis_address,omitempty"`  // Redis only
	RedisPassword   string          `json:"redis_password,omitempty"` // Redis only
	RedisDB         int             `json:"redis_db,omitempty"`       // Redis only

	// Operational settings
	Verbose bool `json:"verbose"`
}

// ParseOwners splits a comma-separated owner list into trimmed entries.
func ParseOwners(csv string) []string {
	parts := strings.Split(csv, ",")
	owners := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			owners = append(owners, trimmed)
		}
	}
	return owners
}

// Validate validates the wallet server configuration
func (c *WalletServerConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "port must be between 1-65535"))
	}

	if c.InstanceAddress == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("instanceAddress"), "instance address is required"))
	} else if !common.IsHexAddress(c.InstanceAddress) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("instanceAddress"), c.InstanceAddress, "invalid address format"))
	}

	if len(c.Owners) == 0 {
		allErrors = append(allErrors, field.Required(field.NewPath("owners"), "at least one owner is required"))
	}
	for i, owner := range c.Owners {
		if !common.IsHexAddress(owner) {
			allErrors = append(allErrors, field.Invalid(field.NewPath("owners").Index(i), owner, "invalid address format"))
		}
	}

	if c.Required < 1 || c.Required > len(c.Owners) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("required"), c.Required, "must satisfy 1 <= required <= len(owners)"))
	}

	if c.Authority == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("authority"), "governance authority is required"))
	} else if !common.IsHexAddress(c.Authority) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("authority"), c.Authority, "invalid address format"))
	}

	switch c.PersistenceType {
	case PersistenceMemory:
	case PersistenceBadger:
		if c.DataDir == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("dataDir"), "data dir is required for badger persistence"))
		}
	case PersistenceRedis:
		if c.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redis address is required for redis persistence"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("persistenceType"), c.PersistenceType,
			[]string{string(PersistenceMemory), string(PersistenceBadger), string(PersistenceRedis)}))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
