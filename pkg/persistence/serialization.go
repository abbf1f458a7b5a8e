package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/vaultsig/multisig-go/pkg/types"
)

// MarshalRegistryState serializes a RegistryState to JSON bytes.
func MarshalRegistryState(rs *types.RegistryState) ([]byte, error) {
	if rs == nil {
		return nil, fmt.Errorf("cannot marshal nil RegistryState")
	}

	data, err := json.Marshal(rs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal RegistryState to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalRegistryState deserializes a RegistryState from JSON bytes.
func UnmarshalRegistryState(data []byte) (*types.RegistryState, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var rs types.RegistryState
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to RegistryState: %w", err)
	}

	return &rs, nil
}

// MarshalTransactionRecord serializes a TransactionRecord to JSON bytes.
// big.Int and []byte fields have built-in JSON support.
func MarshalTransactionRecord(tr *types.TransactionRecord) ([]byte, error) {
	if tr == nil {
		return nil, fmt.Errorf("cannot marshal nil TransactionRecord")
	}

	data, err := json.Marshal(tr)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TransactionRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalTransactionRecord deserializes a TransactionRecord from JSON bytes.
func UnmarshalTransactionRecord(data []byte) (*types.TransactionRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var tr types.TransactionRecord
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to TransactionRecord: %w", err)
	}

	return &tr, nil
}
