package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// RegistryState is the persisted form of the owner registry.
// Addresses are stored as hex strings for JSON serialization.
type RegistryState struct {
	// Owners is the ordered set of owner addresses. Order is stable across
	// restarts but may change when an owner is removed (swap-remove).
	Owners []string `json:"owners"`

	// Required is the approval threshold. Invariant: 1 <= Required <= len(Owners).
	Required int `json:"required"`

	// Authority is the governance authority address. It is distinct from
	// ownership: the authority mutates the owner set and threshold but does
	// not approve transactions unless it is also an owner.
	Authority string `json:"authority"`
}

// TransactionRecord is the persisted and externally visible projection of a
// ledger entry. Intent fields are immutable once submitted; Executed and
// Approvals are the only mutable state.
type TransactionRecord struct {
	// Index is the entry's position in the append-only ledger. Indices are
	// stable for the lifetime of a deployment and serve as the primary key.
	Index uint64 `json:"index"`

	To          string   `json:"to"`
	Value       *big.Int `json:"value"`
	Payload     []byte   `json:"payload"`
	Description string   `json:"description"`
	Nonce       uint64   `json:"nonce"`

	Executed bool `json:"executed"`

	// Approvals is the set of owner addresses that approved this entry,
	// stored as hex strings. The approval count is always len(Approvals).
	Approvals []string `json:"approvals"`
}

// ApprovalCount returns the number of distinct owner approvals recorded.
func (r *TransactionRecord) ApprovalCount() int {
	return len(r.Approvals)
}

// HasApproval reports whether the given owner has approved this entry.
func (r *TransactionRecord) HasApproval(owner common.Address) bool {
	hex := owner.Hex()
	for _, a := range r.Approvals {
		if a == hex {
			return true
		}
	}
	return false
}

// SubmitTransactionRequest is the request body for POST /wallet/submit.
// Payload and Signature are 0x-prefixed hex; Value is a hex quantity.
type SubmitTransactionRequest struct {
	To          string        `json:"to"`
	Value       *hexutil.Big  `json:"value"`
	Payload     hexutil.Bytes `json:"payload,omitempty"`
	Description string        `json:"description"`
	Nonce       uint64        `json:"nonce"`
	Signature   hexutil.Bytes `json:"signature"`
}

// SubmitTransactionResponse carries the new entry's index and the signer
// recovered from the submission signature.
type SubmitTransactionResponse struct {
	Index  uint64 `json:"index"`
	Signer string `json:"signer"`
}

// ApproveTransactionRequest is the request body for POST /wallet/approve.
// Caller authentication at the transport layer is the integrator's concern;
// the engine validates the caller against the owner registry.
type ApproveTransactionRequest struct {
	Index  uint64 `json:"index"`
	Caller string `json:"caller"`
}

// ExecuteTransactionRequest is the request body for POST /wallet/execute.
type ExecuteTransactionRequest struct {
	Index  uint64 `json:"index"`
	Caller string `json:"caller"`
}

// GovernanceOwnerRequest is the request body for the owner add/remove endpoints.
type GovernanceOwnerRequest struct {
	Caller string `json:"caller"`
	Owner  string `json:"owner"`
}

// GovernanceRequiredRequest is the request body for POST /governance/required.
type GovernanceRequiredRequest struct {
	Caller   string `json:"caller"`
	Required int    `json:"required"`
}

// DigestRequest asks the engine for the exact digest a signer must sign for
// the given intent fields. Exposed so collaborators can produce signatures
// offline and corroborate what they are signing.
type DigestRequest struct {
	To          string        `json:"to"`
	Value       *hexutil.Big  `json:"value"`
	Payload     hexutil.Bytes `json:"payload,omitempty"`
	Description string        `json:"description"`
	Nonce       uint64        `json:"nonce"`
}

// DigestResponse carries the computed digest as a 0x-prefixed hash.
type DigestResponse struct {
	Digest string `json:"digest"`
}

// LedgerRootResponse carries the merkle root over all transaction digests.
type LedgerRootResponse struct {
	Root  string `json:"root"`
	Count uint64 `json:"count"`
}

// LedgerProofResponse carries an inclusion proof for one ledger entry: the
// entry's digest and the sibling hashes from leaf to the returned root.
type LedgerProofResponse struct {
	Root     string   `json:"root"`
	Index    uint64   `json:"index"`
	Leaf     string   `json:"leaf"`
	Siblings []string `json:"siblings"`
}
