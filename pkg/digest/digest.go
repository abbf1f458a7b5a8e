package digest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

/*
Transaction Digest Format

Signatures authorize a specific transaction on a specific wallet instance, so
the signed digest follows the EIP-712 typed-data construction:

	digest = keccak256(0x19 || 0x01 || domainSeparator || structHash)

	domainSeparator = keccak256(abi.encode(
		keccak256("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
		keccak256(name), keccak256(version), chainId, verifyingContract))

	structHash = keccak256(abi.encode(
		keccak256("Transaction(address to,uint256 value,bytes32 payloadHash,bytes32 descriptionHash,uint256 nonce)"),
		to, value, keccak256(payload), keccak256(description), nonce))

Binding name, version, chain ID and the wallet's own address into the domain
separator means a signature collected for one deployment or protocol version
is meaningless on any other. Variable-length fields (payload, description) are
reduced to fixed-width keccak256 digests before being folded in, so two
transactions differing only in payload or description content always produce
different digests.

All functions here are pure. The same computation is exposed over HTTP so
signers can independently produce the exact bytes they are asked to sign.
*/

const (
	// DomainName identifies this protocol in the domain separator.
	DomainName = "VaultSig Wallet"

	// DomainVersion is bumped on any change to the digest format.
	DomainVersion = "1"
)

var (
	domainTypeHash = crypto.Keccak256Hash(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

	transactionTypeHash = crypto.Keccak256Hash(
		[]byte("Transaction(address to,uint256 value,bytes32 payloadHash,bytes32 descriptionHash,uint256 nonce)"))

	bytes32Type, _ = abi.NewType("bytes32", "", nil)
	addressType, _ = abi.NewType("address", "", nil)
	uint256Type, _ = abi.NewType("uint256", "", nil)

	domainArguments = abi.Arguments{
		{Type: bytes32Type}, // domain type hash
		{Type: bytes32Type}, // keccak256(name)
		{Type: bytes32Type}, // keccak256(version)
		{Type: uint256Type}, // chain id
		{Type: addressType}, // verifying contract
	}

	transactionArguments = abi.Arguments{
		{Type: bytes32Type}, // transaction type hash
		{Type: addressType}, // to
		{Type: uint256Type}, // value
		{Type: bytes32Type}, // keccak256(payload)
		{Type: bytes32Type}, // keccak256(description)
		{Type: uint256Type}, // nonce
	}
)

// Domain identifies the wallet instance a signature is bound to.
type Domain struct {
	// ChainID is the chain or environment identifier of the deployment.
	ChainID uint64

	// VerifyingInstance is the wallet's own identity address. Two wallets on
	// the same chain still produce disjoint digests.
	VerifyingInstance common.Address
}

// Separator computes the EIP-712 domain separator for this instance.
func (d Domain) Separator() (common.Hash, error) {
	encoded, err := domainArguments.Pack(
		[32]byte(domainTypeHash),
		[32]byte(crypto.Keccak256Hash([]byte(DomainName))),
		[32]byte(crypto.Keccak256Hash([]byte(DomainVersion))),
		new(big.Int).SetUint64(d.ChainID),
		d.VerifyingInstance,
	)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "packing domain separator")
	}
	return crypto.Keccak256Hash(encoded), nil
}

// ForTransaction computes the digest a signer must sign to authorize the
// given transaction intent on this wallet instance. A nil value is treated
// as zero.
func ForTransaction(d Domain, to common.Address, value *big.Int, payload []byte, description string, nonce uint64) (common.Hash, error) {
	if value == nil {
		value = new(big.Int)
	}

	structEncoded, err := transactionArguments.Pack(
		[32]byte(transactionTypeHash),
		to,
		value,
		[32]byte(crypto.Keccak256Hash(payload)),
		[32]byte(crypto.Keccak256Hash([]byte(description))),
		new(big.Int).SetUint64(nonce),
	)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "packing transaction struct")
	}
	structHash := crypto.Keccak256Hash(structEncoded)

	separator, err := d.Separator()
	if err != nil {
		return common.Hash{}, err
	}

	return crypto.Keccak256Hash([]byte{0x19, 0x01}, separator.Bytes(), structHash.Bytes()), nil
}
