package signer

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// SignatureLength is the expected length of an [R || S || V] signature blob.
const SignatureLength = 65

// SignDigest signs a wallet digest with the given private key, producing a
// 65-byte [R || S || V] signature blob. This is the client/test-side
// counterpart of RecoverSigner.
func SignDigest(privateKey *ecdsa.PrivateKey, digest common.Hash) ([]byte, error) {
	if privateKey == nil {
		return nil, errors.New("private key is nil")
	}

	sig, err := crypto.Sign(digest.Bytes(), privateKey)
	if err != nil {
		return nil, errors.Wrap(err, "signing digest")
	}
	return sig, nil
}

// RecoverSigner recovers the signer address from a digest and a 65-byte
// signature blob. Ethereum tooling may place the recovery id at 27/28; it is
// normalized to 0/1 before recovery. The caller is responsible for checking
// the recovered address against the owner registry.
func RecoverSigner(digest common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, errors.Errorf("invalid signature length: expected %d bytes, got %d", SignatureLength, len(signature))
	}

	// Normalize the recovery byte without mutating the caller's slice.
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "recovering public key")
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}

// SignatureHash returns the keccak256 hash of a signature blob. The wallet
// keys its consumed-signature set by this hash, so a given blob can authorize
// at most one submission regardless of which transaction it was computed over.
func SignatureHash(signature []byte) common.Hash {
	return crypto.Keccak256Hash(signature)
}
