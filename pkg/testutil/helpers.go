package testutil

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/vaultsig/multisig-go/pkg/digest"
	"github.com/vaultsig/multisig-go/pkg/signer"
)

// Key is a test signing identity.
type Key struct {
	PrivateKey *ecdsa.PrivateKey
	Address    common.Address
}

// GenerateKey creates a fresh ECDSA key pair for tests.
func GenerateKey(t *testing.T) *Key {
	t.Helper()

	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	return &Key{
		PrivateKey: priv,
		Address:    crypto.PubkeyToAddress(priv.PublicKey),
	}
}

// GenerateKeys creates n fresh key pairs.
func GenerateKeys(t *testing.T, n int) []*Key {
	t.Helper()

	keys := make([]*Key, n)
	for i := range keys {
		keys[i] = GenerateKey(t)
	}
	return keys
}

// Addresses extracts the addresses of the given keys in order.
func Addresses(keys []*Key) []common.Address {
	addrs := make([]common.Address, len(keys))
	for i, k := range keys {
		addrs[i] = k.Address
	}
	return addrs
}

// SignSubmission computes the transaction digest for the given domain and
// intent fields and signs it with the key, producing the signature blob a
// submission expects.
func SignSubmission(t *testing.T, key *Key, d digest.Domain, to common.Address, value *big.Int, payload []byte, description string, nonce uint64) []byte {
	t.Helper()

	dig, err := digest.ForTransaction(d, to, value, payload, description, nonce)
	require.NoError(t, err)

	sig, err := signer.SignDigest(key.PrivateKey, dig)
	require.NoError(t, err)

	return sig
}

// FailingEffect always fails, simulating an external effect that cannot
// complete. Calls are counted so tests can assert the effect was attempted.
type FailingEffect struct {
	Calls int
}

func (e *FailingEffect) Call(ctx context.Context, to common.Address, value *big.Int, payload []byte) error {
	e.Calls++
	return errors.New("effect deliberately failed")
}

// RecordingEffect records every successful invocation for inspection.
type RecordingEffect struct {
	Calls []EffectCall
}

// EffectCall captures the arguments of one effect invocation.
type EffectCall struct {
	To      common.Address
	Value   *big.Int
	Payload []byte
}

func (e *RecordingEffect) Call(ctx context.Context, to common.Address, value *big.Int, payload []byte) error {
	var v *big.Int
	if value != nil {
		v = new(big.Int).Set(value)
	}
	e.Calls = append(e.Calls, EffectCall{
		To:      to,
		Value:   v,
		Payload: append([]byte(nil), payload...),
	})
	return nil
}
