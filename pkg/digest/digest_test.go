package digest

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testDomain = Domain{
		ChainID:           31337,
		VerifyingInstance: common.HexToAddress("0x1000000000000000000000000000000000000001"),
	}
	testTo = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

func TestForTransaction_Deterministic(t *testing.T) {
	d1, err := ForTransaction(testDomain, testTo, big.NewInt(1), []byte("data"), "Test transaction", 0)
	require.NoError(t, err)

	d2, err := ForTransaction(testDomain, testTo, big.NewInt(1), []byte("data"), "Test transaction", 0)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.NotEqual(t, common.Hash{}, d1)
}

func TestForTransaction_NilValueIsZero(t *testing.T) {
	withNil, err := ForTransaction(testDomain, testTo, nil, nil, "", 0)
	require.NoError(t, err)

	withZero, err := ForTransaction(testDomain, testTo, big.NewInt(0), nil, "", 0)
	require.NoError(t, err)

	assert.Equal(t, withZero, withNil)
}

func TestForTransaction_FieldsDifferentiate(t *testing.T) {
	base, err := ForTransaction(testDomain, testTo, big.NewInt(1), []byte("data"), "desc", 7)
	require.NoError(t, err)

	tests := []struct {
		name    string
		compute func() (common.Hash, error)
	}{
		{"to", func() (common.Hash, error) {
			return ForTransaction(testDomain, common.HexToAddress("0x3000000000000000000000000000000000000003"), big.NewInt(1), []byte("data"), "desc", 7)
		}},
		{"value", func() (common.Hash, error) {
			return ForTransaction(testDomain, testTo, big.NewInt(2), []byte("data"), "desc", 7)
		}},
		{"payload", func() (common.Hash, error) {
			return ForTransaction(testDomain, testTo, big.NewInt(1), []byte("other"), "desc", 7)
		}},
		{"description", func() (common.Hash, error) {
			return ForTransaction(testDomain, testTo, big.NewInt(1), []byte("data"), "other", 7)
		}},
		{"nonce", func() (common.Hash, error) {
			return ForTransaction(testDomain, testTo, big.NewInt(1), []byte("data"), "desc", 8)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			other, err := tc.compute()
			require.NoError(t, err)
			assert.NotEqual(t, base, other, "changing %s must change the digest", tc.name)
		})
	}
}

func TestForTransaction_DomainSeparation(t *testing.T) {
	base, err := ForTransaction(testDomain, testTo, big.NewInt(1), nil, "desc", 0)
	require.NoError(t, err)

	// Different chain, same instance
	otherChain := Domain{ChainID: 1, VerifyingInstance: testDomain.VerifyingInstance}
	d, err := ForTransaction(otherChain, testTo, big.NewInt(1), nil, "desc", 0)
	require.NoError(t, err)
	assert.NotEqual(t, base, d)

	// Same chain, different instance
	otherInstance := Domain{ChainID: testDomain.ChainID, VerifyingInstance: common.HexToAddress("0x4000000000000000000000000000000000000004")}
	d, err = ForTransaction(otherInstance, testTo, big.NewInt(1), nil, "desc", 0)
	require.NoError(t, err)
	assert.NotEqual(t, base, d)
}

func TestSeparator_Deterministic(t *testing.T) {
	s1, err := testDomain.Separator()
	require.NoError(t, err)

	s2, err := testDomain.Separator()
	require.NoError(t, err)

	assert.Equal(t, s1, s2)
	assert.NotEqual(t, common.Hash{}, s1)
}

func TestForTransaction_PayloadDescriptionNotConfusable(t *testing.T) {
	// Variable-length fields are hashed independently; content moving from
	// payload to description must not collide.
	a, err := ForTransaction(testDomain, testTo, big.NewInt(0), []byte("swap"), "", 0)
	require.NoError(t, err)

	b, err := ForTransaction(testDomain, testTo, big.NewInt(0), nil, "swap", 0)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
