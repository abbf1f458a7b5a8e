package merkle

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeDigests(n int) []common.Hash {
	digests := make([]common.Hash, n)
	for i := range digests {
		digests[i] = crypto.Keccak256Hash([]byte(fmt.Sprintf("tx-%d", i)))
	}
	return digests
}

func TestBuildLedgerTree_Empty(t *testing.T) {
	_, err := BuildLedgerTree(nil)
	assert.Error(t, err)
}

func TestBuildLedgerTree_SingleLeaf(t *testing.T) {
	digests := makeDigests(1)

	tree, err := BuildLedgerTree(digests)
	require.NoError(t, err)

	// A single leaf is its own root
	assert.Equal(t, digests[0], tree.Root)
}

func TestBuildLedgerTree_TwoLeaves(t *testing.T) {
	digests := makeDigests(2)

	tree, err := BuildLedgerTree(digests)
	require.NoError(t, err)

	expected := crypto.Keccak256Hash(digests[0].Bytes(), digests[1].Bytes())
	assert.Equal(t, expected, tree.Root)
}

func TestBuildLedgerTree_OddLeavesDuplicatesLast(t *testing.T) {
	digests := makeDigests(3)

	tree, err := BuildLedgerTree(digests)
	require.NoError(t, err)

	left := crypto.Keccak256Hash(digests[0].Bytes(), digests[1].Bytes())
	right := crypto.Keccak256Hash(digests[2].Bytes(), digests[2].Bytes())
	expected := crypto.Keccak256Hash(left.Bytes(), right.Bytes())
	assert.Equal(t, expected, tree.Root)
}

func TestBuildLedgerTree_Deterministic(t *testing.T) {
	digests := makeDigests(7)

	t1, err := BuildLedgerTree(digests)
	require.NoError(t, err)
	t2, err := BuildLedgerTree(digests)
	require.NoError(t, err)

	assert.Equal(t, t1.Root, t2.Root)
}

func TestBuildLedgerTree_OrderSensitive(t *testing.T) {
	digests := makeDigests(4)

	t1, err := BuildLedgerTree(digests)
	require.NoError(t, err)

	swapped := []common.Hash{digests[1], digests[0], digests[2], digests[3]}
	t2, err := BuildLedgerTree(swapped)
	require.NoError(t, err)

	assert.NotEqual(t, t1.Root, t2.Root)
}

func TestGenerateAndVerifyProof(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8, 13} {
		t.Run(fmt.Sprintf("%d leaves", n), func(t *testing.T) {
			digests := makeDigests(n)
			tree, err := BuildLedgerTree(digests)
			require.NoError(t, err)

			for i := 0; i < n; i++ {
				proof, err := tree.GenerateProof(i)
				require.NoError(t, err)
				assert.True(t, VerifyProof(proof, tree.Root), "proof for leaf %d must verify", i)
			}
		})
	}
}

func TestGenerateProof_OutOfBounds(t *testing.T) {
	tree, err := BuildLedgerTree(makeDigests(3))
	require.NoError(t, err)

	_, err = tree.GenerateProof(-1)
	assert.Error(t, err)
	_, err = tree.GenerateProof(3)
	assert.Error(t, err)
}

func TestVerifyProof_Rejections(t *testing.T) {
	digests := makeDigests(4)
	tree, err := BuildLedgerTree(digests)
	require.NoError(t, err)

	proof, err := tree.GenerateProof(2)
	require.NoError(t, err)

	assert.False(t, VerifyProof(nil, tree.Root))
	assert.False(t, VerifyProof(proof, crypto.Keccak256Hash([]byte("wrong root"))))

	tampered := *proof
	tampered.Leaf = crypto.Keccak256Hash([]byte("forged"))
	assert.False(t, VerifyProof(&tampered, tree.Root))
}
