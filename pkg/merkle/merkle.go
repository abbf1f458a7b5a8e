package merkle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Tree is a binary keccak256 merkle tree over the ledger's transaction
// digests. Leaves are taken in index order, which is already deterministic
// (the ledger is append-only with stable indices), so the root commits to
// the exact sequence of submitted transactions. External auditors holding a
// transaction's digest can verify inclusion against a published root.
type Tree struct {
	Leaves []common.Hash
	Root   common.Hash

	levels [][]common.Hash
}

// Proof is an inclusion proof for a single leaf: the sibling hashes along
// the path from leaf to root.
type Proof struct {
	LeafIndex int
	Leaf      common.Hash
	Siblings  []common.Hash
}

// BuildLedgerTree creates a merkle tree from transaction digests in ledger
// order. If there's an odd number of nodes at any level, the last node is
// duplicated.
func BuildLedgerTree(digests []common.Hash) (*Tree, error) {
	if len(digests) == 0 {
		return nil, fmt.Errorf("cannot build merkle tree from empty digest list")
	}

	leaves := make([]common.Hash, len(digests))
	copy(leaves, digests)

	levels := make([][]common.Hash, 0)
	levels = append(levels, leaves)

	currentLevel := leaves
	for len(currentLevel) > 1 {
		nextLevel := make([]common.Hash, 0, (len(currentLevel)+1)/2)

		for i := 0; i < len(currentLevel); i += 2 {
			left := currentLevel[i]
			right := left
			if i+1 < len(currentLevel) {
				right = currentLevel[i+1]
			}
			nextLevel = append(nextLevel, hashPair(left, right))
		}

		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	if len(currentLevel) != 1 {
		return nil, fmt.Errorf("merkle tree construction failed: final level has %d nodes instead of 1", len(currentLevel))
	}

	return &Tree{
		Leaves: leaves,
		Root:   currentLevel[0],
		levels: levels,
	}, nil
}

// GenerateProof creates a merkle proof for the leaf at the given index.
func (t *Tree) GenerateProof(leafIndex int) (*Proof, error) {
	if leafIndex < 0 || leafIndex >= len(t.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(t.Leaves))
	}

	siblings := make([]common.Hash, 0)
	index := leafIndex

	for level := 0; level < len(t.levels)-1; level++ {
		currentLevel := t.levels[level]

		siblingIndex := index + 1
		if index%2 == 1 {
			siblingIndex = index - 1
		}
		if siblingIndex >= len(currentLevel) {
			siblingIndex = index // Odd level end: node paired with itself
		}

		siblings = append(siblings, currentLevel[siblingIndex])
		index /= 2
	}

	return &Proof{
		LeafIndex: leafIndex,
		Leaf:      t.Leaves[leafIndex],
		Siblings:  siblings,
	}, nil
}

// VerifyProof recomputes the root from a proof and checks it against the
// expected root.
func VerifyProof(proof *Proof, root common.Hash) bool {
	if proof == nil {
		return false
	}

	currentHash := proof.Leaf
	index := proof.LeafIndex

	for _, sibling := range proof.Siblings {
		if index%2 == 0 {
			currentHash = hashPair(currentHash, sibling)
		} else {
			currentHash = hashPair(sibling, currentHash)
		}
		index /= 2
	}

	return currentHash == root
}

// hashPair computes keccak256(left || right) for two 32-byte hashes.
func hashPair(left, right common.Hash) common.Hash {
	return crypto.Keccak256Hash(left.Bytes(), right.Bytes())
}
