package merkle

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestRootEmpty(t *testing.T) {
	require.Equal(t, EmptyRoot, Root(nil))
	require.Equal(t, EmptyRoot, Root([][]byte{}))
}

func TestRootDeterministicAcrossInsertionOrder(t *testing.T) {
	leaves := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	reversed := [][]byte{[]byte("c"), []byte("b"), []byte("a")}

	root1 := Root(SortLeaves(leaves))
	root2 := Root(SortLeaves(reversed))
	require.Equal(t, root1, root2)
}

func TestRootChangesWithLeafSet(t *testing.T) {
	root1 := Root(SortLeaves([][]byte{[]byte("a"), []byte("b")}))
	root2 := Root(SortLeaves([][]byte{[]byte("a"), []byte("b"), []byte("c")}))
	require.NotEqual(t, root1, root2)
}

func TestRootOddLeafCountDuplicatesLast(t *testing.T) {
	// Three leaves force the odd-node-out branch: on the first level the
	// third leaf hash is paired with itself.
	root := Root(SortLeaves([][]byte{[]byte("x"), []byte("y"), []byte("z")}))
	require.NotEqual(t, EmptyRoot, root)

	hx := crypto.Keccak256Hash([]byte("x"))
	hy := crypto.Keccak256Hash([]byte("y"))
	hz := crypto.Keccak256Hash([]byte("z"))
	require.Equal(t, hashPair(hashPair(hx, hy), hashPair(hz, hz)), root)
}
