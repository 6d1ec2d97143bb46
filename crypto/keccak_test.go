package crypto

import (
	"testing"

	"github.com/statetrie/statetrie/core/types"
)

func TestKeccak256EmptyString(t *testing.T) {
	got := Keccak256Hash(nil)
	want := types.HexToHash("c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	if got != want {
		t.Fatalf("keccak256(\"\") = %s, want %s", got.Hex(), want.Hex())
	}
}

func TestKeccak256EmptyRLPString(t *testing.T) {
	// keccak256(rlp("")) = keccak256(0x80) is the empty trie root.
	got := Keccak256Hash([]byte{0x80})
	if got != types.EmptyRootHash {
		t.Fatalf("keccak256(0x80) = %s, want %s", got.Hex(), types.EmptyRootHash.Hex())
	}
}

func TestKeccak256KnownVector(t *testing.T) {
	got := Keccak256Hash([]byte("abc"))
	want := types.HexToHash("4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45")
	if got != want {
		t.Fatalf("keccak256(\"abc\") = %s, want %s", got.Hex(), want.Hex())
	}
}

func TestKeccak256MultiSlice(t *testing.T) {
	joined := Keccak256Hash([]byte("ab"), []byte("c"))
	whole := Keccak256Hash([]byte("abc"))
	if joined != whole {
		t.Fatalf("multi-slice hash %s != whole hash %s", joined.Hex(), whole.Hex())
	}
}
