// Package crypto provides the Keccak-256 hash primitive consumed by the
// trie engine.
package crypto

import (
	"hash"

	"golang.org/x/crypto/sha3"

	"github.com/statetrie/statetrie/core/types"
)

// KeccakState wraps sha3.state. In addition to the usual hash methods, it
// also supports Read to get a variable amount of data from the hash state.
// Read is faster than Sum because it doesn't copy the internal state.
type KeccakState interface {
	hash.Hash
	Read([]byte) (int, error)
}

// NewKeccakState creates a new KeccakState.
func NewKeccakState() KeccakState {
	return sha3.NewLegacyKeccak256().(KeccakState)
}

// Keccak256 calculates the Keccak-256 hash of the given data.
func Keccak256(data ...[]byte) []byte {
	b := make([]byte, 32)
	d := NewKeccakState()
	for _, bs := range data {
		d.Write(bs)
	}
	d.Read(b)
	return b
}

// Keccak256Hash calculates Keccak-256 and returns it as a types.Hash.
func Keccak256Hash(data ...[]byte) (h types.Hash) {
	d := NewKeccakState()
	for _, bs := range data {
		d.Write(bs)
	}
	d.Read(h[:])
	return h
}
