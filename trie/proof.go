package trie

import (
	"errors"

	"github.com/statetrie/statetrie/core/types"
)

// ErrProofInvalid is returned when a Merkle proof does not check out
// against the claimed root.
var ErrProofInvalid = errors.New("trie: invalid proof")

// Prove collects the RLP encodings of the nodes along the path from the
// root to the value bound to key. Inlined nodes travel inside their parent
// encoding; only hash-referenced nodes contribute proof elements. The proof
// verifies against the trie's root hash via VerifyProof.
func (t *Trie) Prove(key []byte) ([][]byte, error) {
	if t.busy.Load() != 0 {
		return nil, ErrConcurrentMutation
	}
	if t.root == nil {
		return nil, ErrNotFound
	}
	// Make sure every node on the path carries its encoding.
	ensureEncoded(t.root, true)

	var stackBuf [maxStackNibbles]byte
	nibbles, pooled := keyNibbles(key, &stackBuf)
	defer releaseNibbles(pooled)

	var proof [][]byte
	n := t.root
	cursor := 0
	for {
		if err := n.resolve(t.store); err != nil {
			return nil, err
		}
		if n.encoded == nil {
			ensureEncoded(n, false)
		}
		if len(n.encoded) >= hashLen || n == t.root {
			proof = append(proof, n.encoded)
		}
		rem := nibbles[cursor:]
		switch n.kind {
		case KindLeaf:
			if len(rem) == len(n.path) && prefixLen(rem, n.path) == len(rem) {
				return proof, nil
			}
			return nil, ErrNotFound
		case KindExtension:
			if prefixLen(rem, n.path) < len(n.path) {
				return nil, ErrNotFound
			}
			cursor += len(n.path)
			n = n.child
		case KindBranch:
			if len(rem) == 0 {
				if n.value == nil {
					return nil, ErrNotFound
				}
				return proof, nil
			}
			c := n.children[rem[0]]
			if c == nil {
				return nil, ErrNotFound
			}
			cursor++
			n = c
		}
	}
}

// VerifyProof replays a proof against a root hash and returns the value it
// binds to key. A structurally valid proof of absence yields ErrNotFound;
// a proof that does not connect to the root yields ErrProofInvalid.
func VerifyProof(root types.Hash, key []byte, proof [][]byte) ([]byte, error) {
	var stackBuf [maxStackNibbles]byte
	nibbles, pooled := keyNibbles(key, &stackBuf)
	defer releaseNibbles(pooled)

	want := root
	cursor := 0
	for i := 0; i < len(proof); i++ {
		if hashOf(proof[i]) != want {
			return nil, ErrProofInvalid
		}
		n, err := decodeNode(want, proof[i])
		if err != nil {
			return nil, ErrProofInvalid
		}
		// Walk within this element, following inlined children, until the
		// value is found or the next hash reference is reached.
		for {
			rem := nibbles[cursor:]
			switch n.kind {
			case KindLeaf:
				if len(rem) == len(n.path) && prefixLen(rem, n.path) == len(rem) {
					return n.value, nil
				}
				return nil, ErrNotFound
			case KindExtension:
				if prefixLen(rem, n.path) < len(n.path) {
					return nil, ErrNotFound
				}
				cursor += len(n.path)
				n = n.child
			case KindBranch:
				if len(rem) == 0 {
					if n.value == nil {
						return nil, ErrNotFound
					}
					return n.value, nil
				}
				c := n.children[rem[0]]
				if c == nil {
					return nil, ErrNotFound
				}
				cursor++
				n = c
			case KindUnknown:
				// Hash reference: the next proof element must carry it.
				want = n.hash
			}
			if n.kind == KindUnknown {
				// Hash reference: the next proof element must carry it.
				want = n.hash
				break
			}
		}
	}
	return nil, ErrProofInvalid
}
