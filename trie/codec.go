package trie

import (
	"fmt"

	"github.com/statetrie/statetrie/core/types"
	"github.com/statetrie/statetrie/crypto"
	"github.com/statetrie/statetrie/rlp"
)

// Node serialization per the Ethereum Yellow Paper, Appendix D:
//
//   - Leaf:      [hex-prefix(path, leaf), value]
//   - Extension: [hex-prefix(path, ext), child-reference]
//   - Branch:    [ref0 ... ref15, value-or-empty]
//
// A child reference is the child's 32-byte hash when its encoding is at
// least 32 bytes long, and the raw encoding inlined otherwise. Decoding
// recognizes the variant by list arity (2 vs 17) and by the leaf flag of
// the hex-prefix item.

// hashLen is the inlining threshold: encodings shorter than this are
// embedded in their parent instead of referenced by hash.
const hashLen = types.HashLength

// encodeNode serializes a node. Children must already carry an encoding or
// a hash; use ensureEncoded to prepare a subtree bottom-up.
func encodeNode(n *Node) []byte {
	switch n.kind {
	case KindLeaf:
		payload := rlp.AppendString(nil, hexPrefixEncode(n.path, true))
		payload = rlp.AppendString(payload, n.value)
		return rlp.WrapList(payload)

	case KindExtension:
		payload := rlp.AppendString(nil, hexPrefixEncode(n.path, false))
		payload = appendChildRef(payload, n.child)
		return rlp.WrapList(payload)

	case KindBranch:
		var payload []byte
		for i := 0; i < branchWidth; i++ {
			payload = appendChildRef(payload, n.children[i])
		}
		payload = rlp.AppendString(payload, n.value)
		return rlp.WrapList(payload)

	default:
		panic(fmt.Sprintf("trie: encoding %s node", n.kind))
	}
}

// appendChildRef appends the reference form of a child: empty item, inline
// encoding, or 32-byte hash.
func appendChildRef(dst []byte, c *Node) []byte {
	switch {
	case c == nil:
		return rlp.AppendString(dst, nil)
	case c.kind == KindUnknown:
		return rlp.AppendString(dst, c.hash.Bytes())
	case len(c.encoded) < hashLen:
		return rlp.AppendRaw(dst, c.encoded)
	default:
		return rlp.AppendString(dst, c.hash.Bytes())
	}
}

// ensureEncoded computes the node's serialized form and, for encodings of
// at least 32 bytes, its content hash, recursing into children that still
// need one. forceHash additionally hashes short encodings; it is used at
// the root, whose reference is always the full 32-byte hash.
func ensureEncoded(n *Node, forceHash bool) {
	if n.kind == KindUnknown {
		return
	}
	if n.encoded == nil {
		if n.child != nil {
			ensureEncoded(n.child, false)
		}
		for _, c := range n.children {
			if c != nil {
				ensureEncoded(c, false)
			}
		}
		n.encoded = encodeNode(n)
	}
	if !n.hasHash && (forceHash || len(n.encoded) >= hashLen) {
		n.hash = crypto.Keccak256Hash(n.encoded)
		n.hasHash = true
	}
}

// hashOf returns the content hash of a serialized node.
func hashOf(encoded []byte) types.Hash {
	return crypto.Keccak256Hash(encoded)
}

// decodeNode parses an encoded node. The hash is the node's known content
// hash, or zero for inlined nodes. Decoded nodes and their immediate
// children are born sealed with one reference per inbound edge.
func decodeNode(hash types.Hash, data []byte) (*Node, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedNode)
	}
	items, err := rlp.SplitList(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNode, err)
	}
	var n *Node
	switch len(items) {
	case 2:
		n, err = decodeShort(items)
	case 17:
		n, err = decodeBranch(items)
	default:
		return nil, fmt.Errorf("%w: expected 2 or 17 items, got %d", ErrMalformedNode, len(items))
	}
	if err != nil {
		return nil, err
	}
	n.encoded = data
	n.hash = hash
	n.hasHash = !hash.IsZero()
	n.sealed = true
	n.dirty = false
	return n, nil
}

// decodeShort parses a 2-item list into a leaf or extension node.
func decodeShort(items [][]byte) (*Node, error) {
	path, isLeaf, err := hexPrefixDecode(items[0])
	if err != nil {
		return nil, err
	}
	if isLeaf {
		return &Node{
			kind:  KindLeaf,
			path:  path,
			value: items[1],
		}, nil
	}
	child, err := decodeRef(items[1])
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, fmt.Errorf("%w: extension without child", ErrMalformedNode)
	}
	child.retain()
	return &Node{
		kind:  KindExtension,
		path:  path,
		child: child,
	}, nil
}

// decodeBranch parses a 17-item list into a branch node.
func decodeBranch(items [][]byte) (*Node, error) {
	n := &Node{
		kind:     KindBranch,
		children: make([]*Node, branchWidth),
	}
	for i := 0; i < branchWidth; i++ {
		child, err := decodeRef(items[i])
		if err != nil {
			return nil, err
		}
		if child != nil {
			child.retain()
			n.children[i] = child
		}
	}
	if len(items[16]) > 0 {
		n.value = items[16]
	}
	return n, nil
}

// decodeRef parses a child reference: empty, a 32-byte hash, or an inlined
// node encoding.
func decodeRef(item []byte) (*Node, error) {
	switch {
	case len(item) == 0:
		return nil, nil
	case len(item) == hashLen:
		// A 32-byte item is a hash reference whatever its first byte.
		return newUnknown(types.BytesToHash(item)), nil
	case rlp.IsList(item):
		// Inlined child. Its encoding is by construction shorter than a
		// hash, so it carries no hash of its own.
		if len(item) >= hashLen {
			return nil, fmt.Errorf("%w: inlined child of %d bytes", ErrMalformedNode, len(item))
		}
		return decodeNode(types.Hash{}, item)
	default:
		return nil, fmt.Errorf("%w: child reference of %d bytes", ErrMalformedNode, len(item))
	}
}
