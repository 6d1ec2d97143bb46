package trie

import (
	"fmt"

	"github.com/statetrie/statetrie/core/types"
)

// Kind identifies the variant of a trie node.
type Kind uint8

const (
	// KindUnknown is a placeholder referencing a not-yet-materialized node
	// by its content hash.
	KindUnknown Kind = iota
	// KindLeaf is a terminal path/value pair.
	KindLeaf
	// KindExtension is a shared path segment above a branch.
	KindExtension
	// KindBranch is a 16-way node with an optional terminator value.
	KindBranch
)

func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindLeaf:
		return "leaf"
	case KindExtension:
		return "extension"
	case KindBranch:
		return "branch"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// branchWidth is the number of child slots of a branch node.
const branchWidth = 16

// Node is the in-memory representation of a trie node. A node is born either
// by decoding bytes fetched from the cache or store (sealed, one reference)
// or by the mutation algorithm (dirty, unreferenced until wired into the new
// tree). Sealed nodes are immutable; the mutation path clones them before
// any change, which is what makes historical roots safely shareable.
type Node struct {
	kind Kind

	// path holds the nibble fragment of leaf and extension nodes.
	path []byte
	// value holds the leaf value, or the optional branch terminator value.
	value []byte
	// children holds the branch child slots; nil for non-branch nodes.
	children []*Node
	// child is the extension target, always a branch or a placeholder.
	child *Node

	// hash and encoded are the content hash and serialized form, mutually
	// consistent. The hash is only computed for encodings of at least 32
	// bytes or when forced at the root. Both are stable once sealed.
	hash    types.Hash
	hasHash bool
	encoded []byte

	// refs counts inbound edges from the in-memory node graph, plus one for
	// the root. It guides copy-on-write decisions during tree rewrites; it
	// is not a memory reclamation mechanism.
	refs   int32
	dirty  bool
	sealed bool
}

// newLeaf creates a dirty, unreferenced leaf. The path is copied so callers
// may pass slices of transient nibble buffers.
func newLeaf(path, value []byte) *Node {
	return &Node{
		kind:  KindLeaf,
		path:  append([]byte{}, path...),
		value: value,
		dirty: true,
	}
}

// newExtension creates a dirty, unreferenced extension over child. The
// child gains one reference.
func newExtension(path []byte, child *Node) *Node {
	n := &Node{
		kind:  KindExtension,
		path:  append([]byte{}, path...),
		dirty: true,
	}
	child.retain()
	n.child = child
	return n
}

// newBranch creates an empty dirty branch.
func newBranch() *Node {
	return &Node{
		kind:     KindBranch,
		children: make([]*Node, branchWidth),
		dirty:    true,
	}
}

// newUnknown creates a sealed placeholder for the node with the given hash.
func newUnknown(hash types.Hash) *Node {
	return &Node{
		kind:    KindUnknown,
		hash:    hash,
		hasHash: true,
		sealed:  true,
	}
}

// Kind returns the node variant.
func (n *Node) Kind() Kind { return n.kind }

// Path returns the nibble path fragment of a leaf or extension node.
func (n *Node) Path() []byte { return n.path }

// Value returns the leaf value or branch terminator value.
func (n *Node) Value() []byte { return n.value }

// CachedHash returns the node's content hash if it has been computed.
func (n *Node) CachedHash() (types.Hash, bool) { return n.hash, n.hasHash }

// Dirty reports whether the node has been mutated since it was last sealed.
func (n *Node) Dirty() bool { return n.dirty }

// Sealed reports whether further mutation of the node is forbidden.
func (n *Node) Sealed() bool { return n.sealed }

// Refs returns the node's current reference count.
func (n *Node) Refs() int32 { return n.refs }

// Child returns the child in branch slot i, which may be a placeholder.
func (n *Node) Child(i int) *Node {
	if n.kind != KindBranch {
		return nil
	}
	return n.children[i]
}

// ExtensionChild returns the target of an extension node.
func (n *Node) ExtensionChild() *Node { return n.child }

// retain adds one inbound edge.
func (n *Node) retain() {
	n.refs++
}

// release removes one inbound edge. Dropping below zero is a bookkeeping
// bug in the rewrite algorithm and panics.
func (n *Node) release() {
	n.refs--
	if n.refs < 0 {
		panic(fmt.Sprintf("trie: reference count underflow on %s node (hash=%x)", n.kind, n.hash))
	}
}

// mustMutable panics when the node is sealed. Sealed nodes must be cloned
// before any change.
func (n *Node) mustMutable() {
	if n.sealed {
		panic(fmt.Sprintf("trie: mutation of sealed %s node (hash=%x)", n.kind, n.hash))
	}
}

// invalidate discards any memoized encoding after a mutation.
func (n *Node) invalidate() {
	n.hasHash = false
	n.hash = types.Hash{}
	n.encoded = nil
}

// seal fixes the node's hash and contents. The encoding must already be
// resolved.
func (n *Node) seal() {
	if n.encoded == nil {
		panic(fmt.Sprintf("trie: sealing %s node without encoding", n.kind))
	}
	n.sealed = true
	n.dirty = false
}

// clone returns a dirty, unreferenced copy sharing children by reference.
// Each shared child gains one inbound edge.
func (n *Node) clone() *Node {
	c := &Node{
		kind:  n.kind,
		path:  n.path,
		value: n.value,
		child: n.child,
		dirty: true,
	}
	if n.children != nil {
		c.children = make([]*Node, branchWidth)
		copy(c.children, n.children)
		for _, ch := range c.children {
			if ch != nil {
				ch.retain()
			}
		}
	}
	if c.child != nil {
		c.child.retain()
	}
	return c
}

// mutableCopy returns the node itself when it may be edited in place (dirty
// and exclusively owned), or a dirty clone otherwise.
func mutableCopy(n *Node) *Node {
	if n.dirty && n.refs <= 1 {
		return n
	}
	return n.clone()
}

// setValue replaces the leaf or branch terminator value.
func (n *Node) setValue(v []byte) {
	n.mustMutable()
	n.value = v
	n.invalidate()
}

// setChild replaces branch slot i, adjusting references on both edges.
func (n *Node) setChild(i int, c *Node) {
	n.mustMutable()
	if n.kind != KindBranch {
		panic(fmt.Sprintf("trie: setChild on %s node", n.kind))
	}
	if old := n.children[i]; old != nil {
		old.release()
	}
	if c != nil {
		c.retain()
	}
	n.children[i] = c
	n.invalidate()
}

// setExtensionChild replaces the extension target.
func (n *Node) setExtensionChild(c *Node) {
	n.mustMutable()
	if n.kind != KindExtension {
		panic(fmt.Sprintf("trie: setExtensionChild on %s node", n.kind))
	}
	if n.child != nil {
		n.child.release()
	}
	c.retain()
	n.child = c
	n.invalidate()
}

// isChildNull reports whether branch slot i is empty.
func (n *Node) isChildNull(i int) bool {
	return n.kind != KindBranch || n.children[i] == nil
}

// isChildDirty reports whether branch slot i holds a dirty child.
func (n *Node) isChildDirty(i int) bool {
	return n.kind == KindBranch && n.children[i] != nil && n.children[i].dirty
}

// childCount returns the number of occupied branch slots, optionally
// treating one slot as cleared.
func (n *Node) childCount(excluding int) (count int, lastSlot int) {
	lastSlot = -1
	for i := 0; i < branchWidth; i++ {
		if i == excluding || n.children[i] == nil {
			continue
		}
		count++
		lastSlot = i
	}
	return count, lastSlot
}

// validWithOneLess reports whether the branch remains a valid branch after
// clearing the given slot: at least two occupied slots, or one occupied
// slot alongside a terminator value.
func (n *Node) validWithOneLess(slot int) bool {
	count, _ := n.childCount(slot)
	if count >= 2 {
		return true
	}
	return count == 1 && n.value != nil
}

// resolve materializes a placeholder node in place from the node store,
// leaving existing parent edges intact. It is idempotent.
func (n *Node) resolve(r NodeResolver) error {
	if n.kind != KindUnknown {
		return nil
	}
	data, err := r.Node(n.hash)
	if err != nil {
		return err
	}
	decoded, err := decodeNode(n.hash, data)
	if err != nil {
		return err
	}
	n.kind = decoded.kind
	n.path = decoded.path
	n.value = decoded.value
	n.children = decoded.children
	n.child = decoded.child
	n.encoded = data
	n.sealed = true
	n.dirty = false
	return nil
}

// discard releases the child edges of a freshly built node that is dropped
// before being wired into the tree. It must never be applied to sealed
// nodes, whose subgraphs may be shared with historical roots.
func (n *Node) discard() {
	if n.sealed {
		panic("trie: discard of sealed node")
	}
	if n.child != nil {
		n.child.release()
	}
	for _, c := range n.children {
		if c != nil {
			c.release()
		}
	}
}
