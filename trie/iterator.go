package trie

// Iterator yields all key/value bindings of a trie in lexicographic key
// order. It resolves placeholder nodes on demand through the trie's node
// store.
//
// Usage:
//
//	it := NewIterator(tr)
//	for it.Next() {
//	    _ = it.Key
//	    _ = it.Value
//	}
//	if err := it.Err(); err != nil {
//	    // a node failed to resolve
//	}
type Iterator struct {
	trie *Trie

	// Key and Value hold the current binding after a successful Next.
	Key   []byte
	Value []byte

	stack []iterFrame
	err   error
}

// iterFrame is one level of the depth-first traversal: a node, the nibble
// path leading to it, and the next branch slot to visit. A next of -1 means
// the branch's own terminator value, visited before the children, is still
// pending.
type iterFrame struct {
	node *Node
	path []byte
	next int
}

// NewIterator creates an iterator positioned before the first binding.
func NewIterator(t *Trie) *Iterator {
	it := &Iterator{trie: t}
	if t.root != nil {
		it.stack = []iterFrame{{node: t.root, next: -1}}
	}
	return it
}

// Next advances to the next binding, returning false when the iteration is
// exhausted or a node fails to resolve.
func (it *Iterator) Next() bool {
	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]
		n := top.node

		if n.kind == KindUnknown {
			if err := n.resolve(it.trie.store); err != nil {
				it.err = err
				it.stack = nil
				return false
			}
		}

		switch n.kind {
		case KindLeaf:
			it.Key = nibblesToKey(concatNibbles(top.path, n.path))
			it.Value = n.value
			it.stack = it.stack[:len(it.stack)-1]
			return true

		case KindExtension:
			path := concatNibbles(top.path, n.path)
			it.stack[len(it.stack)-1] = iterFrame{node: n.child, path: path, next: -1}

		case KindBranch:
			if top.next < 0 {
				top.next = 0
				if n.value != nil {
					it.Key = nibblesToKey(top.path)
					it.Value = n.value
					return true
				}
			}
			pushed := false
			for i := top.next; i < branchWidth; i++ {
				if n.children[i] == nil {
					continue
				}
				top.next = i + 1
				path := concatNibbles(top.path, []byte{byte(i)})
				it.stack = append(it.stack, iterFrame{node: n.children[i], path: path, next: -1})
				pushed = true
				break
			}
			if !pushed {
				it.stack = it.stack[:len(it.stack)-1]
			}

		default:
			it.err = ErrMalformedNode
			it.stack = nil
			return false
		}
	}
	return false
}

// Err returns the resolution error that terminated the iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}
