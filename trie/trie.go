// Package trie implements the Modified Merkle Patricia Trie backing world
// state, per-account storage, transactions and receipts: a persistent,
// hash-addressed, radix-16 authenticated key/value tree. Given a set of
// mutations against a committed root hash it produces a new root hash
// committing to the entire mapping, and persists exactly the nodes that
// participate in the new root.
//
// Historical roots share structure: mutation never edits sealed nodes, it
// clones them copy-on-write, so any committed root stays readable while the
// live trie moves on.
package trie

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/statetrie/statetrie/core/types"
	"github.com/statetrie/statetrie/log"
)

// parallelCommitThreshold is the minimum number of dirty root children for
// the parallel branch commit to engage.
const parallelCommitThreshold = 4

// Trie is a single-writer Merkle Patricia Trie over a shared node store.
// Mutations must not overlap with any other operation against the same
// root; reads against a different committed root are always permitted.
type Trie struct {
	store *NodeStore
	cfg   Config
	lg    *log.Logger

	root     *Node // nil for the empty tree
	rootHash types.Hash

	// busy flags an in-flight mutation. Overlapping operations on the
	// current root fail with ErrConcurrentMutation.
	busy atomic.Int32

	lastCommit CommitStats
}

// CommitStats describes the most recent commit of a trie.
type CommitStats struct {
	BlockHeight uint64
	Nodes       int
	Bytes       int
	Elapsed     time.Duration
}

// New creates an empty trie over the given node store.
func New(store *NodeStore, cfg Config) *Trie {
	return &Trie{
		store:    store,
		cfg:      cfg,
		lg:       log.Default().Module("trie"),
		rootHash: types.EmptyRootHash,
	}
}

// NewAtRoot creates a trie reading from a previously committed root hash.
// The root node is materialized lazily on first access.
func NewAtRoot(store *NodeStore, root types.Hash, cfg Config) *Trie {
	t := New(store, cfg)
	if root != types.EmptyRootHash && !root.IsZero() {
		t.rootHash = root
		t.root = newUnknown(root)
		t.root.retain()
	}
	return t
}

// RootHash returns the hash the trie last committed or computed. It is
// stale while uncommitted mutations are pending; Hash recomputes it.
func (t *Trie) RootHash() types.Hash {
	return t.rootHash
}

// SetRootHash switches the trie to read from a different committed root.
// Any pending in-memory mutations are dropped: the current root reference
// is replaced with a placeholder resolved on demand.
func (t *Trie) SetRootHash(root types.Hash) error {
	if err := t.beginWrite(); err != nil {
		return err
	}
	defer t.endWrite()

	if t.root != nil {
		old := t.root
		t.root = nil
		old.release()
	}
	if root == types.EmptyRootHash || root.IsZero() {
		t.rootHash = types.EmptyRootHash
		return nil
	}
	t.rootHash = root
	t.root = newUnknown(root)
	t.root.retain()
	return nil
}

// Get returns the value bound to key in the current root, or ErrNotFound.
// It may resolve nodes lazily but does not restructure the in-memory tree.
func (t *Trie) Get(key []byte) ([]byte, error) {
	if t.busy.Load() != 0 {
		return nil, ErrConcurrentMutation
	}
	if t.root == nil {
		return nil, ErrNotFound
	}
	var stackBuf [maxStackNibbles]byte
	nibbles, pooled := keyNibbles(key, &stackBuf)
	defer releaseNibbles(pooled)

	ctx := &traverseContext{nibbles: nibbles, op: opRead}
	return t.traverse(t.root, ctx)
}

// GetFromRoot returns the value bound to key under the given committed
// root, which may differ from the trie's current root. Reads of historical
// roots only observe sealed nodes and are safe concurrently with mutation
// of the live trie.
func (t *Trie) GetFromRoot(root types.Hash, key []byte) ([]byte, error) {
	if root == t.rootHash && (t.root == nil || !t.root.dirty) {
		// The live tree still matches the requested root.
		return t.Get(key)
	}
	if root == types.EmptyRootHash || root.IsZero() {
		return nil, ErrNotFound
	}
	var stackBuf [maxStackNibbles]byte
	nibbles, pooled := keyNibbles(key, &stackBuf)
	defer releaseNibbles(pooled)

	ctx := &traverseContext{nibbles: nibbles, op: opRead}
	return t.traverse(newUnknown(root), ctx)
}

// Put binds key to value. An empty value deletes the key. The in-memory
// root stays dirty until Commit; Hash computes the root hash but leaves the
// root dirty.
func (t *Trie) Put(key, value []byte) error {
	if len(value) == 0 {
		return t.Delete(key)
	}
	if err := t.beginWrite(); err != nil {
		return err
	}
	defer t.endWrite()

	var stackBuf [maxStackNibbles]byte
	nibbles, pooled := keyNibbles(key, &stackBuf)
	defer releaseNibbles(pooled)

	ctx := &traverseContext{
		nibbles: nibbles,
		op:      opUpdate,
		value:   append([]byte{}, value...),
	}
	if t.root == nil {
		leaf := newLeaf(nibbles, ctx.value)
		leaf.retain()
		t.root = leaf
		return nil
	}
	_, err := t.traverse(t.root, ctx)
	return err
}

// Delete removes the binding for key. A missing key is silent or fails
// with ErrMissingForDelete according to Config.IgnoreMissingDelete.
func (t *Trie) Delete(key []byte) error {
	return t.delete(key, t.cfg.IgnoreMissingDelete)
}

// DeleteStrict removes the binding for key, failing with
// ErrMissingForDelete when the key is absent.
func (t *Trie) DeleteStrict(key []byte) error {
	return t.delete(key, false)
}

func (t *Trie) delete(key []byte, ignoreMissing bool) error {
	if err := t.beginWrite(); err != nil {
		return err
	}
	defer t.endWrite()

	ctx := &traverseContext{op: opDelete, ignoreMissingDelete: ignoreMissing}
	if t.root == nil {
		return t.missingDelete(ctx)
	}
	var stackBuf [maxStackNibbles]byte
	nibbles, pooled := keyNibbles(key, &stackBuf)
	defer releaseNibbles(pooled)
	ctx.nibbles = nibbles

	_, err := t.traverse(t.root, ctx)
	return err
}

// Hash computes the root hash of the current in-memory tree without
// emitting anything to the committer. It is used for expected-hash checks
// between commits.
func (t *Trie) Hash() types.Hash {
	if t.root == nil {
		t.rootHash = types.EmptyRootHash
		return t.rootHash
	}
	ensureEncoded(t.root, true)
	t.rootHash = t.root.hash
	return t.rootHash
}

// Commit hashes and serializes every dirty node reachable from the root,
// seals them, forwards them to the committer tagged with blockHeight, and
// updates the root hash. After a successful commit the whole tree is
// sealed and shared with any future readers of the new root.
func (t *Trie) Commit(blockHeight uint64) (types.Hash, error) {
	if err := t.beginWrite(); err != nil {
		return types.Hash{}, err
	}
	defer t.endWrite()

	if !t.cfg.AllowCommits {
		return types.Hash{}, ErrCommitsDisabled
	}
	if t.root == nil {
		t.rootHash = types.EmptyRootHash
		return t.rootHash, nil
	}
	if !t.root.dirty {
		return t.rootHash, nil
	}

	start := time.Now()
	prevRoot, prevHash := t.root, t.rootHash
	queue := new(commitQueue)
	if err := t.commitNode(t.root, true, queue); err != nil {
		t.root, t.rootHash = prevRoot, prevHash
		return types.Hash{}, err
	}

	// Drain in seal order; content-addressed writes already persisted by a
	// failed drain are harmless and discarded naturally.
	drained, flushed := 0, 0
	for {
		item, ok := queue.pop()
		if !ok {
			break
		}
		if err := t.store.committer.CommitNode(blockHeight, item.hash, item.encoded); err != nil {
			t.root, t.rootHash = prevRoot, prevHash
			return types.Hash{}, err
		}
		drained++
		flushed += len(item.encoded)
	}
	if drained != queue.pushed() {
		return types.Hash{}, ErrCommitRace
	}

	t.rootHash = t.root.hash
	t.lastCommit = CommitStats{
		BlockHeight: blockHeight,
		Nodes:       drained,
		Bytes:       flushed,
		Elapsed:     time.Since(start),
	}
	t.lg.Debug("trie committed",
		"block", blockHeight,
		"nodes", drained,
		"bytes", flushed,
		"root", t.rootHash.Hex(),
		"elapsed", t.lastCommit.Elapsed,
	)
	return t.rootHash, nil
}

// LastCommitStats returns the statistics of the most recent commit.
func (t *Trie) LastCommitStats() CommitStats {
	return t.lastCommit
}

// beginWrite acquires the single-writer slot.
func (t *Trie) beginWrite() error {
	if !t.busy.CompareAndSwap(0, 1) {
		return ErrConcurrentMutation
	}
	return nil
}

func (t *Trie) endWrite() {
	t.busy.Store(0)
}

// --- Traversal ---

type opKind uint8

const (
	opRead opKind = iota
	opUpdate
	opDelete
)

// traverseContext carries one operation down the tree.
type traverseContext struct {
	nibbles []byte
	cursor  int
	value   []byte
	op      opKind

	ignoreMissingDelete bool
}

func (ctx *traverseContext) remaining() []byte {
	return ctx.nibbles[ctx.cursor:]
}

// stackEntry records one level of the per-mutation path stack: the parent
// node and the branch slot taken, or -1 when the parent is an extension.
type stackEntry struct {
	node *Node
	slot int
}

// traverse walks from start along the key nibbles, dispatching on the node
// variant. Reads return the bound value; mutations rebuild the path to the
// root through connect.
func (t *Trie) traverse(start *Node, ctx *traverseContext) ([]byte, error) {
	n := start
	var stack []stackEntry
	if ctx.op != opRead {
		stack = make([]stackEntry, 0, 16)
	}
	for {
		if n.kind == KindUnknown {
			if err := n.resolve(t.store); err != nil {
				return nil, err
			}
		}
		switch n.kind {
		case KindLeaf:
			return t.stepLeaf(n, ctx, stack)

		case KindExtension:
			rem := ctx.remaining()
			k := prefixLen(rem, n.path)
			if k < len(n.path) {
				return t.stepExtensionDiverge(n, ctx, stack)
			}
			if ctx.op != opRead {
				stack = append(stack, stackEntry{n, -1})
			}
			ctx.cursor += k
			n = n.child

		case KindBranch:
			rem := ctx.remaining()
			if len(rem) == 0 {
				return t.stepBranchValue(n, ctx, stack)
			}
			slot := int(rem[0])
			child := n.children[slot]
			if child == nil {
				switch ctx.op {
				case opRead:
					return nil, ErrNotFound
				case opDelete:
					return nil, t.missingDelete(ctx)
				default:
					leaf := newLeaf(rem[1:], ctx.value)
					stack = append(stack, stackEntry{n, slot})
					return nil, t.connect(leaf, stack)
				}
			}
			if ctx.op != opRead {
				stack = append(stack, stackEntry{n, slot})
			}
			ctx.cursor++
			n = child

		default:
			panic(fmt.Sprintf("trie: traversal reached %s node", n.kind))
		}
	}
}

// stepLeaf handles the operation terminating at a leaf: exact hit, miss,
// or a split at the divergence point.
func (t *Trie) stepLeaf(n *Node, ctx *traverseContext, stack []stackEntry) ([]byte, error) {
	rem := ctx.remaining()
	k := prefixLen(rem, n.path)

	if k == len(rem) && k == len(n.path) {
		switch ctx.op {
		case opRead:
			return n.value, nil
		case opDelete:
			return nil, t.connect(nil, stack)
		default:
			if bytes.Equal(n.value, ctx.value) {
				return nil, nil
			}
			repl := mutableCopy(n)
			repl.setValue(ctx.value)
			return nil, t.connect(repl, stack)
		}
	}

	switch ctx.op {
	case opRead:
		return nil, ErrNotFound
	case opDelete:
		return nil, t.missingDelete(ctx)
	}

	// Split: a branch at the divergence point carries the existing leaf on
	// one side (or its value, if it terminates there) and the new leaf on
	// the other, below an extension for any shared prefix.
	branch := newBranch()
	oldRem := n.path[k:]
	if len(oldRem) == 0 {
		branch.setValue(n.value)
	} else {
		branch.setChild(int(oldRem[0]), newLeaf(oldRem[1:], n.value))
	}
	newRem := rem[k:]
	if len(newRem) == 0 {
		branch.setValue(ctx.value)
	} else {
		branch.setChild(int(newRem[0]), newLeaf(newRem[1:], ctx.value))
	}
	top := branch
	if k > 0 {
		top = newExtension(rem[:k], branch)
	}
	return nil, t.connect(top, stack)
}

// stepExtensionDiverge splits an extension whose path diverges from the
// remaining key before its end.
func (t *Trie) stepExtensionDiverge(n *Node, ctx *traverseContext, stack []stackEntry) ([]byte, error) {
	rem := ctx.remaining()
	k := prefixLen(rem, n.path)

	switch ctx.op {
	case opRead:
		return nil, ErrNotFound
	case opDelete:
		return nil, t.missingDelete(ctx)
	}

	branch := newBranch()
	newRem := rem[k:]
	if len(newRem) == 0 {
		branch.setValue(ctx.value)
	} else {
		branch.setChild(int(newRem[0]), newLeaf(newRem[1:], ctx.value))
	}
	pathRem := n.path[k:]
	if len(pathRem) == 1 {
		branch.setChild(int(pathRem[0]), n.child)
	} else {
		branch.setChild(int(pathRem[0]), newExtension(pathRem[1:], n.child))
	}
	top := branch
	if k > 0 {
		top = newExtension(rem[:k], branch)
	}
	return nil, t.connect(top, stack)
}

// stepBranchValue handles an operation whose key ends exactly at a branch:
// the branch's terminator value is read, rewritten or cleared.
func (t *Trie) stepBranchValue(n *Node, ctx *traverseContext, stack []stackEntry) ([]byte, error) {
	switch ctx.op {
	case opRead:
		if n.value == nil {
			return nil, ErrNotFound
		}
		return n.value, nil

	case opUpdate:
		if bytes.Equal(n.value, ctx.value) {
			return nil, nil
		}
		repl := mutableCopy(n)
		repl.setValue(ctx.value)
		return nil, t.connect(repl, stack)

	default: // opDelete
		if n.value == nil {
			return nil, t.missingDelete(ctx)
		}
		count, last := n.childCount(-1)
		switch {
		case count >= 2:
			repl := mutableCopy(n)
			repl.setValue(nil)
			return nil, t.connect(repl, stack)
		case count == 1:
			merged, err := t.mergeBranchChild(n, last)
			if err != nil {
				return nil, err
			}
			return nil, t.connect(merged, stack)
		default:
			panic("trie: branch node with terminator value and no children")
		}
	}
}

func (t *Trie) missingDelete(ctx *traverseContext) error {
	if ctx.ignoreMissingDelete {
		return nil
	}
	return ErrMissingForDelete
}

// mergeBranchChild builds the replacement for a branch that has collapsed
// to the single child in the given slot: the child folded under one
// leading nibble, as a leaf, extension, or one-nibble extension over a
// branch. The child is resolved if it is still a placeholder.
func (t *Trie) mergeBranchChild(n *Node, slot int) (*Node, error) {
	c := n.children[slot]
	if err := c.resolve(t.store); err != nil {
		return nil, err
	}
	prefix := []byte{byte(slot)}
	switch c.kind {
	case KindLeaf:
		return newLeaf(concatNibbles(prefix, c.path), c.value), nil
	case KindExtension:
		return newExtension(concatNibbles(prefix, c.path), c.child), nil
	case KindBranch:
		return newExtension(prefix, c), nil
	default:
		panic(fmt.Sprintf("trie: merging %s node", c.kind))
	}
}

// connect pops the mutation stack back toward the root, attaching the
// rebuilt tail at each recorded slot. Sealed or shared parents are cloned
// copy-on-write; a nil tail removes the recorded slot and collapses
// branches that lose their second occupant.
func (t *Trie) connect(tail *Node, stack []stackEntry) error {
	for i := len(stack) - 1; i >= 0; i-- {
		parent, slot := stack[i].node, stack[i].slot

		if slot >= 0 { // branch parent
			if tail != nil {
				p := mutableCopy(parent)
				p.setChild(slot, tail)
				tail = p
				continue
			}
			if parent.validWithOneLess(slot) {
				p := mutableCopy(parent)
				p.setChild(slot, nil)
				tail = p
				continue
			}
			// Collapse: the branch keeps either its value or one child.
			count, last := parent.childCount(slot)
			if count == 0 {
				if parent.value == nil {
					panic("trie: collapsing branch with no value and no children")
				}
				tail = newLeaf(nil, parent.value)
				continue
			}
			merged, err := t.mergeBranchChild(parent, last)
			if err != nil {
				return err
			}
			tail = merged
			continue
		}

		// Extension parent: merge paths across the boundary.
		if tail == nil {
			panic("trie: extension child removed without replacement")
		}
		switch tail.kind {
		case KindBranch:
			p := mutableCopy(parent)
			p.setExtensionChild(tail)
			tail = p
		case KindLeaf:
			merged := newLeaf(concatNibbles(parent.path, tail.path), tail.value)
			dropIfUnowned(tail)
			tail = merged
		case KindExtension:
			merged := newExtension(concatNibbles(parent.path, tail.path), tail.child)
			dropIfUnowned(tail)
			tail = merged
		default:
			panic(fmt.Sprintf("trie: extension over %s node", tail.kind))
		}
	}

	// Promote the new root. It gets one extra reference so it survives
	// detachment from the stack.
	if tail == nil {
		if t.root != nil {
			old := t.root
			t.root = nil
			old.release()
		}
		return nil
	}
	if tail != t.root {
		tail.retain()
		old := t.root
		t.root = tail
		if old != nil {
			old.release()
		}
	}
	return nil
}

// dropIfUnowned disassembles a freshly built node that was replaced before
// acquiring any owner, releasing the edges it holds.
func dropIfUnowned(n *Node) {
	if n.refs == 0 && n.dirty {
		n.discard()
	}
}

// concatNibbles joins two nibble fragments into a fresh slice.
func concatNibbles(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// --- Commit pipeline ---

// queuedNode is one sealed node awaiting the committer.
type queuedNode struct {
	hash    types.Hash
	encoded []byte
}

// commitQueue collects sealed nodes in seal order. It is concurrency-safe
// for the parallel branch commit.
type commitQueue struct {
	mu    sync.Mutex
	items []queuedNode
	count int
}

func (q *commitQueue) push(hash types.Hash, encoded []byte) {
	q.mu.Lock()
	q.items = append(q.items, queuedNode{hash, encoded})
	q.count++
	q.mu.Unlock()
}

func (q *commitQueue) pop() (queuedNode, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return queuedNode{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

func (q *commitQueue) pushed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// commitNode seals the subtree under n post-order: children first, then
// the node itself. Sealed nodes whose encoding reaches the hash threshold
// enter the shared cache and the commit queue; smaller ones live inlined
// in their parents. The root is always hashed and enqueued.
func (t *Trie) commitNode(n *Node, isRoot bool, queue *commitQueue) error {
	if n.kind == KindUnknown || !n.dirty {
		return nil
	}
	switch n.kind {
	case KindBranch:
		dirty := 0
		for i := range n.children {
			if n.isChildDirty(i) {
				dirty++
			}
		}
		if isRoot && t.cfg.ParallelBranches && dirty >= parallelCommitThreshold {
			if err := t.commitChildrenParallel(n, queue); err != nil {
				return err
			}
		} else {
			for _, c := range n.children {
				if c != nil && c.dirty {
					if err := t.commitNode(c, false, queue); err != nil {
						return err
					}
				}
			}
		}
	case KindExtension:
		if n.child.dirty {
			if err := t.commitNode(n.child, false, queue); err != nil {
				return err
			}
		}
	}

	ensureEncoded(n, isRoot)
	n.seal()
	if len(n.encoded) >= hashLen || isRoot {
		t.store.cache.Put(n.hash, n.encoded)
		queue.push(n.hash, n.encoded)
	}
	return nil
}

// commitChildrenParallel commits the root's dirty branch children
// concurrently, one worker per subtree. Workers touch disjoint subtrees;
// failures are collected and surfaced as one AggregatedCommitError.
func (t *Trie) commitChildrenParallel(n *Node, queue *commitQueue) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, c := range n.children {
		if c == nil || !c.dirty {
			continue
		}
		wg.Add(1)
		go func(c *Node) {
			defer wg.Done()
			if err := t.commitNode(c, false, queue); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()
	if len(errs) > 0 {
		return &AggregatedCommitError{Errors: errs}
	}
	return nil
}
