package trie

import (
	"github.com/statetrie/statetrie/core/types"
)

// VisitContext carries the position of a visitor walk.
type VisitContext struct {
	// Level is the depth below the tree root, counting every node.
	Level int
	// IsStorage is true while walking an account's storage trie.
	IsStorage bool
	// ExpectAccounts hints that leaf values are account RLP bodies.
	ExpectAccounts bool
	// Path is the absolute nibble path of the current node.
	Path []byte
}

// Visitor receives callbacks from a depth-first trie walk. Branch children
// are visited in slot order 0..15. Resolution failures are reported through
// VisitMissingNode and terminate the walk instead of surfacing an error.
type Visitor interface {
	VisitTree(root types.Hash, ctx *VisitContext)
	VisitMissingNode(hash types.Hash, ctx *VisitContext)
	VisitBranch(n *Node, ctx *VisitContext)
	VisitExtension(n *Node, ctx *VisitContext)
	VisitLeaf(n *Node, value []byte, ctx *VisitContext)
}

// AccountVisitor is an optional extension of Visitor invoked with the
// decoded account of each state leaf when walking with expectAccounts.
type AccountVisitor interface {
	VisitAccount(account *types.Account, ctx *VisitContext)
}

// Accept walks the tree rooted at the given hash depth-first, driving the
// visitor. The root may differ from the trie's current root, in which case
// the walk resolves it from the node store. With expectAccounts set, leaf
// values decode as accounts and the walk descends into each account's
// storage trie.
func (t *Trie) Accept(v Visitor, root types.Hash, expectAccounts bool) {
	ctx := &VisitContext{ExpectAccounts: expectAccounts}
	v.VisitTree(root, ctx)
	if root == types.EmptyRootHash || root.IsZero() {
		return
	}
	start := t.root
	if start == nil || t.rootHash != root || start.dirty {
		start = newUnknown(root)
	}
	t.walk(start, v, ctx)
}

// walk visits the subtree under n, returning false when the walk must
// terminate because of a missing node.
func (t *Trie) walk(n *Node, v Visitor, ctx *VisitContext) bool {
	if n.kind == KindUnknown {
		if err := n.resolve(t.store); err != nil {
			v.VisitMissingNode(n.hash, ctx)
			return false
		}
	}
	switch n.kind {
	case KindBranch:
		v.VisitBranch(n, ctx)
		ctx.Level++
		base := len(ctx.Path)
		for i := 0; i < branchWidth; i++ {
			c := n.children[i]
			if c == nil {
				continue
			}
			ctx.Path = append(ctx.Path[:base], byte(i))
			if !t.walk(c, v, ctx) {
				return false
			}
		}
		ctx.Path = ctx.Path[:base]
		ctx.Level--
		return true

	case KindExtension:
		v.VisitExtension(n, ctx)
		ctx.Level++
		base := len(ctx.Path)
		ctx.Path = append(ctx.Path, n.path...)
		ok := t.walk(n.child, v, ctx)
		ctx.Path = ctx.Path[:base]
		ctx.Level--
		return ok

	case KindLeaf:
		v.VisitLeaf(n, n.value, ctx)
		if ctx.ExpectAccounts && !ctx.IsStorage {
			return t.visitAccountLeaf(n, v, ctx)
		}
		return true

	default:
		panic("trie: walk reached unresolved node")
	}
}

// visitAccountLeaf decodes a state leaf as an account, reports it to an
// AccountVisitor if the visitor implements one, and continues the walk into
// the account's storage trie.
func (t *Trie) visitAccountLeaf(n *Node, v Visitor, ctx *VisitContext) bool {
	account, err := types.DecodeAccountRLP(n.value)
	if err != nil {
		// Not an account body; the hint was wrong for this leaf.
		return true
	}
	if av, ok := v.(AccountVisitor); ok {
		av.VisitAccount(account, ctx)
	}
	if !account.HasStorage() {
		return true
	}
	storageCtx := &VisitContext{
		Level:          ctx.Level + 1,
		IsStorage:      true,
		ExpectAccounts: ctx.ExpectAccounts,
	}
	return t.walk(newUnknown(account.Root), v, storageCtx)
}
