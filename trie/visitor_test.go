package trie

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/statetrie/statetrie/core/rawdb"
	"github.com/statetrie/statetrie/core/types"
)

// recordingVisitor collects the walk as a sequence of event strings.
type recordingVisitor struct {
	events   []string
	missing  []types.Hash
	leaves   map[string]string
	accounts []*types.Account
}

func newRecordingVisitor() *recordingVisitor {
	return &recordingVisitor{leaves: make(map[string]string)}
}

func (v *recordingVisitor) VisitTree(root types.Hash, ctx *VisitContext) {
	v.events = append(v.events, "tree")
}

func (v *recordingVisitor) VisitMissingNode(hash types.Hash, ctx *VisitContext) {
	v.events = append(v.events, "missing")
	v.missing = append(v.missing, hash)
}

func (v *recordingVisitor) VisitBranch(n *Node, ctx *VisitContext) {
	v.events = append(v.events, "branch")
}

func (v *recordingVisitor) VisitExtension(n *Node, ctx *VisitContext) {
	v.events = append(v.events, "extension")
}

func (v *recordingVisitor) VisitLeaf(n *Node, value []byte, ctx *VisitContext) {
	v.events = append(v.events, "leaf")
	key := append([]byte{}, ctx.Path...)
	v.leaves[string(append(key, n.path...))] = string(value)
}

func (v *recordingVisitor) VisitAccount(account *types.Account, ctx *VisitContext) {
	v.accounts = append(v.accounts, account)
}

func TestAcceptEmptyTree(t *testing.T) {
	tr, _, _ := newTestTrie(t)
	v := newRecordingVisitor()
	tr.Accept(v, types.EmptyRootHash, false)
	if len(v.events) != 1 || v.events[0] != "tree" {
		t.Fatalf("events = %v, want only the tree callback", v.events)
	}
}

func TestAcceptWalksInOrder(t *testing.T) {
	tr, _, _ := newTestTrie(t)
	tr.Put([]byte{0xab}, []byte("x"))
	tr.Put([]byte{0xaf}, []byte("y"))
	root, err := tr.Commit(1)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	v := newRecordingVisitor()
	tr.Accept(v, root, false)

	want := []string{"tree", "extension", "branch", "leaf", "leaf"}
	if len(v.events) != len(want) {
		t.Fatalf("events = %v, want %v", v.events, want)
	}
	for i := range want {
		if v.events[i] != want[i] {
			t.Fatalf("events = %v, want %v", v.events, want)
		}
	}
	// Branch children visit in slot order: b before f.
	if got := v.leaves[string([]byte{0xa, 0xb})]; got != "x" {
		t.Errorf("leaf at [a b] = %q, want x", got)
	}
	if got := v.leaves[string([]byte{0xa, 0xf})]; got != "y" {
		t.Errorf("leaf at [a f] = %q, want y", got)
	}
}

func TestAcceptHistoricalRoot(t *testing.T) {
	tr, _, _ := newTestTrie(t)
	tr.Put([]byte{0x11}, []byte("old"))
	r1, _ := tr.Commit(1)
	tr.Put([]byte{0x11}, []byte("new"))
	tr.Commit(2)

	v := newRecordingVisitor()
	tr.Accept(v, r1, false)
	if got := v.leaves[string([]byte{0x1, 0x1})]; got != "old" {
		t.Fatalf("historical walk saw %q, want old", got)
	}
}

func TestAcceptMissingNodeTerminates(t *testing.T) {
	tr, _, _ := newTestTrie(t)
	bogus := types.BytesToHash([]byte("not persisted"))

	v := newRecordingVisitor()
	tr.Accept(v, bogus, false)
	if len(v.missing) != 1 || v.missing[0] != bogus {
		t.Fatalf("missing = %v, want [%s]", v.missing, bogus.Hex())
	}
	// The walk ends with the missing callback, no leaf events.
	for _, e := range v.events {
		if e == "leaf" {
			t.Fatal("walk continued past a missing node")
		}
	}
}

func TestAcceptAccounts(t *testing.T) {
	db := rawdb.NewMemoryDB()
	store := NewNodeStore(db, nil, DefaultCacheMemoryBudget)

	// Build a storage trie for one account.
	storage := New(store, DefaultConfig)
	storage.Put([]byte{0x01}, []byte("slot-value"))
	storageRoot, err := storage.Commit(1)
	if err != nil {
		t.Fatalf("storage commit: %v", err)
	}

	withStorage := &types.Account{
		Nonce:    1,
		Balance:  uint256.NewInt(1000),
		Root:     storageRoot,
		CodeHash: types.EmptyCodeHash.Bytes(),
	}
	plain := &types.Account{
		Nonce:    2,
		Balance:  uint256.NewInt(5),
		Root:     types.EmptyRootHash,
		CodeHash: types.EmptyCodeHash.Bytes(),
	}

	state := New(store, DefaultConfig)
	state.Put([]byte{0xaa, 0x01}, withStorage.EncodeRLP())
	state.Put([]byte{0xaa, 0x02}, plain.EncodeRLP())
	root, err := state.Commit(1)
	if err != nil {
		t.Fatalf("state commit: %v", err)
	}

	v := newRecordingVisitor()
	state.Accept(v, root, true)

	if len(v.accounts) != 2 {
		t.Fatalf("decoded %d accounts, want 2", len(v.accounts))
	}
	// The storage leaf of the first account is walked too.
	found := false
	for key, val := range v.leaves {
		if val == "slot-value" {
			found = true
			_ = key
		}
	}
	if !found {
		t.Fatal("storage trie leaf was not visited")
	}
}
