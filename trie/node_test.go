package trie

import (
	"bytes"
	"errors"
	"testing"

	"github.com/statetrie/statetrie/core/rawdb"
	"github.com/statetrie/statetrie/core/types"
)

func TestNodeBirth(t *testing.T) {
	leaf := newLeaf([]byte{0x1}, []byte("v"))
	if !leaf.dirty || leaf.sealed || leaf.refs != 0 {
		t.Fatal("mutation-born node must be dirty, unsealed and unreferenced")
	}

	ensureEncoded(leaf, true)
	dec, err := decodeNode(leaf.hash, leaf.encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.dirty || !dec.sealed {
		t.Fatal("decode-born node must be sealed and clean")
	}
}

func TestNodePathCopied(t *testing.T) {
	buf := []byte{0x1, 0x2, 0x3}
	leaf := newLeaf(buf, []byte("v"))
	buf[0] = 0xf
	if leaf.path[0] != 0x1 {
		t.Fatal("constructor must copy the path out of the caller's buffer")
	}
}

func TestSealedMutationPanics(t *testing.T) {
	leaf := newLeaf([]byte{0x1}, []byte("v"))
	ensureEncoded(leaf, true)
	leaf.seal()
	defer func() {
		if recover() == nil {
			t.Fatal("mutating a sealed node must panic")
		}
	}()
	leaf.setValue([]byte("other"))
}

func TestSealWithoutEncodingPanics(t *testing.T) {
	leaf := newLeaf([]byte{0x1}, []byte("v"))
	defer func() {
		if recover() == nil {
			t.Fatal("sealing without an encoding must panic")
		}
	}()
	leaf.seal()
}

func TestRefCountUnderflowPanics(t *testing.T) {
	leaf := newLeaf([]byte{0x1}, []byte("v"))
	defer func() {
		if recover() == nil {
			t.Fatal("releasing an unreferenced node must panic")
		}
	}()
	leaf.release()
}

func TestCloneSharesChildren(t *testing.T) {
	child := newLeaf([]byte{0x2}, []byte("c"))
	branch := newBranch()
	branch.setChild(5, child)
	if child.refs != 1 {
		t.Fatalf("child refs = %d, want 1", child.refs)
	}

	clone := branch.clone()
	if clone.refs != 0 || !clone.dirty || clone.sealed {
		t.Fatal("clone must be dirty and unreferenced")
	}
	if clone.children[5] != child {
		t.Fatal("clone must share children by reference")
	}
	if child.refs != 2 {
		t.Fatalf("shared child refs = %d, want 2", child.refs)
	}
}

func TestSetChildAdjustsRefs(t *testing.T) {
	a := newLeaf([]byte{0x1}, []byte("a"))
	b := newLeaf([]byte{0x2}, []byte("b"))
	branch := newBranch()

	branch.setChild(3, a)
	if a.refs != 1 {
		t.Fatalf("a refs = %d, want 1", a.refs)
	}
	branch.setChild(3, b)
	if a.refs != 0 || b.refs != 1 {
		t.Fatalf("after replacement: a refs = %d, b refs = %d", a.refs, b.refs)
	}
	branch.setChild(3, nil)
	if b.refs != 0 {
		t.Fatalf("after clearing: b refs = %d, want 0", b.refs)
	}
}

func TestMutableCopy(t *testing.T) {
	dirty := newLeaf([]byte{0x1}, []byte("v"))
	dirty.retain()
	if mutableCopy(dirty) != dirty {
		t.Fatal("an exclusively owned dirty node must be edited in place")
	}

	dirty.retain()
	if mutableCopy(dirty) == dirty {
		t.Fatal("a shared dirty node must be cloned")
	}

	sealed := newLeaf([]byte{0x1}, []byte("v"))
	ensureEncoded(sealed, true)
	sealed.seal()
	if mutableCopy(sealed) == sealed {
		t.Fatal("a sealed node must be cloned")
	}
}

func TestInvalidateOnMutation(t *testing.T) {
	leaf := newLeaf([]byte{0x1}, []byte("v"))
	ensureEncoded(leaf, true)
	if !leaf.hasHash || leaf.encoded == nil {
		t.Fatal("expected memoized encoding")
	}
	leaf.setValue([]byte("w"))
	if leaf.hasHash || leaf.encoded != nil {
		t.Fatal("mutation must discard the memoized encoding")
	}
}

func TestValidWithOneLess(t *testing.T) {
	branch := newBranch()
	branch.setChild(1, newLeaf(nil, []byte("a")))
	branch.setChild(2, newLeaf(nil, []byte("b")))
	branch.setChild(3, newLeaf(nil, []byte("c")))

	if !branch.validWithOneLess(1) {
		t.Fatal("three children minus one is still a valid branch")
	}

	two := newBranch()
	two.setChild(1, newLeaf(nil, []byte("a")))
	two.setChild(2, newLeaf(nil, []byte("b")))
	if two.validWithOneLess(1) {
		t.Fatal("two children minus one is not a valid branch")
	}

	two.setValue([]byte("term"))
	if !two.validWithOneLess(1) {
		t.Fatal("one child plus a terminator value is a valid branch")
	}
}

func TestResolveMaterializesInPlace(t *testing.T) {
	db := rawdb.NewMemoryDB()
	store := NewNodeStore(db, nil, DefaultCacheMemoryBudget)

	leaf := newLeaf([]byte{0xa, 0xb}, []byte("payload-long-enough-to-hash-xxxxx"))
	ensureEncoded(leaf, true)
	if err := rawdb.WriteTrieNode(db, leaf.hash, leaf.encoded); err != nil {
		t.Fatalf("write: %v", err)
	}

	placeholder := newUnknown(leaf.hash)
	placeholder.retain()
	if err := placeholder.resolve(store); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if placeholder.kind != KindLeaf {
		t.Fatalf("kind = %s, want leaf", placeholder.kind)
	}
	if !bytes.Equal(placeholder.value, leaf.value) {
		t.Fatal("resolved body mismatch")
	}
	if placeholder.refs != 1 {
		t.Fatal("resolution must preserve existing references")
	}
	// Idempotent.
	if err := placeholder.resolve(store); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
}

func TestResolveMissingNode(t *testing.T) {
	store := NewNodeStore(rawdb.NewMemoryDB(), nil, DefaultCacheMemoryBudget)
	missing := newUnknown(types.BytesToHash([]byte{0xde, 0xad}))
	err := missing.resolve(store)
	if err == nil {
		t.Fatal("expected an error for an absent node")
	}
	var mne *MissingNodeError
	if !errors.As(err, &mne) {
		t.Fatalf("err = %T, want MissingNodeError", err)
	}
	if mne.Hash != missing.hash {
		t.Fatalf("error hash = %s, want %s", mne.Hash.Hex(), missing.hash.Hex())
	}
}
