package trie

import (
	"bytes"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/statetrie/statetrie/core/rawdb"
	"github.com/statetrie/statetrie/core/types"
)

// randomBindings produces n distinct key/value pairs from a deterministic
// source.
func randomBindings(rng *rand.Rand, n int) map[string][]byte {
	bindings := make(map[string][]byte, n)
	for len(bindings) < n {
		key := make([]byte, 1+rng.Intn(32))
		rng.Read(key)
		value := make([]byte, 1+rng.Intn(64))
		rng.Read(value)
		bindings[string(key)] = value
	}
	return bindings
}

// Round-trip: after commit, every inserted binding reads back and foreign
// keys stay absent.
func TestRandomRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(0x5eed))
	tr, _, _ := newTestTrie(t)
	bindings := randomBindings(rng, 200)

	for k, v := range bindings {
		if err := tr.Put([]byte(k), v); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	if _, err := tr.Commit(1); err != nil {
		t.Fatalf("commit: %v", err)
	}
	for k, v := range bindings {
		got, err := tr.Get([]byte(k))
		if err != nil {
			t.Fatalf("get(%x): %v", k, err)
		}
		if !bytes.Equal(got, v) {
			t.Fatalf("get(%x) = %x, want %x", k, got, v)
		}
	}
	for i := 0; i < 100; i++ {
		key := make([]byte, 33) // longer than any inserted key
		rng.Read(key)
		if _, err := tr.Get(key); err != ErrNotFound {
			t.Fatalf("foreign key present: %v", err)
		}
	}
}

// Order-independence: permutations of the same mapping produce the same
// root hash.
func TestRandomOrderIndependence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	bindings := randomBindings(rng, 100)

	keys := make([]string, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var want [32]byte
	for round := 0; round < 5; round++ {
		rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
		tr, _, _ := newTestTrie(t)
		for _, k := range keys {
			tr.Put([]byte(k), bindings[k])
		}
		root := tr.Hash()
		if round == 0 {
			copy(want[:], root.Bytes())
			continue
		}
		if !bytes.Equal(root.Bytes(), want[:]) {
			t.Fatalf("round %d root %x differs from %x", round, root.Bytes(), want)
		}
	}
}

// Delete to empty: inserting arbitrary bindings then deleting them all
// yields the empty root, in any interleaving.
func TestRandomDeleteToEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	bindings := randomBindings(rng, 150)

	tr, _, _ := newTestTrie(t)
	for k, v := range bindings {
		tr.Put([]byte(k), v)
	}
	keys := make([]string, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	for _, k := range keys {
		if err := tr.Delete([]byte(k)); err != nil {
			t.Fatalf("delete(%x): %v", k, err)
		}
	}
	if got := tr.Hash(); got != types.EmptyRootHash {
		t.Fatalf("root after deleting everything = %s", got.Hex())
	}
}

// Structural sharing: a trie opened at the previous root reads the old
// values with no further writes to the store.
func TestRandomStructuralSharing(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	tr, db, store := newTestTrie(t)
	bindings := randomBindings(rng, 80)

	for k, v := range bindings {
		tr.Put([]byte(k), v)
	}
	r1, err := tr.Commit(1)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Mutate half the keys and commit again.
	i := 0
	for k := range bindings {
		if i%2 == 0 {
			tr.Put([]byte(k), []byte("rewritten"))
		}
		i++
	}
	if _, err := tr.Commit(2); err != nil {
		t.Fatalf("commit 2: %v", err)
	}

	writes := db.Len()
	old := NewAtRoot(store, r1, ReadOnlyConfig)
	for k, v := range bindings {
		got, err := old.Get([]byte(k))
		if err != nil {
			t.Fatalf("historical get(%x): %v", k, err)
		}
		if !bytes.Equal(got, v) {
			t.Fatalf("historical get(%x) = %x, want %x", k, got, v)
		}
	}
	if db.Len() != writes {
		t.Fatal("historical reads must not write to the store")
	}
}

// Interleaved mutations against a reference map.
func TestRandomAgainstReferenceMap(t *testing.T) {
	rng := rand.New(rand.NewSource(12345))
	tr, _, _ := newTestTrie(t)
	reference := make(map[string][]byte)

	keyspace := make([][]byte, 64)
	for i := range keyspace {
		keyspace[i] = []byte(fmt.Sprintf("key-%02d", i))
	}

	for step := 0; step < 2000; step++ {
		key := keyspace[rng.Intn(len(keyspace))]
		switch rng.Intn(3) {
		case 0, 1: // put
			value := make([]byte, 1+rng.Intn(48))
			rng.Read(value)
			if err := tr.Put(key, value); err != nil {
				t.Fatalf("step %d put: %v", step, err)
			}
			reference[string(key)] = value
		case 2: // delete
			if err := tr.Delete(key); err != nil {
				t.Fatalf("step %d delete: %v", step, err)
			}
			delete(reference, string(key))
		}
		if step%500 == 499 {
			if _, err := tr.Commit(uint64(step)); err != nil {
				t.Fatalf("step %d commit: %v", step, err)
			}
		}
	}
	for _, key := range keyspace {
		want, bound := reference[string(key)]
		got, err := tr.Get(key)
		if bound {
			if err != nil || !bytes.Equal(got, want) {
				t.Fatalf("get(%s) = %x, %v; want %x", key, got, err, want)
			}
		} else if err != ErrNotFound {
			t.Fatalf("get(%s) err = %v, want ErrNotFound", key, err)
		}
	}
}

// Parallel branch commit produces identical roots and identical persisted
// state as the sequential commit.
func TestParallelCommitEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(31337))
	bindings := randomBindings(rng, 300)

	run := func(parallel bool) ([32]byte, *rawdb.MemoryDB) {
		db := rawdb.NewMemoryDB()
		store := NewNodeStore(db, nil, DefaultCacheMemoryBudget)
		cfg := DefaultConfig
		cfg.ParallelBranches = parallel
		tr := New(store, cfg)
		for k, v := range bindings {
			tr.Put([]byte(k), v)
		}
		root, err := tr.Commit(1)
		if err != nil {
			t.Fatalf("commit(parallel=%v): %v", parallel, err)
		}
		var out [32]byte
		copy(out[:], root.Bytes())
		return out, db
	}

	seqRoot, seqDB := run(false)
	parRoot, parDB := run(true)

	if seqRoot != parRoot {
		t.Fatalf("roots differ: sequential %x, parallel %x", seqRoot, parRoot)
	}
	seqKeys := seqDB.Keys()
	parKeys := parDB.Keys()
	sort.Strings(seqKeys)
	sort.Strings(parKeys)
	if len(seqKeys) != len(parKeys) {
		t.Fatalf("persisted node counts differ: %d vs %d", len(seqKeys), len(parKeys))
	}
	for i := range seqKeys {
		if seqKeys[i] != parKeys[i] {
			t.Fatalf("persisted sets differ at %d", i)
		}
		sv, _ := seqDB.Get([]byte(seqKeys[i]))
		pv, _ := parDB.Get([]byte(parKeys[i]))
		if !bytes.Equal(sv, pv) {
			t.Fatalf("persisted bytes differ for key %x", seqKeys[i])
		}
	}
}

// Commit idempotence under random content.
func TestRandomCommitIdempotence(t *testing.T) {
	rng := rand.New(rand.NewSource(2024))
	tr, _, store := newTestTrie(t)
	counter := &countingCommitter{inner: store.Committer()}
	store.committer = counter

	for k, v := range randomBindings(rng, 120) {
		tr.Put([]byte(k), v)
	}
	r1, err := tr.Commit(1)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	writes := counter.writes
	r2, err := tr.Commit(2)
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if r1 != r2 || counter.writes != writes {
		t.Fatalf("idempotence violated: roots %x/%x, %d extra writes", r1, r2, counter.writes-writes)
	}
}
