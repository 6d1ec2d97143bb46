package rawdb

import "github.com/statetrie/statetrie/core/types"

// Key prefixes partition the store into namespaces. Trie nodes are filed
// under their 32-byte content hash; identical subtrees therefore share
// storage automatically.
var (
	// trieNodePrefix + node hash -> node RLP
	trieNodePrefix = []byte("t")
)

// TrieNodeKey returns the store key for a trie node with the given hash.
func TrieNodeKey(hash types.Hash) []byte {
	key := make([]byte, 0, len(trieNodePrefix)+types.HashLength)
	key = append(key, trieNodePrefix...)
	return append(key, hash.Bytes()...)
}

// ReadTrieNode retrieves a trie node's RLP encoding, or ErrNotFound.
func ReadTrieNode(db KeyValueStore, hash types.Hash) ([]byte, error) {
	return db.Get(TrieNodeKey(hash))
}

// WriteTrieNode stores a trie node's RLP encoding under its hash.
func WriteTrieNode(db KeyValueStore, hash types.Hash, data []byte) error {
	return db.Put(TrieNodeKey(hash), data)
}

// HasTrieNode reports whether a trie node is present.
func HasTrieNode(db KeyValueStore, hash types.Hash) bool {
	ok, _ := db.Has(TrieNodeKey(hash))
	return ok
}
