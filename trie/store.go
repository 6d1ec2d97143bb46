package trie

import (
	"errors"

	"github.com/statetrie/statetrie/core/rawdb"
	"github.com/statetrie/statetrie/core/types"
	"github.com/statetrie/statetrie/log"
)

// NodeResolver retrieves serialized trie nodes by their content hash.
type NodeResolver interface {
	Node(hash types.Hash) ([]byte, error)
}

// NodeStore resolves nodes through the shared node cache, the committer's
// in-flight buffer, and finally the backing key-value store. One store is
// shared by all tries over the same database, which is what makes the node
// cache process-wide.
type NodeStore struct {
	cache     *NodeCache
	committer Committer
	db        rawdb.KeyValueStore
	lg        *log.Logger
}

// NewNodeStore couples a backing store, a committer and a node cache sized
// by the given memory budget in bytes.
func NewNodeStore(db rawdb.KeyValueStore, committer Committer, cacheMemoryBudget int64) *NodeStore {
	if committer == nil {
		committer = NewPassthroughCommitter(db)
	}
	return &NodeStore{
		cache:     NewNodeCache(cacheMemoryBudget),
		committer: committer,
		db:        db,
		lg:        log.Default().Module("trie"),
	}
}

// Node retrieves the serialized node with the given hash. Store hits
// populate the cache. Returns a MissingNodeError when the hash is present
// in neither the cache, the committer's in-flight buffer, nor the store.
func (s *NodeStore) Node(hash types.Hash) ([]byte, error) {
	if data, ok := s.cache.Get(hash); ok {
		return data, nil
	}
	if data, ok := s.committer.FindCached(hash); ok {
		return data, nil
	}
	data, err := rawdb.ReadTrieNode(s.db, hash)
	if err != nil {
		if errors.Is(err, rawdb.ErrNotFound) {
			return nil, &MissingNodeError{Hash: hash}
		}
		s.lg.Warn("trie node read failed", "hash", hash.Hex(), "err", err)
		return nil, err
	}
	s.cache.Put(hash, data)
	return data, nil
}

// Cache returns the store's shared node cache.
func (s *NodeStore) Cache() *NodeCache {
	return s.cache
}

// Committer returns the store's commit sink.
func (s *NodeStore) Committer() Committer {
	return s.committer
}

// Database returns the backing key-value store.
func (s *NodeStore) Database() rawdb.KeyValueStore {
	return s.db
}
