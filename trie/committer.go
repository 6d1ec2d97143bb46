package trie

import (
	"sort"
	"sync"

	"github.com/statetrie/statetrie/core/rawdb"
	"github.com/statetrie/statetrie/core/types"
)

// Committer is the sink that receives sealed nodes during a trie commit and
// forwards them to the backing key-value store, tagged by block height.
// Implementations may batch writes per block.
type Committer interface {
	// CommitNode persists one sealed node encoding under its hash.
	CommitNode(blockHeight uint64, hash types.Hash, encoded []byte) error

	// FindCached returns an in-flight node that has been committed but not
	// yet persisted, or false. It is a fast path for resolution during the
	// same block.
	FindCached(hash types.Hash) ([]byte, bool)
}

// NullCommitter rejects all commits. It backs read-only tries.
type NullCommitter struct{}

func (NullCommitter) CommitNode(uint64, types.Hash, []byte) error {
	return ErrCommitsDisabled
}

func (NullCommitter) FindCached(types.Hash) ([]byte, bool) {
	return nil, false
}

// PassthroughCommitter writes each node to the backing store immediately.
type PassthroughCommitter struct {
	db rawdb.KeyValueStore
}

// NewPassthroughCommitter adapts a raw key-value store into a committer.
func NewPassthroughCommitter(db rawdb.KeyValueStore) *PassthroughCommitter {
	return &PassthroughCommitter{db: db}
}

func (c *PassthroughCommitter) CommitNode(_ uint64, hash types.Hash, encoded []byte) error {
	return rawdb.WriteTrieNode(c.db, hash, encoded)
}

func (c *PassthroughCommitter) FindCached(types.Hash) ([]byte, bool) {
	return nil, false
}

// BatchCommitter buffers the nodes of each block and persists them with a
// single write batch per block. Buffered nodes are visible through
// FindCached until flushed.
type BatchCommitter struct {
	mu     sync.Mutex
	db     rawdb.KeyValueStore
	blocks map[uint64]*blockBuffer
	lookup map[types.Hash][]byte
}

// blockBuffer holds one block's nodes in insertion order.
type blockBuffer struct {
	order  []types.Hash
	nodes  map[types.Hash][]byte
	nbytes int
}

// NewBatchCommitter creates a committer that batches writes per block.
func NewBatchCommitter(db rawdb.KeyValueStore) *BatchCommitter {
	return &BatchCommitter{
		db:     db,
		blocks: make(map[uint64]*blockBuffer),
		lookup: make(map[types.Hash][]byte),
	}
}

func (c *BatchCommitter) CommitNode(blockHeight uint64, hash types.Hash, encoded []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := c.blocks[blockHeight]
	if buf == nil {
		buf = &blockBuffer{nodes: make(map[types.Hash][]byte)}
		c.blocks[blockHeight] = buf
	}
	if _, ok := buf.nodes[hash]; !ok {
		buf.order = append(buf.order, hash)
		buf.nodes[hash] = encoded
		buf.nbytes += len(encoded)
	}
	c.lookup[hash] = encoded
	return nil
}

func (c *BatchCommitter) FindCached(hash types.Hash) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.lookup[hash]
	return data, ok
}

// Pending returns the number of buffered nodes across all blocks.
func (c *BatchCommitter) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lookup)
}

// FlushBlock writes one block's nodes to the store in insertion order and
// drops them from the buffer.
func (c *BatchCommitter) FlushBlock(blockHeight uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := c.blocks[blockHeight]
	if buf == nil {
		return nil
	}
	batch := c.db.NewBatch()
	for _, hash := range buf.order {
		if err := batch.Put(rawdb.TrieNodeKey(hash), buf.nodes[hash]); err != nil {
			return err
		}
	}
	if err := batch.Write(); err != nil {
		return err
	}
	for _, hash := range buf.order {
		delete(c.lookup, hash)
	}
	delete(c.blocks, blockHeight)
	return nil
}

// FlushAll writes every buffered block, lowest height first.
func (c *BatchCommitter) FlushAll() error {
	c.mu.Lock()
	heights := make([]uint64, 0, len(c.blocks))
	for h := range c.blocks {
		heights = append(heights, h)
	}
	c.mu.Unlock()

	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	for _, h := range heights {
		if err := c.FlushBlock(h); err != nil {
			return err
		}
	}
	return nil
}
