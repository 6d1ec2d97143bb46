package trie

import (
	"errors"
	"fmt"
	"strings"

	"github.com/statetrie/statetrie/core/types"
)

var (
	// ErrNotFound is returned when a key is not bound in the trie.
	ErrNotFound = errors.New("trie: key not found")

	// ErrMalformedNode is returned when an encoded node cannot be decoded.
	ErrMalformedNode = errors.New("trie: malformed node")

	// ErrMalformedPath is returned when a hex-prefix encoded path uses
	// reserved flag bits.
	ErrMalformedPath = errors.New("trie: malformed hex-prefix path")

	// ErrCommitsDisabled is returned when Commit is invoked on a trie
	// constructed read-only.
	ErrCommitsDisabled = errors.New("trie: commits disabled")

	// ErrConcurrentMutation is returned when two writers, or a writer and a
	// same-root reader, overlap on one trie instance.
	ErrConcurrentMutation = errors.New("trie: concurrent mutation")

	// ErrMissingForDelete is returned by DeleteStrict when the key to
	// delete is absent.
	ErrMissingForDelete = errors.New("trie: delete of missing key")

	// ErrCommitRace is returned when the commit queue is observed in an
	// inconsistent state while draining.
	ErrCommitRace = errors.New("trie: commit queue race")
)

// MissingNodeError is returned when a referenced node is absent from both
// the node cache and the backing store.
type MissingNodeError struct {
	Hash types.Hash
}

func (e *MissingNodeError) Error() string {
	return fmt.Sprintf("trie: missing node %s", e.Hash.Hex())
}

// AggregatedCommitError collects the failures of a parallel branch commit.
type AggregatedCommitError struct {
	Errors []error
}

func (e *AggregatedCommitError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("trie: %d commit worker(s) failed: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the collected errors to errors.Is / errors.As.
func (e *AggregatedCommitError) Unwrap() []error {
	return e.Errors
}
