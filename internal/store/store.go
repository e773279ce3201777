// Package store defines the document-store contract the game core is built
// on: point reads and replaces of JSON documents addressed by path,
// idempotent array-union updates, optimistic multi-document transactions,
// and live per-document subscriptions.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrTxContention is returned when a transaction keeps losing the
	// optimistic commit race and runs out of attempts.
	ErrTxContention = errors.New("store: transaction contention")
)

// Snapshot is one committed value of a document.
type Snapshot struct {
	Path    string
	Data    json.RawMessage
	Version int64
	Exists  bool
}

// Decode unmarshals the snapshot payload into out.
func (s Snapshot) Decode(out any) error {
	if !s.Exists {
		return fmt.Errorf("store: decode %s: document does not exist", s.Path)
	}
	if err := json.Unmarshal(s.Data, out); err != nil {
		return fmt.Errorf("store: decode %s: %w", s.Path, err)
	}
	return nil
}

// Tx is the transactional view handed to RunTransaction closures. Reads
// observe a consistent snapshot plus the transaction's own buffered writes;
// nothing is visible to other readers until commit.
type Tx interface {
	Get(path string, out any) (bool, error)
	Set(path string, doc any) error
	Delete(path string) error
}

// Store is the backend contract. Implementations must serialize conflicting
// transactions per document and deliver subscription values in commit order,
// coalescing to the latest value for slow consumers.
type Store interface {
	// Get point-reads the document at path into out. The boolean reports
	// whether the document exists.
	Get(ctx context.Context, path string, out any) (bool, error)
	// Set creates or fully replaces the document at path.
	Set(ctx context.Context, path string, doc any) error
	// ArrayUnion adds elems to the named string-array field, skipping
	// values already present. The document is created if absent.
	ArrayUnion(ctx context.Context, path, field string, elems ...string) error
	// Delete removes the document. Deleting an absent document is a no-op.
	Delete(ctx context.Context, path string) error
	// RunTransaction executes fn against a transactional view and commits
	// its writes atomically. On a conflicting concurrent commit the closure
	// is re-run; an error returned by fn aborts without retry and is
	// returned verbatim.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
	// Subscribe opens a live feed of the document at path. The current
	// snapshot is delivered first, then every committed change. The feed is
	// released by Close or when ctx is cancelled.
	Subscribe(ctx context.Context, path string) (*Subscription, error)
}

// txAttempts bounds optimistic commit retries before ErrTxContention.
const txAttempts = 16

// arrayUnion implements Store.ArrayUnion on top of RunTransaction so both
// backends share the exact union semantics: string identity, insertion
// order preserved, document created with just the field when absent.
func arrayUnion(ctx context.Context, st Store, path, field string, elems ...string) error {
	if len(elems) == 0 {
		return nil
	}
	return st.RunTransaction(ctx, func(tx Tx) error {
		doc := map[string]json.RawMessage{}
		if _, err := tx.Get(path, &doc); err != nil {
			return err
		}
		var current []string
		if raw, ok := doc[field]; ok {
			if err := json.Unmarshal(raw, &current); err != nil {
				return fmt.Errorf("store: array union on %s.%s: %w", path, field, err)
			}
		}
		seen := make(map[string]bool, len(current))
		for _, v := range current {
			seen[v] = true
		}
		changed := false
		for _, e := range elems {
			if !seen[e] {
				current = append(current, e)
				seen[e] = true
				changed = true
			}
		}
		if !changed {
			return nil
		}
		raw, err := json.Marshal(current)
		if err != nil {
			return err
		}
		doc[field] = raw
		return tx.Set(path, doc)
	})
}

func encode(doc any) (json.RawMessage, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("store: encode: %w", err)
	}
	return b, nil
}
