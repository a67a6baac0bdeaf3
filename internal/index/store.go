package index

import "context"

// Filter narrows a term or prefix lookup. Zero values mean "any".
type Filter struct {
	EntityKind string
	Field      string
}

// Store is the persistence boundary of the inverted index. Implementations
// back it with a key/value store that supports exact-match and range queries
// on the term column.
//
// Writes are additive: concurrent batches may create redundant records for
// the same tuple, never overwrite each other. DeletePostings exists for the
// optimizer's consolidation pass.
type Store interface {
	// PutPostings persists a batch of posting records, atomically where
	// the underlying store supports it.
	PutPostings(ctx context.Context, postings []*Posting) error

	// FetchTerm returns up to limit posting records whose term equals
	// term, across all generations. A limit <= 0 means no cap.
	FetchTerm(ctx context.Context, term string, f Filter, limit int) ([]*Posting, error)

	// FetchPrefix returns up to limit posting records whose term lies in
	// the half-open range [prefix, PrefixUpperBound(prefix)).
	FetchPrefix(ctx context.Context, prefix string, f Filter, limit int) ([]*Posting, error)

	// DeletePostings removes the records with the given IDs. Unknown IDs
	// are ignored.
	DeletePostings(ctx context.Context, ids []int64) error
}
