// Package index defines the persisted shape of the inverted index: posting
// records mapping a normalized term to the set of entity keys whose text
// contains it, plus the Store interface the records live behind.
//
// A given (generation, kind, field, term) tuple may be covered by several
// posting records at once, one per indexer batch that touched the term.
// Readers must union the match sets of every record they fetch; the
// optimizer consolidates the duplicates after the fact.
package index

import (
	"fmt"
	"strings"
	"time"
)

// termRangeEnd sorts after every valid term character, closing the half-open
// range used for prefix scans.
const termRangeEnd = "￿"

// PrefixUpperBound returns the exclusive upper bound of the term range
// covering all terms that start with prefix.
func PrefixUpperBound(prefix string) string {
	return prefix + termRangeEnd
}

// Key is an opaque reference to an indexed entity. The index stores keys,
// never entity data; resolving a key back to an entity is the caller's
// business.
type Key struct {
	Kind string
	ID   string
}

func (k Key) String() string {
	return k.Kind + "/" + k.ID
}

// ParseKey parses the string form produced by Key.String.
func ParseKey(s string) (Key, error) {
	kind, id, ok := strings.Cut(s, "/")
	if !ok || kind == "" || id == "" {
		return Key{}, fmt.Errorf("malformed entity key %q", s)
	}
	return Key{Kind: kind, ID: id}, nil
}

// KeySet is a set of entity keys. A key is either indexed for a term or it
// is not; duplicates are impossible.
type KeySet map[Key]struct{}

func NewKeySet(keys ...Key) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s KeySet) Add(k Key) {
	s[k] = struct{}{}
}

func (s KeySet) Contains(k Key) bool {
	_, ok := s[k]
	return ok
}

// Union adds every key of other into s.
func (s KeySet) Union(other KeySet) {
	for k := range other {
		s[k] = struct{}{}
	}
}

// FieldSet records which entity fields a key matched through.
type FieldSet map[string]struct{}

func NewFieldSet(fields ...string) FieldSet {
	s := make(FieldSet, len(fields))
	for _, f := range fields {
		s[f] = struct{}{}
	}
	return s
}

func (s FieldSet) Add(field string) {
	s[field] = struct{}{}
}

func (s FieldSet) Union(other FieldSet) {
	for f := range other {
		s[f] = struct{}{}
	}
}

func (s FieldSet) Contains(field string) bool {
	_, ok := s[field]
	return ok
}

// Posting is the persisted unit of the inverted index.
type Posting struct {
	// ID identifies the stored record so the optimizer can delete it.
	// Zero until the record has been persisted.
	ID int64

	// Generation tags the record with the index schema version it was
	// written under. Readers skip records from other generations.
	Generation int

	EntityKind string
	Field      string
	Term       string

	// UpdatedAt is the last write time. Informational only.
	UpdatedAt time.Time

	Matches KeySet
}

// NewPosting returns an empty posting for the given tuple.
func NewPosting(generation int, entityKind, field, term string) *Posting {
	return &Posting{
		Generation: generation,
		EntityKind: entityKind,
		Field:      field,
		Term:       term,
		Matches:    make(KeySet),
	}
}
