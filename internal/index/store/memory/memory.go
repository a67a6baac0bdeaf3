// Package memory provides an in-memory index.Store used in tests and local
// development. It mirrors the semantics of the Postgres-backed store:
// additive puts, exact and range term lookups, deletion by record ID.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openradio/librarysearch/internal/index"
)

type Store struct {
	mu       sync.RWMutex
	nextID   int64
	postings map[int64]*index.Posting
}

func New() *Store {
	return &Store{
		postings: make(map[int64]*index.Posting),
	}
}

func (s *Store) PutPostings(ctx context.Context, postings []*index.Posting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range postings {
		s.nextID++
		stored := clonePosting(p)
		stored.ID = s.nextID
		stored.UpdatedAt = time.Now()
		s.postings[stored.ID] = stored
	}
	return nil
}

func (s *Store) FetchTerm(ctx context.Context, term string, f index.Filter, limit int) ([]*index.Posting, error) {
	return s.fetch(func(p *index.Posting) bool { return p.Term == term }, f, limit)
}

func (s *Store) FetchPrefix(ctx context.Context, prefix string, f index.Filter, limit int) ([]*index.Posting, error) {
	upper := index.PrefixUpperBound(prefix)
	return s.fetch(func(p *index.Posting) bool {
		return p.Term >= prefix && p.Term < upper
	}, f, limit)
}

func (s *Store) DeletePostings(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.postings, id)
	}
	return nil
}

// Len reports the number of stored posting records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.postings)
}

func (s *Store) fetch(match func(*index.Posting) bool, f index.Filter, limit int) ([]*index.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*index.Posting
	for _, p := range s.postings {
		if !match(p) {
			continue
		}
		if f.EntityKind != "" && p.EntityKind != f.EntityKind {
			continue
		}
		if f.Field != "" && p.Field != f.Field {
			continue
		}
		result = append(result, clonePosting(p))
	}
	// Iteration over the map is unordered; sort for a stable cap.
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func clonePosting(p *index.Posting) *index.Posting {
	matches := make(index.KeySet, len(p.Matches))
	matches.Union(p.Matches)
	clone := *p
	clone.Matches = matches
	return &clone
}
