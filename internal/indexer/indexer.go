// Package indexer builds a searchable index of text associated with
// catalog entities. An Indexer accumulates posting records in memory
// across Add calls and writes them to the index store in one batch.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/openradio/librarysearch/internal/catalog"
	"github.com/openradio/librarysearch/internal/index"
	"github.com/openradio/librarysearch/internal/indexer/tokenizer"
	"github.com/openradio/librarysearch/pkg/logger"
	"github.com/openradio/librarysearch/pkg/metrics"
)

// TermNotifier receives the distinct terms a flush touched, typically to
// feed the background optimizer. Implementations must tolerate redelivery;
// optimizing a term twice is harmless.
type TermNotifier interface {
	NotifyTerms(ctx context.Context, terms []string) error
}

type postingKey struct {
	entityKind string
	field      string
	term       string
}

// Indexer is a write-side batching object. It is request-scoped and not
// safe for concurrent use; concurrent requests each build their own
// Indexer, and the optimizer reconciles the duplicate postings their
// flushes may create.
type Indexer struct {
	store      index.Store
	generation int
	notifier   TermNotifier
	metrics    *metrics.Metrics
	pending    map[postingKey]*index.Posting
	logger     *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithTermNotifier wires a notifier that receives the distinct terms each
// Save touches.
func WithTermNotifier(n TermNotifier) Option {
	return func(ix *Indexer) { ix.notifier = n }
}

// WithMetrics wires Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ix *Indexer) { ix.metrics = m }
}

// New creates an Indexer that stamps every posting with the given
// generation.
func New(store index.Store, generation int, opts ...Option) *Indexer {
	ix := &Indexer{
		store:      store,
		generation: generation,
		pending:    make(map[postingKey]*index.Posting),
		logger:     logger.WithComponent("indexer"),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Pending reports the number of posting records accumulated so far.
func (ix *Indexer) Pending() int {
	return len(ix.pending)
}

// pendingPosting returns the accumulating posting for a tuple, creating it
// on first touch.
func (ix *Indexer) pendingPosting(entityKind, field, term string) *index.Posting {
	key := postingKey{entityKind: entityKind, field: field, term: term}
	p, ok := ix.pending[key]
	if !ok {
		p = index.NewPosting(ix.generation, entityKind, field, term)
		ix.pending[key] = p
		if ix.metrics != nil {
			ix.metrics.TermsIndexedTotal.Inc()
		}
	}
	return p
}

// AddKey prepares to index text associated with an entity key. Every term
// exploded from text gains key in its pending posting. Adding the same key
// twice for the same term is idempotent; matches are a set.
func (ix *Indexer) AddKey(key index.Key, field, text string) {
	for _, term := range tokenizer.Explode(text) {
		ix.pendingPosting(key.Kind, field, term).Matches.Add(key)
	}
}

// AddEntity indexes every searchable field of an entity under its own key.
// Fields are applied in sorted name order so batches are deterministic.
func (ix *Indexer) AddEntity(ent catalog.Indexable) {
	key := ent.SearchKey()
	fields := ent.SearchFields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ix.AddKey(key, name, fields[name])
	}
}

// AddArtist prepares to index metadata associated with an Artist.
func (ix *Indexer) AddArtist(artist *catalog.Artist) {
	ix.AddEntity(artist)
}

// AddAlbum prepares to index metadata associated with an Album.
func (ix *Indexer) AddAlbum(album *catalog.Album) {
	ix.AddEntity(album)
}

// AddTrack prepares to index metadata associated with a Track.
func (ix *Indexer) AddTrack(track *catalog.Track) {
	ix.AddEntity(track)
}

// Save writes all pending posting records to the index store in one batch
// and clears the cache. Saving an empty Indexer is a no-op, so Save is
// safe to call repeatedly. Entities being indexed are persisted by their
// own domain code, ideally in the same transaction as the posting writes.
func (ix *Indexer) Save(ctx context.Context) error {
	if len(ix.pending) == 0 {
		return nil
	}
	postings := make([]*index.Posting, 0, len(ix.pending))
	terms := make(map[string]struct{}, len(ix.pending))
	for _, p := range ix.pending {
		postings = append(postings, p)
		terms[p.Term] = struct{}{}
	}
	if err := ix.store.PutPostings(ctx, postings); err != nil {
		if ix.metrics != nil {
			ix.metrics.IndexFlushesTotal.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("saving %d postings: %w", len(postings), err)
	}
	ix.pending = make(map[postingKey]*index.Posting)
	if ix.metrics != nil {
		ix.metrics.IndexFlushesTotal.WithLabelValues("ok").Inc()
		ix.metrics.PostingsFlushedTotal.Add(float64(len(postings)))
	}
	ix.logger.Debug("index batch saved",
		"postings", len(postings),
		"terms", len(terms),
	)

	if ix.notifier != nil {
		touched := make([]string, 0, len(terms))
		for term := range terms {
			touched = append(touched, term)
		}
		sort.Strings(touched)
		if err := ix.notifier.NotifyTerms(ctx, touched); err != nil {
			// The postings are already durable; a lost notification
			// only delays compaction until the term is touched again.
			ix.logger.Warn("term notification failed",
				"terms", len(touched),
				"error", err,
			)
		}
	}
	return nil
}

// CreateArtists creates and indexes a batch of artists by name, saving the
// postings in one flush. It returns the created Artist entities in input
// order; persisting them is the caller's responsibility.
func CreateArtists(ctx context.Context, store index.Store, generation int, names []string, opts ...Option) ([]*catalog.Artist, error) {
	ix := New(store, generation, opts...)
	artists := make([]*catalog.Artist, 0, len(names))
	for _, name := range names {
		artist := catalog.NewArtist(name)
		ix.AddArtist(artist)
		artists = append(artists, artist)
	}
	if err := ix.Save(ctx); err != nil {
		return nil, err
	}
	return artists, nil
}
