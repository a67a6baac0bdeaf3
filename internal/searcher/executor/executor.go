// Package executor evaluates parsed search queries against the inverted
// index store and combines per-term match sets with required/forbidden set
// algebra.
package executor

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/openradio/librarysearch/internal/index"
	"github.com/openradio/librarysearch/internal/searcher/parser"
	"github.com/openradio/librarysearch/pkg/config"
	"github.com/openradio/librarysearch/pkg/logger"
	"github.com/openradio/librarysearch/pkg/metrics"
)

// Result maps each matching entity key to the set of fields it matched
// through. A nil Result marks an invalid query; an empty non-nil Result is
// a valid "no matches" answer. Callers must distinguish the two.
type Result map[index.Key]index.FieldSet

// Pair is a single (entity key, matching field) lookup hit.
type Pair struct {
	Key   index.Key
	Field string
}

// Executor runs queries against an index store.
type Executor struct {
	store   index.Store
	cfg     config.IndexConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(store index.Store, cfg config.IndexConfig, m *metrics.Metrics) *Executor {
	return &Executor{
		store:   store,
		cfg:     cfg,
		metrics: m,
		logger:  logger.WithComponent("query-executor"),
	}
}

// FetchKeysForTerm finds entity keys matching a single exact search term.
// kind and field optionally restrict the lookup. The result unions the
// matches of every current-generation posting record for the term; until
// the optimizer consolidates them there may be several.
func (e *Executor) FetchKeysForTerm(ctx context.Context, term, kind, field string) (map[Pair]struct{}, error) {
	postings, err := e.store.FetchTerm(ctx, term, index.Filter{EntityKind: kind, Field: field}, e.cfg.FetchLimit)
	if err != nil {
		return nil, err
	}
	return e.collect(postings), nil
}

// FetchKeysForPrefix finds entity keys matching a single term prefix via a
// range scan.
func (e *Executor) FetchKeysForPrefix(ctx context.Context, prefix, kind, field string) (map[Pair]struct{}, error) {
	postings, err := e.store.FetchPrefix(ctx, prefix, index.Filter{EntityKind: kind, Field: field}, e.cfg.FetchLimit)
	if err != nil {
		return nil, err
	}
	return e.collect(postings), nil
}

// collect unions posting matches into (key, field) pairs, skipping records
// from other generations.
func (e *Executor) collect(postings []*index.Posting) map[Pair]struct{} {
	pairs := make(map[Pair]struct{})
	for _, p := range postings {
		if p.Generation != e.cfg.Generation {
			continue
		}
		for key := range p.Matches {
			pairs[Pair{Key: key, Field: p.Field}] = struct{}{}
		}
	}
	return pairs
}

// Search evaluates a full query string, optionally restricted to one
// entity kind. It returns nil (with a nil error) for invalid queries: an
// empty parse, or a query whose first evaluated term is an exclusion.
// Unknown terms are not errors; they intersect the running result down to
// a valid empty answer.
func (e *Executor) Search(ctx context.Context, query, kind string) (Result, error) {
	start := time.Now()
	result, err := e.search(ctx, query, kind)
	e.observe(start, result, err)
	return result, err
}

func (e *Executor) search(ctx context.Context, query, kind string) (Result, error) {
	terms := dedupeAndSort(parser.Parse(query))
	if len(terms) == 0 {
		return nil, nil
	}

	var result Result
	first := true
	// Required terms are evaluated before forbidden ones, so a query
	// whose first term is forbidden consists solely of exclusions.
	for _, qt := range terms {
		var pairs map[Pair]struct{}
		var err error
		switch qt.Kind {
		case parser.Prefix:
			pairs, err = e.FetchKeysForPrefix(ctx, qt.Value, kind, "")
		default:
			pairs, err = e.FetchKeysForTerm(ctx, qt.Value, kind, "")
		}
		if err != nil {
			return nil, err
		}

		switch qt.Req {
		case parser.Required:
			if first {
				result = make(Result)
				for pair := range pairs {
					fields, ok := result[pair.Key]
					if !ok {
						fields = make(index.FieldSet)
						result[pair.Key] = fields
					}
					fields.Add(pair.Field)
				}
			} else {
				narrowed := make(Result)
				for pair := range pairs {
					existing, ok := result[pair.Key]
					if !ok {
						continue
					}
					fields, ok := narrowed[pair.Key]
					if !ok {
						fields = make(index.FieldSet)
						fields.Union(existing)
						narrowed[pair.Key] = fields
					}
					fields.Add(pair.Field)
				}
				result = narrowed
			}
		case parser.Forbidden:
			if first {
				return nil, nil
			}
			for pair := range pairs {
				delete(result, pair.Key)
			}
		}
		first = false
		if len(result) == 0 {
			// No surviving matches; later terms cannot add any.
			break
		}
	}
	return result, nil
}

// dedupeAndSort removes duplicate query terms and orders them for
// evaluation: required before forbidden, exact before prefix, then by
// value.
func dedupeAndSort(terms []parser.Term) []parser.Term {
	seen := make(map[parser.Term]struct{}, len(terms))
	unique := make([]parser.Term, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}
	sort.Slice(unique, func(i, j int) bool {
		a, b := unique[i], unique[j]
		if a.Req != b.Req {
			return a.Req < b.Req
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Value < b.Value
	})
	return unique
}

func (e *Executor) observe(start time.Time, result Result, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchLatency.Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		e.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
	case result == nil:
		e.metrics.SearchQueriesTotal.WithLabelValues("invalid").Inc()
	case len(result) == 0:
		e.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
	default:
		e.metrics.SearchQueriesTotal.WithLabelValues("ok").Inc()
		e.metrics.SearchResultsCount.Observe(float64(len(result)))
	}
}
