// Package optimizer consolidates redundant posting records. Every indexer
// flush writes fresh records, so over time one (kind, field, term) tuple
// accumulates several; this job merges each group into a single canonical
// record and purges stop-word leftovers.
package optimizer

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/openradio/librarysearch/internal/index"
	"github.com/openradio/librarysearch/internal/indexer/tokenizer"
	"github.com/openradio/librarysearch/pkg/config"
	"github.com/openradio/librarysearch/pkg/logger"
	"github.com/openradio/librarysearch/pkg/metrics"
)

type Optimizer struct {
	store   index.Store
	cfg     config.IndexConfig
	workers int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(store index.Store, cfg config.IndexConfig, workers int, m *metrics.Metrics) *Optimizer {
	if workers < 1 {
		workers = 1
	}
	return &Optimizer{
		store:   store,
		cfg:     cfg,
		workers: workers,
		metrics: m,
		logger:  logger.WithComponent("index-optimizer"),
	}
}

type groupKey struct {
	entityKind string
	field      string
}

// OptimizeTerm merges all current-generation posting records for one term
// so that at most one record per (kind, field) remains. Stop-word terms
// are deleted outright; they should never stay indexed, and this cleans up
// records written before a word joined the stop list. The return value is
// the net decrease in posting records.
func (o *Optimizer) OptimizeTerm(ctx context.Context, term string) (int, error) {
	postings, err := o.store.FetchTerm(ctx, term, index.Filter{}, o.cfg.FetchLimit)
	if err != nil {
		o.countRun("error")
		return 0, fmt.Errorf("fetching postings for term %q: %w", term, err)
	}

	segmented := make(map[groupKey][]*index.Posting)
	for _, p := range postings {
		// Leave records from other generations alone.
		if p.Generation != o.cfg.Generation {
			continue
		}
		key := groupKey{entityKind: p.EntityKind, field: p.Field}
		segmented[key] = append(segmented[key], p)
	}

	if tokenizer.IsStopWord(term) {
		removed, err := o.deleteAll(ctx, segmented)
		if err != nil {
			o.countRun("error")
			return removed, err
		}
		o.countRun("stop_word")
		o.countRemoved(removed)
		return removed, nil
	}

	removed := 0
	for key, group := range segmented {
		if len(group) <= 1 {
			continue
		}
		merged := index.NewPosting(o.cfg.Generation, key.entityKind, key.field, term)
		ids := make([]int64, 0, len(group))
		for _, p := range group {
			merged.Matches.Union(p.Matches)
			ids = append(ids, p.ID)
		}
		// Write the merged record before deleting the originals so no
		// matches are lost if either operation fails.
		if err := o.store.PutPostings(ctx, []*index.Posting{merged}); err != nil {
			o.countRun("error")
			return removed, fmt.Errorf("writing merged posting for term %q: %w", term, err)
		}
		if err := o.store.DeletePostings(ctx, ids); err != nil {
			o.countRun("error")
			return removed, fmt.Errorf("deleting stale postings for term %q: %w", term, err)
		}
		// One new record replaces the group.
		removed += len(group) - 1
		if o.metrics != nil {
			o.metrics.PostingsMergedTotal.Add(float64(len(group)))
		}
		o.logger.Debug("postings merged",
			"term", term,
			"entity_kind", key.entityKind,
			"field", key.field,
			"merged", len(group),
		)
	}
	o.countRun("ok")
	o.countRemoved(removed)
	return removed, nil
}

// OptimizeTerms compacts a batch of terms concurrently and returns the
// total net decrease in posting records.
func (o *Optimizer) OptimizeTerms(ctx context.Context, terms []string) (int, error) {
	results := make([]int, len(terms))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, term := range terms {
		g.Go(func() error {
			n, err := o.OptimizeTerm(ctx, term)
			results[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	total := 0
	for _, n := range results {
		total += n
	}
	return total, nil
}

func (o *Optimizer) deleteAll(ctx context.Context, segmented map[groupKey][]*index.Posting) (int, error) {
	removed := 0
	for _, group := range segmented {
		ids := make([]int64, 0, len(group))
		for _, p := range group {
			ids = append(ids, p.ID)
		}
		if err := o.store.DeletePostings(ctx, ids); err != nil {
			return removed, fmt.Errorf("deleting stop-word postings: %w", err)
		}
		removed += len(group)
	}
	return removed, nil
}

func (o *Optimizer) countRun(status string) {
	if o.metrics != nil {
		o.metrics.OptimizeRunsTotal.WithLabelValues(status).Inc()
	}
}

func (o *Optimizer) countRemoved(n int) {
	if o.metrics != nil && n > 0 {
		o.metrics.PostingsRemovedTotal.Add(float64(n))
	}
}
