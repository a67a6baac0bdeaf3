// Package postgres implements index.Store on PostgreSQL via lib/pq.
//
// It requires a `search_postings` table:
//
//	CREATE TABLE search_postings (
//	    id          BIGSERIAL PRIMARY KEY,
//	    generation  INT NOT NULL,
//	    entity_kind TEXT NOT NULL,
//	    field       TEXT NOT NULL,
//	    term        TEXT NOT NULL,
//	    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    matches     TEXT[] NOT NULL
//	);
//	CREATE INDEX search_postings_term ON search_postings (term, entity_kind, field);
//
// The (term, entity_kind, field) index serves both exact lookups and the
// prefix range scans used by wildcard queries.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lib/pq"

	"github.com/openradio/librarysearch/internal/index"
	apperrors "github.com/openradio/librarysearch/pkg/errors"
	"github.com/openradio/librarysearch/pkg/logger"
	"github.com/openradio/librarysearch/pkg/postgres"
)

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: logger.WithComponent("posting-store"),
	}
}

// PutPostings writes the batch inside a single transaction so a partially
// applied flush is never visible.
func (s *Store) PutPostings(ctx context.Context, postings []*index.Posting) error {
	if len(postings) == 0 {
		return nil
	}
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO search_postings (generation, entity_kind, field, term, updated_at, matches)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
		)
		if err != nil {
			return fmt.Errorf("preparing posting insert: %w", err)
		}
		defer stmt.Close()
		now := time.Now().UTC()
		for _, p := range postings {
			if _, err := stmt.ExecContext(ctx,
				p.Generation, p.EntityKind, p.Field, p.Term, now, pq.Array(encodeMatches(p.Matches)),
			); err != nil {
				return fmt.Errorf("inserting posting for term %q: %w", p.Term, err)
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Newf(apperrors.ErrStoreUnavailable,
			http.StatusServiceUnavailable, "writing %d postings: %v", len(postings), err)
	}
	return nil
}

func (s *Store) FetchTerm(ctx context.Context, term string, f index.Filter, limit int) ([]*index.Posting, error) {
	query, args := buildFetchQuery("term = $1", []any{term}, f, limit)
	return s.query(ctx, query, args)
}

func (s *Store) FetchPrefix(ctx context.Context, prefix string, f index.Filter, limit int) ([]*index.Posting, error) {
	query, args := buildFetchQuery("term >= $1 AND term < $2",
		[]any{prefix, index.PrefixUpperBound(prefix)}, f, limit)
	return s.query(ctx, query, args)
}

func (s *Store) DeletePostings(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.DB.ExecContext(ctx,
		`DELETE FROM search_postings WHERE id = ANY($1)`, pq.Array(ids),
	)
	if err != nil {
		return apperrors.Newf(apperrors.ErrStoreUnavailable,
			http.StatusServiceUnavailable, "deleting %d postings: %v", len(ids), err)
	}
	return nil
}

func buildFetchQuery(termCond string, args []any, f index.Filter, limit int) (string, []any) {
	query := `SELECT id, generation, entity_kind, field, term, updated_at, matches
	          FROM search_postings WHERE ` + termCond
	if f.EntityKind != "" {
		args = append(args, f.EntityKind)
		query += fmt.Sprintf(" AND entity_kind = $%d", len(args))
	}
	if f.Field != "" {
		args = append(args, f.Field)
		query += fmt.Sprintf(" AND field = $%d", len(args))
	}
	query += " ORDER BY id"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}

func (s *Store) query(ctx context.Context, query string, args []any) ([]*index.Posting, error) {
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrStoreUnavailable,
			http.StatusServiceUnavailable, "querying postings: %v", err)
	}
	defer rows.Close()

	var postings []*index.Posting
	for rows.Next() {
		var p index.Posting
		var rawMatches []string
		if err := rows.Scan(&p.ID, &p.Generation, &p.EntityKind, &p.Field,
			&p.Term, &p.UpdatedAt, pq.Array(&rawMatches)); err != nil {
			return nil, fmt.Errorf("scanning posting row: %w", err)
		}
		p.Matches = make(index.KeySet, len(rawMatches))
		for _, raw := range rawMatches {
			key, err := index.ParseKey(raw)
			if err != nil {
				s.logger.Warn("skipping corrupt match key", "key", raw, "error", err)
				continue
			}
			p.Matches.Add(key)
		}
		postings = append(postings, &p)
	}
	return postings, rows.Err()
}

func encodeMatches(matches index.KeySet) []string {
	encoded := make([]string, 0, len(matches))
	for key := range matches {
		encoded = append(encoded, key.String())
	}
	return encoded
}
