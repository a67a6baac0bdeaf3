// Package parser converts user-entered query strings into structured query
// terms.
//
// The query language is very simple:
//
//	(1) "foo bar" means "find all entities whose text contains both the
//	    terms foo and bar".
//	(2) "-foo" means "exclude all entities whose text contains the term
//	    foo".
//	(3) "foo*" means "find all entities whose text contains a term starting
//	    with the prefix foo".
package parser

import (
	"strings"

	"github.com/openradio/librarysearch/internal/indexer/tokenizer"
)

// Requirement says whether matching entities are kept or excluded.
// Required sorts before Forbidden; the evaluator depends on that order.
type Requirement int

const (
	Required Requirement = iota
	Forbidden
)

func (r Requirement) String() string {
	if r == Forbidden {
		return "forbidden"
	}
	return "required"
}

// MatchKind says whether the term is matched exactly or as a prefix range.
type MatchKind int

const (
	ExactTerm MatchKind = iota
	Prefix
)

func (k MatchKind) String() string {
	if k == Prefix {
		return "prefix"
	}
	return "term"
}

// Term is one parsed unit of a search query. Terms are created fresh per
// query string and never persisted.
type Term struct {
	Req   Requirement
	Kind  MatchKind
	Value string
}

// Parse converts a query string into a sequence of query terms, in
// left-to-right order of the whitespace-delimited chunks they came from.
// Duplicates are possible; the evaluator deduplicates.
//
// Each chunk is processed as a small state machine: a leading run of '-'
// is stripped and marks only the FIRST scrub-derived sub-term forbidden; a
// trailing run of '*' is stripped and marks only the LAST sub-term a
// prefix. Normalization can split one chunk into several sub-terms (for
// example "foo-bar" folds the interior dash to a space), which is why the
// first/last distinction matters. Sub-terms that are stop words are
// dropped unless used as a prefix; a prefix that happens to spell a stop
// word still completes to real terms ("the*" matches "theory"), so it
// survives.
func Parse(query string) []Term {
	var terms []Term
	for _, chunk := range strings.Fields(query) {
		stripped := strings.TrimLeft(chunk, "-")
		forbidden := stripped != chunk
		chunk = stripped

		stripped = strings.TrimRight(chunk, "*")
		prefix := stripped != chunk
		chunk = stripped

		subterms := strings.Fields(tokenizer.Scrub(chunk))
		for i, sub := range subterms {
			req := Required
			if i == 0 && forbidden {
				req = Forbidden
			}
			kind := ExactTerm
			if i == len(subterms)-1 && prefix {
				kind = Prefix
			}
			// No stop words exist in the index, so matching them
			// exactly is pointless.
			if kind == ExactTerm && tokenizer.IsStopWord(sub) {
				continue
			}
			terms = append(terms, Term{Req: req, Kind: kind, Value: sub})
		}
	}
	return terms
}
