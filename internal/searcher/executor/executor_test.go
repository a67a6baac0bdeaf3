package executor

import (
	"context"
	"reflect"
	"testing"

	"github.com/openradio/librarysearch/internal/index"
	"github.com/openradio/librarysearch/internal/index/store/memory"
	"github.com/openradio/librarysearch/internal/indexer"
	"github.com/openradio/librarysearch/pkg/config"
)

var testCfg = config.IndexConfig{Generation: 1, FetchLimit: 999}

func fooKey(id string) index.Key { return index.Key{Kind: "Foo", ID: id} }
func barKey(id string) index.Key { return index.Key{Kind: "Bar", ID: id} }

// seedStore builds the fixture shared by the query tests: seven keys
// across two kinds, indexed by two batches.
func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	ix := indexer.New(store, testCfg.Generation)
	ix.AddKey(fooKey("key1"), "f1", "alpha beta")
	ix.AddKey(fooKey("key2"), "f2", "alpha delta")
	ix.AddKey(fooKey("key3"), "f1", "alaska beta")
	ix.AddKey(barKey("key4"), "f2", "beta delta")
	if err := ix.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A second batch creates additional posting records for terms the
	// first batch already touched; readers must union across them.
	ix = indexer.New(store, testCfg.Generation)
	ix.AddKey(barKey("key5"), "f1", "alpha alaska")
	ix.AddKey(barKey("key6"), "f2", "delta gamma")
	if err := ix.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return store
}

func wantResult(entries map[index.Key][]string) Result {
	r := make(Result, len(entries))
	for key, fields := range entries {
		r[key] = index.NewFieldSet(fields...)
	}
	return r
}

func checkSearch(t *testing.T, e *Executor, query, kind string, want Result) {
	t.Helper()
	got, err := e.Search(context.Background(), query, kind)
	if err != nil {
		t.Fatalf("Search(%q): %v", query, err)
	}
	if want == nil {
		if got != nil {
			t.Errorf("Search(%q) = %v, want invalid (nil)", query, got)
		}
		return
	}
	if got == nil {
		t.Fatalf("Search(%q) = invalid, want %v", query, want)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Search(%q) = %v, want %v", query, got, want)
	}
}

func TestFetchKeysForTerm(t *testing.T) {
	store := seedStore(t)
	e := New(store, testCfg, nil)
	ctx := context.Background()

	got, err := e.FetchKeysForTerm(ctx, "alpha", "", "")
	if err != nil {
		t.Fatalf("FetchKeysForTerm: %v", err)
	}
	want := map[Pair]struct{}{
		{fooKey("key1"), "f1"}: {},
		{fooKey("key2"), "f2"}: {},
		{barKey("key5"), "f1"}: {},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("alpha pairs = %v, want %v", got, want)
	}

	got, _ = e.FetchKeysForTerm(ctx, "alpha", "Foo", "")
	if len(got) != 2 {
		t.Errorf("kind-restricted alpha pairs = %v, want 2", got)
	}
	got, _ = e.FetchKeysForTerm(ctx, "alpha", "", "f1")
	want = map[Pair]struct{}{
		{fooKey("key1"), "f1"}: {},
		{barKey("key5"), "f1"}: {},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("field-restricted alpha pairs = %v, want %v", got, want)
	}
	if got, _ = e.FetchKeysForTerm(ctx, "unknown", "", ""); len(got) != 0 {
		t.Errorf("unknown term pairs = %v, want none", got)
	}
}

func TestFetchKeysForPrefix(t *testing.T) {
	store := seedStore(t)
	e := New(store, testCfg, nil)
	ctx := context.Background()

	got, err := e.FetchKeysForPrefix(ctx, "al", "", "")
	if err != nil {
		t.Fatalf("FetchKeysForPrefix: %v", err)
	}
	// "al" covers both alpha and alaska.
	want := map[Pair]struct{}{
		{fooKey("key1"), "f1"}: {},
		{fooKey("key2"), "f2"}: {},
		{fooKey("key3"), "f1"}: {},
		{barKey("key5"), "f1"}: {},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("al* pairs = %v, want %v", got, want)
	}
	if got, _ = e.FetchKeysForPrefix(ctx, "unknown", "", ""); len(got) != 0 {
		t.Errorf("unknown prefix pairs = %v, want none", got)
	}
}

func TestSearchSingleTerm(t *testing.T) {
	e := New(seedStore(t), testCfg, nil)
	checkSearch(t, e, "alpha", "", wantResult(map[index.Key][]string{
		fooKey("key1"): {"f1"},
		fooKey("key2"): {"f2"},
		barKey("key5"): {"f1"},
	}))
	checkSearch(t, e, "delta", "", wantResult(map[index.Key][]string{
		fooKey("key2"): {"f2"},
		barKey("key4"): {"f2"},
		barKey("key6"): {"f2"},
	}))
	checkSearch(t, e, "al*", "", wantResult(map[index.Key][]string{
		fooKey("key1"): {"f1"},
		fooKey("key2"): {"f2"},
		fooKey("key3"): {"f1"},
		barKey("key5"): {"f1"},
	}))
}

func TestSearchIntersection(t *testing.T) {
	e := New(seedStore(t), testCfg, nil)
	checkSearch(t, e, "beta alpha", "", wantResult(map[index.Key][]string{
		fooKey("key1"): {"f1"},
	}))
	checkSearch(t, e, "al* beta", "", wantResult(map[index.Key][]string{
		fooKey("key1"): {"f1"},
		fooKey("key3"): {"f1"},
	}))
}

func TestSearchExclusion(t *testing.T) {
	e := New(seedStore(t), testCfg, nil)
	checkSearch(t, e, "al* -beta", "", wantResult(map[index.Key][]string{
		fooKey("key2"): {"f2"},
		barKey("key5"): {"f1"},
	}))
	checkSearch(t, e, "delta -al*", "", wantResult(map[index.Key][]string{
		barKey("key4"): {"f2"},
		barKey("key6"): {"f2"},
	}))
}

func TestSearchKindRestriction(t *testing.T) {
	e := New(seedStore(t), testCfg, nil)
	checkSearch(t, e, "alpha", "Foo", wantResult(map[index.Key][]string{
		fooKey("key1"): {"f1"},
		fooKey("key2"): {"f2"},
	}))
	checkSearch(t, e, "al*", "Bar", wantResult(map[index.Key][]string{
		barKey("key5"): {"f1"},
	}))
	checkSearch(t, e, "al* -beta", "Foo", wantResult(map[index.Key][]string{
		fooKey("key2"): {"f2"},
	}))
}

func TestSearchUnknownTerms(t *testing.T) {
	e := New(seedStore(t), testCfg, nil)
	// Unknown terms are valid queries with empty results, not errors.
	checkSearch(t, e, "nosuchterm", "", wantResult(nil))
	checkSearch(t, e, "nosuchterm*", "", wantResult(nil))
	checkSearch(t, e, "alpha nosuchterm", "", wantResult(nil))
	checkSearch(t, e, "alpha nosuchterm*", "", wantResult(nil))
	// Excluding an unknown term excludes nothing.
	checkSearch(t, e, "alpha -nosuchterm", "", wantResult(map[index.Key][]string{
		fooKey("key1"): {"f1"},
		fooKey("key2"): {"f2"},
		barKey("key5"): {"f1"},
	}))
}

func TestSearchInvalidQueries(t *testing.T) {
	e := New(seedStore(t), testCfg, nil)
	// Empty queries and queries consisting solely of exclusions are
	// invalid, which is distinct from a valid zero-result answer.
	checkSearch(t, e, "", "", nil)
	checkSearch(t, e, "   ", "", nil)
	checkSearch(t, e, "+,,,*", "", nil)
	checkSearch(t, e, "-foo", "", nil)
	checkSearch(t, e, "-foo -bar", "", nil)
}

func TestSearchSkipsOtherGenerations(t *testing.T) {
	store := seedStore(t)
	stale := index.NewPosting(testCfg.Generation+1, "Foo", "f1", "alpha")
	stale.Matches.Add(fooKey("stale"))
	if err := store.PutPostings(context.Background(), []*index.Posting{stale}); err != nil {
		t.Fatalf("PutPostings: %v", err)
	}

	e := New(store, testCfg, nil)
	result, err := e.Search(context.Background(), "alpha", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if _, ok := result[fooKey("stale")]; ok {
		t.Errorf("stale-generation posting leaked into results: %v", result)
	}
}

func TestSearchFetchCapTruncatesSilently(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ix := indexer.New(store, testCfg.Generation)
		ix.AddKey(fooKey(string(rune('a'+i))), "f1", "alpha")
		if err := ix.Save(ctx); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	capped := config.IndexConfig{Generation: testCfg.Generation, FetchLimit: 2}
	e := New(store, capped, nil)
	result, err := e.Search(ctx, "alpha", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("capped search returned %d keys, want 2", len(result))
	}
}
