package cache

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openradio/librarysearch/internal/index"
	"github.com/openradio/librarysearch/internal/searcher/executor"
	"github.com/openradio/librarysearch/pkg/config"
	pkgerrors "github.com/openradio/librarysearch/pkg/errors"
)

// fakeStore is an in-memory Store that reports misses the way the Redis
// client does.
type fakeStore struct {
	entries map[string]string
	gets    int
	sets    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]string)}
}

func (s *fakeStore) Get(ctx context.Context, key string) (string, error) {
	s.gets++
	value, ok := s.entries[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (s *fakeStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.sets++
	s.entries[key] = string(value.([]byte))
	return nil
}

func (s *fakeStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var deleted int64
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

func newTestCache(store Store) *QueryCache {
	return New(store, config.RedisConfig{CacheTTL: time.Minute}, nil)
}

func sampleResult() executor.Result {
	return executor.Result{
		index.Key{Kind: "Album", ID: "a:1"}: index.NewFieldSet("title"),
	}
}

func TestBuildKeyNormalizes(t *testing.T) {
	base := BuildKey("foo bar", "")
	same := []string{
		"Foo  Bar",
		"bar foo",
		"foo.bar", // one chunk, two sub-terms
		"foo bar foo",
	}
	for _, query := range same {
		if got := BuildKey(query, ""); got != base {
			t.Errorf("BuildKey(%q) = %s, want %s", query, got, base)
		}
	}
	different := []string{
		"foo bar*",
		"foo -bar",
		"foo",
	}
	for _, query := range different {
		if got := BuildKey(query, ""); got == base {
			t.Errorf("BuildKey(%q) collides with %q", query, "foo bar")
		}
	}
}

func TestBuildKeyIncludesKind(t *testing.T) {
	if BuildKey("foo", "Album") == BuildKey("foo", "Track") {
		t.Error("kind-restricted queries share a cache key")
	}
	if BuildKey("foo", "") == BuildKey("foo", "Album") {
		t.Error("unrestricted query shares a cache key with a restricted one")
	}
}

func TestResultRoundTrip(t *testing.T) {
	original := executor.Result{
		index.Key{Kind: "Album", ID: "a:3e9"}:    index.NewFieldSet("title"),
		index.Key{Kind: "Track", ID: "t:ufid-1"}: index.NewFieldSet("title", "album", "artist"),
	}
	data, err := encodeResult(original)
	if err != nil {
		t.Fatalf("encodeResult: %v", err)
	}
	decoded, err := decodeResult(data)
	if err != nil {
		t.Fatalf("decodeResult: %v", err)
	}
	if !reflect.DeepEqual(decoded, original) {
		t.Errorf("round trip = %v, want %v", decoded, original)
	}
}

func TestResultRoundTripEmpty(t *testing.T) {
	data, err := encodeResult(executor.Result{})
	if err != nil {
		t.Fatalf("encodeResult: %v", err)
	}
	decoded, err := decodeResult(data)
	if err != nil {
		t.Fatalf("decodeResult: %v", err)
	}
	if decoded == nil || len(decoded) != 0 {
		t.Errorf("round trip of empty result = %v, want empty map", decoded)
	}
}

func TestSetThenGet(t *testing.T) {
	store := newFakeStore()
	c := newTestCache(store)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "nations", ""); ok {
		t.Fatal("Get hit an empty cache")
	}
	want := sampleResult()
	c.Set(ctx, "nations", "", want)
	got, ok := c.Get(ctx, "nations", "")
	if !ok {
		t.Fatal("Get missed after Set")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Get = %v, want %v", got, want)
	}
	// Normalized-identical queries share the entry.
	if _, ok := c.Get(ctx, "NATIONS", ""); !ok {
		t.Error("normalized-identical query missed")
	}
	if _, ok := c.Get(ctx, "nations", "Album"); ok {
		t.Error("kind-restricted query hit the unrestricted entry")
	}
}

func TestGetTreatsCorruptEntryAsMiss(t *testing.T) {
	store := newFakeStore()
	store.entries[BuildKey("nations", "")] = "not json"
	if _, ok := newTestCache(store).Get(context.Background(), "nations", ""); ok {
		t.Error("corrupt entry returned as a hit")
	}
}

func TestGetOrComputeCachesResult(t *testing.T) {
	store := newFakeStore()
	c := newTestCache(store)
	ctx := context.Background()

	computes := 0
	compute := func() (executor.Result, error) {
		computes++
		return sampleResult(), nil
	}
	result, hit, err := c.GetOrCompute(ctx, "nations", "", compute)
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if hit || computes != 1 {
		t.Errorf("first call: hit=%v computes=%d, want miss and one compute", hit, computes)
	}
	if !reflect.DeepEqual(result, sampleResult()) {
		t.Errorf("result = %v", result)
	}

	result, hit, err = c.GetOrCompute(ctx, "nations", "", compute)
	if err != nil {
		t.Fatalf("second GetOrCompute: %v", err)
	}
	if !hit || computes != 1 {
		t.Errorf("second call: hit=%v computes=%d, want hit and no recompute", hit, computes)
	}
	if !reflect.DeepEqual(result, sampleResult()) {
		t.Errorf("cached result = %v", result)
	}
}

func TestGetOrComputeNeverCachesInvalid(t *testing.T) {
	store := newFakeStore()
	c := newTestCache(store)
	ctx := context.Background()

	computes := 0
	compute := func() (executor.Result, error) {
		computes++
		return nil, nil
	}
	for i := 0; i < 2; i++ {
		if _, _, err := c.GetOrCompute(ctx, "-foo", "", compute); !errors.Is(err, pkgerrors.ErrInvalidQuery) {
			t.Fatalf("GetOrCompute err = %v, want ErrInvalidQuery", err)
		}
	}
	if computes != 2 {
		t.Errorf("computes = %d, want 2 (invalid results must not be cached)", computes)
	}
	if len(store.entries) != 0 {
		t.Errorf("cache entries = %v, want none", store.entries)
	}
}

func TestGetOrComputePropagatesComputeError(t *testing.T) {
	store := newFakeStore()
	c := newTestCache(store)
	wantErr := errors.New("store offline")
	_, _, err := c.GetOrCompute(context.Background(), "nations", "", func() (executor.Result, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if store.sets != 0 {
		t.Errorf("failed compute was cached")
	}
}

func TestInvalidate(t *testing.T) {
	store := newFakeStore()
	c := newTestCache(store)
	ctx := context.Background()
	c.Set(ctx, "nations", "", sampleResult())
	c.Set(ctx, "fire", "", sampleResult())
	store.entries["unrelated"] = "kept"

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if len(store.entries) != 1 {
		t.Errorf("entries after invalidate = %v, want only the unrelated key", store.entries)
	}
	if _, ok := c.Get(ctx, "nations", ""); ok {
		t.Error("invalidated entry still hit")
	}
}

func TestDecodeRejectsCorruptKeys(t *testing.T) {
	if _, err := decodeResult([]byte(`{"no-slash-here":["title"]}`)); err == nil {
		t.Error("decodeResult accepted a key without a kind separator")
	}
	if _, err := decodeResult([]byte(`not json`)); err == nil {
		t.Error("decodeResult accepted malformed JSON")
	}
}
