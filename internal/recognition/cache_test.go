package recognition

import (
	"context"
	"errors"
	"testing"
)

// fakeMatcher is a scriptable matcher with call counting and error injection.
type fakeMatcher struct {
	results map[string]Result
	calls   int

	MatchError error
}

func (f *fakeMatcher) Match(ctx context.Context, crop []byte) (Result, error) {
	f.calls++
	if f.MatchError != nil {
		return Result{}, f.MatchError
	}
	if res, ok := f.results[string(crop)]; ok {
		return res, nil
	}
	return Result{Name: Unknown, Confidence: 0}, nil
}

func TestCache_HitSkipsMatcher(t *testing.T) {
	matcher := &fakeMatcher{results: map[string]Result{
		"crop-a": {Name: "Alice", Confidence: 0.9},
	}}
	cache := NewCache(matcher, 10)

	res := cache.LookupOrCompute(context.Background(), "fp-a", []byte("crop-a"))
	if res.Name != "Alice" {
		t.Fatalf("expected 'Alice', got '%s'", res.Name)
	}
	if matcher.calls != 1 {
		t.Fatalf("expected 1 matcher call, got %d", matcher.calls)
	}

	res = cache.LookupOrCompute(context.Background(), "fp-a", []byte("crop-a"))
	if res.Name != "Alice" {
		t.Errorf("expected cached 'Alice', got '%s'", res.Name)
	}
	if matcher.calls != 1 {
		t.Errorf("expected no extra matcher call on hit, got %d calls", matcher.calls)
	}
}

func TestCache_InsertionOrderEviction(t *testing.T) {
	matcher := &fakeMatcher{results: map[string]Result{
		"crop-a": {Name: "A", Confidence: 0.9},
		"crop-b": {Name: "B", Confidence: 0.9},
		"crop-c": {Name: "C", Confidence: 0.9},
	}}
	cache := NewCache(matcher, 2)
	ctx := context.Background()

	cache.LookupOrCompute(ctx, "fp-a", []byte("crop-a"))
	cache.LookupOrCompute(ctx, "fp-b", []byte("crop-b"))

	// Touch A again: insertion-order eviction must NOT treat this as a
	// refresh. A is still the oldest-inserted key.
	cache.LookupOrCompute(ctx, "fp-a", []byte("crop-a"))

	cache.LookupOrCompute(ctx, "fp-c", []byte("crop-c"))

	if cache.Len() != 2 {
		t.Fatalf("expected cache length 2, got %d", cache.Len())
	}

	// A was evicted, so looking it up again calls the matcher.
	before := matcher.calls
	cache.LookupOrCompute(ctx, "fp-a", []byte("crop-a"))
	if matcher.calls != before+1 {
		t.Errorf("expected matcher call after eviction of oldest-inserted key, got %d calls (was %d)", matcher.calls, before)
	}

	// B and C are still cached.
	before = matcher.calls
	cache.LookupOrCompute(ctx, "fp-b", []byte("crop-b"))
	cache.LookupOrCompute(ctx, "fp-c", []byte("crop-c"))
	if matcher.calls != before {
		t.Errorf("expected B and C to be cached, got %d extra calls", matcher.calls-before)
	}
}

func TestCache_NeverExceedsCapacity(t *testing.T) {
	matcher := &fakeMatcher{}
	cache := NewCache(matcher, 3)
	ctx := context.Background()

	for i := range 20 {
		fp := string(rune('a' + i))
		cache.LookupOrCompute(ctx, fp, []byte(fp))
		if cache.Len() > 3 {
			t.Fatalf("cache exceeded capacity: %d entries after insert %d", cache.Len(), i)
		}
	}
}

func TestCache_ErrorNotStored(t *testing.T) {
	matcher := &fakeMatcher{MatchError: errors.New("model offline")}
	cache := NewCache(matcher, 10)
	ctx := context.Background()

	res := cache.LookupOrCompute(ctx, "fp-a", []byte("crop-a"))
	if res.Name != Unknown || res.Confidence != 0 {
		t.Errorf("expected (Unknown, 0) on matcher error, got (%s, %f)", res.Name, res.Confidence)
	}
	if cache.Len() != 0 {
		t.Errorf("expected failed result not to be stored, cache has %d entries", cache.Len())
	}

	// The matcher recovers; the same fingerprint is recomputed.
	matcher.MatchError = nil
	matcher.results = map[string]Result{"crop-a": {Name: "Alice", Confidence: 0.8}}

	res = cache.LookupOrCompute(ctx, "fp-a", []byte("crop-a"))
	if res.Name != "Alice" {
		t.Errorf("expected recomputed 'Alice', got '%s'", res.Name)
	}
}

func TestCache_Clear(t *testing.T) {
	matcher := &fakeMatcher{results: map[string]Result{
		"crop-a": {Name: "A", Confidence: 0.9},
	}}
	cache := NewCache(matcher, 10)
	ctx := context.Background()

	cache.LookupOrCompute(ctx, "fp-a", []byte("crop-a"))
	cache.Clear()

	if cache.Len() != 0 {
		t.Fatalf("expected empty cache after Clear, got %d entries", cache.Len())
	}

	cache.LookupOrCompute(ctx, "fp-a", []byte("crop-a"))
	if matcher.calls != 2 {
		t.Errorf("expected matcher call after Clear, got %d total calls", matcher.calls)
	}
}
