package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/maccolaco/claimsense/internal/model"
	"github.com/maccolaco/claimsense/internal/rules"
)

var _ rules.Baseline = (*CachedBaseline)(nil)

func TestCacheKey(t *testing.T) {
	if CacheKey("baseline", "99213") == CacheKey("baseline", "99214") {
		t.Error("different codes must produce different keys")
	}
	if CacheKey("a", "bc") == CacheKey("ab", "c") {
		t.Error("part boundaries must be part of the key")
	}
	if CacheKey("baseline", "99213") != CacheKey("baseline", "99213") {
		t.Error("keys must be stable")
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss on empty cache")
	}
	_ = c.Set("k", []byte("v"), 0)
	if v, ok := c.Get("k"); !ok || string(v) != "v" {
		t.Errorf("expected hit, got %q %v", v, ok)
	}
	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
	_ = c.Set("a", []byte("1"), 0)
	_ = c.Set("b", []byte("2"), 0)
	_ = c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after clear, got %d", c.Len())
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, ok := c.Get("k"); !ok || string(v) != "v" {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
	if err := c.Delete("k"); err != nil {
		t.Errorf("deleting a missing entry should not fail: %v", err)
	}
}

func TestDiskCache_ConcurrentSetSameKey(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	key := CacheKey("baseline", "99213")

	var wg sync.WaitGroup
	errs := make(chan error, 16*20)
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				errs <- c.Set(key, []byte(fmt.Sprintf("%d-%d", w, i)), 0)
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Set() error: %v", err)
		}
	}
	if _, found := c.Get(key); !found {
		t.Error("Expected the entry after concurrent writes")
	}

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
	if _, err := os.Stat(filepath.Join(dir, key+".cache")); err != nil {
		t.Errorf("cache file missing: %v", err)
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	first := NewLayeredCache(time.Minute, dir, time.Hour)
	if err := first.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// A fresh process only has the disk layer populated
	second := NewLayeredCache(time.Minute, dir, time.Hour)
	if v, ok := second.Get("k"); !ok || string(v) != "v" {
		t.Fatalf("expected disk hit, got %q %v", v, ok)
	}
	if _, ok := second.memory.Get("k"); !ok {
		t.Error("expected disk hit to be promoted into memory")
	}

	if err := second.Clear(); err != nil {
		t.Errorf("Clear failed: %v", err)
	}
	if _, ok := second.Get("k"); ok {
		t.Error("expected miss after clear")
	}
}

func TestNew(t *testing.T) {
	if New(model.CacheConfig{Enabled: false}) != nil {
		t.Error("disabled cache should be nil")
	}
	if _, ok := New(model.CacheConfig{Enabled: true}).(*MemoryCache); !ok {
		t.Error("expected memory cache without a directory")
	}
	if _, ok := New(model.CacheConfig{Enabled: true, Dir: t.TempDir()}).(*LayeredCache); !ok {
		t.Error("expected layered cache with a directory")
	}
}

type fakeSource struct {
	averages map[string]float64
	err      error
	calls    int
}

func (s *fakeSource) AverageCharge(ctx context.Context, code string) (float64, bool, error) {
	s.calls++
	if s.err != nil {
		return 0, false, s.err
	}
	avg, ok := s.averages[code]
	return avg, ok, nil
}

func TestCachedBaseline(t *testing.T) {
	src := &fakeSource{averages: map[string]float64{"99213": 150}}
	b := NewCachedBaseline(src, NewMemoryCache(time.Minute, time.Minute), time.Minute, nil)

	for i := 0; i < 3; i++ {
		if avg, ok := b.Average("99213"); !ok || avg != 150 {
			t.Fatalf("Average(99213) = %v, %v", avg, ok)
		}
		if _, ok := b.Average("36415"); ok {
			t.Fatal("expected miss for unknown code")
		}
	}

	if src.calls != 2 {
		t.Errorf("expected 2 source lookups (hit and miss cached), got %d", src.calls)
	}
}

func TestCachedBaseline_ErrorsAreNotCached(t *testing.T) {
	src := &fakeSource{err: errors.New("database is locked")}
	b := NewCachedBaseline(src, NewMemoryCache(time.Minute, time.Minute), time.Minute, nil)

	if _, ok := b.Average("99213"); ok {
		t.Fatal("expected abstention on lookup error")
	}

	src.err = nil
	src.averages = map[string]float64{"99213": 150}
	if avg, ok := b.Average("99213"); !ok || avg != 150 {
		t.Errorf("expected recovery after the error cleared, got %v, %v", avg, ok)
	}
}

func TestCachedBaseline_NilCache(t *testing.T) {
	src := &fakeSource{averages: map[string]float64{"99213": 150}}
	b := NewCachedBaseline(src, nil, time.Minute, nil)

	b.Average("99213")
	b.Average("99213")
	if src.calls != 2 {
		t.Errorf("expected every lookup to reach the source, got %d", src.calls)
	}
}
