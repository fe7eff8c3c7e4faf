package cache

import (
	"testing"
	"time"
)

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Fatal("Get() on empty cache should miss")
	}
	c.Set("a", "1")
	c.Set("b", "2")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v", v, ok)
	}

	// "a" was just used, so "b" is evicted
	c.Set("c", "3")
	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry should be evicted")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}

	c.Set("a", "updated")
	if v, _ := c.Get("a"); v != "updated" {
		t.Errorf("Get(a) after overwrite = %q", v)
	}

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 2 || stats.Entries != 2 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestLRUCache_Expiration(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("x", 1)
	c.Set("y", 2)
	now = now.Add(30 * time.Second)
	c.Set("z", 3)

	now = now.Add(45 * time.Second)
	if _, ok := c.Get("x"); ok {
		t.Error("expired entry returned")
	}
	if removed := c.CleanExpired(); removed != 1 {
		t.Errorf("CleanExpired() = %d, want 1 (y)", removed)
	}
	if v, ok := c.Get("z"); !ok || v != 3 {
		t.Errorf("fresh entry lost: %v %v", v, ok)
	}
}

func TestLRUCache_Invalidate(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("summary:2024-01-01:2024-01-31", 1)
	c.Set("summary:2024-02-01:2024-02-29", 2)
	c.Set("yearly:2024", 3)

	if n := c.DeletePrefix("summary:"); n != 2 {
		t.Errorf("DeletePrefix() = %d, want 2", n)
	}
	if _, ok := c.Get("yearly:2024"); !ok {
		t.Error("unrelated key removed")
	}

	c.Delete("yearly:2024")
	c.Set("a", 1)
	c.Purge()
	if c.Size() != 0 {
		t.Errorf("Size() after Purge = %d", c.Size())
	}
	c.Set("b", 2)
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Error("cache unusable after Purge")
	}
}

func TestManager(t *testing.T) {
	now := time.Now()
	c := NewLRUCache[int](10, time.Minute)
	c.now = func() time.Time { return now }
	c.Set("a", 1)

	m := NewManager()
	m.Register("reports", c)

	now = now.Add(2 * time.Minute)
	if n := m.CleanNow(); n != 1 {
		t.Errorf("CleanNow() = %d, want 1", n)
	}

	m.StartCleanup(time.Hour)
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager()
	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() blocked without StartCleanup")
	}
}
