package cache

import (
	"testing"
	"time"
)

func TestCacheExpiry(t *testing.T) {
	c := New[string, int](time.Hour)
	defer c.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("lost", 4607)
	if v, ok := c.Get("lost"); !ok || v != 4607 {
		t.Fatalf("Get = %v, %v", v, ok)
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get("lost"); ok {
		t.Error("entry should have expired")
	}
	if c.Len() != 1 {
		t.Errorf("expired entry should stay until swept, Len = %d", c.Len())
	}
	c.sweep()
	if c.Len() != 0 {
		t.Errorf("sweep left %d entries", c.Len())
	}
}

func TestCacheNoTTL(t *testing.T) {
	c := New[string, string](0)
	defer c.Close()
	c.Set("a", "b")
	c.Remove("missing")
	if v, ok := c.Get("a"); !ok || v != "b" {
		t.Errorf("Get = %q, %v", v, ok)
	}
	c.Remove("a")
	if _, ok := c.Get("a"); ok {
		t.Error("removed entry still present")
	}
}

func TestCacheBackgroundSweep(t *testing.T) {
	c := newCache[int, int](10*time.Millisecond, 5*time.Millisecond)
	c.Set(1, 1)
	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("background cleanup never removed the entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.Close()
	c.Close()
}
