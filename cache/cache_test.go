package cache

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := New[string]("test-setget", 10, time.Minute)
	c.Set("k", "v")
	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Errorf("Get(k) = %q, %v; want v, true", got, ok)
	}
	if _, ok := c.Get("absent"); ok {
		t.Error("Get(absent) should miss")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New[int]("test-ttl", 10, time.Minute)
	c.SetTTL("k", 42, 20*time.Millisecond)
	if v, ok := c.Get("k"); !ok || v != 42 {
		t.Fatalf("Get(k) before expiry = %d, %v", v, ok)
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("Get(k) after ttl should miss")
	}
	// l'entrée expirée doit avoir été évincée
	if c.Len() != 0 {
		t.Errorf("Len after expired read = %d, want 0", c.Len())
	}
}

func TestNoExpiryWhenTTLZero(t *testing.T) {
	c := New[int]("test-nottl", 10, 0)
	c.Set("k", 1)
	time.Sleep(10 * time.Millisecond)
	if _, ok := c.Get("k"); !ok {
		t.Error("entry with zero ttl should not expire")
	}
}

func TestLRUEviction(t *testing.T) {
	c := New[int]("test-lru", 2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	// accès sur a : b devient le moins récemment utilisé
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Get(a) should hit")
	}
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted first")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should still be present")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should be present")
	}
}

func TestInvalidateAndClear(t *testing.T) {
	c := New[int]("test-clear", 10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Error("a should be gone after Invalidate")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", c.Len())
	}
	if _, ok := c.Get("b"); ok {
		t.Error("b should be gone after Clear")
	}
}
