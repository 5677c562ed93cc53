package cache

import "testing"

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](2)
	c.Add("a", 1)
	c.Add("b", 2)
	if _, ok := c.Get("a"); !ok { // a becomes MRU
		t.Fatalf("a missing")
	}
	c.Add("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %d, %v", v, ok)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d", c.Len())
	}
}

func TestLRU_UpdateAndPurge(t *testing.T) {
	c := New[int, string](4)
	c.Add(1, "x")
	c.Add(1, "y")
	if v, _ := c.Get(1); v != "y" {
		t.Fatalf("update lost: %q", v)
	}
	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("Len after purge = %d", c.Len())
	}
	if _, ok := c.Get(1); ok {
		t.Fatalf("entry survived purge")
	}
}

func TestNew_PanicsOnZeroCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	New[string, int](0)
}
