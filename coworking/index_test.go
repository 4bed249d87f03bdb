package coworking

import "testing"

func TestIndexInsertLookupRemove(t *testing.T) {
	ix := NewIndex[int, string](0)
	if ix.Buckets() != DefaultIndexBuckets {
		t.Fatalf("buckets = %d", ix.Buckets())
	}
	ix.Insert(1, "one")
	ix.Insert(1010, "collides with one")

	if v, ok := ix.Lookup(1); !ok || v != "one" {
		t.Fatalf("lookup 1 = %q,%v", v, ok)
	}
	if v, ok := ix.Lookup(1010); !ok || v != "collides with one" {
		t.Fatalf("lookup 1010 = %q,%v", v, ok)
	}
	if n := ix.ChainLen(1); n != 2 {
		t.Fatalf("chain = %d, want 2", n)
	}

	ix.Remove(1010)
	if _, ok := ix.Lookup(1010); ok {
		t.Fatalf("1010 still present")
	}
	if v, ok := ix.Lookup(1); !ok || v != "one" {
		t.Fatalf("removing a chain neighbour lost 1")
	}
	if ix.Len() != 1 {
		t.Fatalf("len = %d", ix.Len())
	}
}

func TestIndexRemoveAbsentIsNoop(t *testing.T) {
	ix := NewIndex[int, int](7)
	ix.Insert(3, 30)
	ix.Remove(10) // same bucket, different key
	ix.Remove(4)
	if ix.Len() != 1 {
		t.Fatalf("len = %d", ix.Len())
	}
	if _, ok := ix.Lookup(3); !ok {
		t.Fatalf("3 lost")
	}
}

func TestIndexNegativeKeys(t *testing.T) {
	ix := NewIndex[int, int](7)
	ix.Insert(-3, 1)
	if v, ok := ix.Lookup(-3); !ok || v != 1 {
		t.Fatalf("lookup -3 = %d,%v", v, ok)
	}
}

func TestIndexManyKeys(t *testing.T) {
	ix := NewIndex[int, int](0)
	for i := 1; i <= 5000; i++ {
		ix.Insert(i, i*2)
	}
	for i := 1; i <= 5000; i++ {
		if v, ok := ix.Lookup(i); !ok || v != i*2 {
			t.Fatalf("lookup %d = %d,%v", i, v, ok)
		}
	}
	ix.reset()
	if ix.Len() != 0 {
		t.Fatalf("reset left %d", ix.Len())
	}
	if _, ok := ix.Lookup(1); ok {
		t.Fatalf("reset kept entries")
	}
}

func TestIndexNarrowKeyType(t *testing.T) {
	ix := NewIndex[uint8, int](256)
	ix.Insert(3, 1)
	ix.Insert(255, 2)
	if v, ok := ix.Lookup(3); !ok || v != 1 {
		t.Fatalf("lookup 3 = %d,%v", v, ok)
	}
	if v, ok := ix.Lookup(255); !ok || v != 2 {
		t.Fatalf("lookup 255 = %d,%v", v, ok)
	}

	small := NewIndex[int8, int](1009)
	small.Insert(-128, 7)
	small.Insert(127, 8)
	if v, ok := small.Lookup(-128); !ok || v != 7 {
		t.Fatalf("lookup -128 = %d,%v", v, ok)
	}
	if n := small.ChainLen(127); n != 1 {
		t.Fatalf("chain 127 = %d", n)
	}
}
