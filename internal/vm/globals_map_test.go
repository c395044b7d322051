package vm

import (
	"fmt"
	"testing"

	"github.com/wendelmax/jsvm/internal/heap"
)

func TestPersistentMap(t *testing.T) {
	const n = 2000
	m := EmptyMap()
	for i := 0; i < n; i++ {
		m = m.Put(fmt.Sprintf("k%d", i), heap.Number(float64(i)))
	}
	if m.Len() != n {
		t.Fatalf("Len: got %d, want %d", m.Len(), n)
	}

	snapshot := m
	m = m.Put("k7", heap.String("seven"))
	if m.Len() != n {
		t.Errorf("update changed Len to %d", m.Len())
	}
	if v, _ := snapshot.Get("k7"); !v.IsNumber() {
		t.Errorf("old version was modified: %#v", v)
	}
	if v, _ := m.Get("k7"); v.AsString() != "seven" {
		t.Errorf("new version lost update: %#v", v)
	}

	for i := 0; i < n; i += 2 {
		m = m.Delete(fmt.Sprintf("k%d", i))
	}
	if m.Len() != n/2 {
		t.Errorf("Len after delete: got %d, want %d", m.Len(), n/2)
	}
	if same := m.Delete("missing"); same != m {
		t.Error("deleting a missing key should return the same map")
	}

	seen := 0
	m.Range(func(k string, v heap.Value) bool {
		seen++
		var i int
		if _, err := fmt.Sscanf(k, "k%d", &i); err != nil || i%2 == 0 {
			t.Errorf("unexpected key %q", k)
		}
		return true
	})
	if seen != n/2 {
		t.Errorf("Range visited %d entries", seen)
	}

	for i := 0; i < n; i++ {
		_, ok := m.Get(fmt.Sprintf("k%d", i))
		if ok != (i%2 == 1) {
			t.Errorf("Get(k%d): present=%t", i, ok)
		}
		if _, ok := snapshot.Get(fmt.Sprintf("k%d", i)); !ok {
			t.Errorf("snapshot lost k%d", i)
		}
	}

	for i := 1; i < n; i += 2 {
		m = m.Delete(fmt.Sprintf("k%d", i))
	}
	if m.Len() != 0 || m.root != nil {
		t.Errorf("map should be empty, Len=%d", m.Len())
	}
}

func TestPersistentMap_RangeStops(t *testing.T) {
	m := EmptyMap().Put("a", heap.Number(1)).Put("b", heap.Number(2)).Put("c", heap.Number(3))
	calls := 0
	m.Range(func(string, heap.Value) bool {
		calls++
		return false
	})
	if calls != 1 {
		t.Errorf("Range continued after false: %d calls", calls)
	}
}
