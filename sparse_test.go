package ecsim

import "testing"

func TestSparseSetAddHasDelete(t *testing.T) {
	s := NewSparseSet()
	s.Add(5)
	s.Add(7)
	s.Add(5) // duplicate add is a no-op
	if s.Len() != 2 {
		t.Fatalf("expected len 2, got %d", s.Len())
	}
	if !s.Has(5) || !s.Has(7) {
		t.Error("expected both 5 and 7 to be members")
	}
	s.Delete(5)
	if s.Has(5) {
		t.Error("expected 5 to be removed")
	}
	if !s.Has(7) {
		t.Error("expected 7 to survive the delete of 5")
	}
	if s.Len() != 1 {
		t.Fatalf("expected len 1, got %d", s.Len())
	}
}

func TestSparseSetDeleteSwapsLast(t *testing.T) {
	s := NewSparseSet()
	for _, k := range []int{1, 2, 3, 4} {
		s.Add(k)
	}
	s.Delete(2)
	seen := map[int]bool{}
	for i := 0; i < s.Len(); i++ {
		seen[s.At(i)] = true
	}
	if seen[2] {
		t.Error("expected 2 to be gone")
	}
	for _, k := range []int{1, 3, 4} {
		if !seen[k] {
			t.Errorf("expected %d to survive", k)
		}
	}
}

func TestSparseSetForEachSurvivesSelfDelete(t *testing.T) {
	s := NewSparseSet()
	for _, k := range []int{1, 2, 3, 4, 5} {
		s.Add(k)
	}
	visited := map[int]int{}
	s.ForEach(func(key int) {
		visited[key]++
		s.Delete(key)
	})
	if len(visited) != 5 {
		t.Fatalf("expected every key visited exactly once, got %v", visited)
	}
	for k, n := range visited {
		if n != 1 {
			t.Errorf("key %d visited %d times, want 1", k, n)
		}
	}
	if s.Len() != 0 {
		t.Errorf("expected all keys deleted, %d remain", s.Len())
	}
}

func TestSparseSetClear(t *testing.T) {
	s := NewSparseSet()
	s.Add(1)
	s.Add(2)
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("expected len 0 after clear, got %d", s.Len())
	}
	if s.Has(1) {
		t.Error("expected 1 to not be a member after clear")
	}
}

func TestSparseMapSetGetDelete(t *testing.T) {
	m := NewSparseMap[string]()
	m.Set(1, "a")
	m.Set(2, "b")
	m.Set(1, "a-updated")
	if v, ok := m.Get(1); !ok || v != "a-updated" {
		t.Errorf("expected updated value for key 1, got %q, %v", v, ok)
	}
	if m.Len() != 2 {
		t.Fatalf("expected len 2, got %d", m.Len())
	}
	m.Delete(1)
	if m.Has(1) {
		t.Error("expected key 1 to be gone")
	}
	if v, ok := m.Get(2); !ok || v != "b" {
		t.Errorf("expected key 2 to survive, got %q, %v", v, ok)
	}
}

func TestSparseMapKeysAndAt(t *testing.T) {
	m := NewSparseMap[int]()
	m.Set(10, 100)
	m.Set(20, 200)
	found := map[int]int{}
	for i := 0; i < m.Len(); i++ {
		k, v := m.At(i)
		found[k] = v
	}
	if found[10] != 100 || found[20] != 200 {
		t.Errorf("unexpected contents: %v", found)
	}
}
