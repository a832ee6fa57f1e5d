package ringbuf

import "testing"

func TestPushBelowCapacity(t *testing.T) {
	r := New[int](3)
	r.Push(1)
	r.Push(2)

	if got := r.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}
	items := r.Items()
	if items[0] != 1 || items[1] != 2 {
		t.Errorf("Items = %v, want [1 2]", items)
	}
}

func TestPushEvictsOldest(t *testing.T) {
	r := New[int](3)
	for i := 1; i <= 7; i++ {
		r.Push(i)
	}

	if got := r.Len(); got != 3 {
		t.Fatalf("Len = %d, want 3", got)
	}
	want := []int{5, 6, 7}
	got := r.Items()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Items = %v, want %v", got, want)
		}
	}
	if r.Evicted() != 4 {
		t.Errorf("Evicted = %d, want 4", r.Evicted())
	}
}

func TestEachPatchesInPlace(t *testing.T) {
	r := New[int](2)
	r.Push(1)
	r.Push(2)
	r.Push(3)

	r.Each(func(v *int) bool {
		if *v == 3 {
			*v = 30
			return false
		}
		return true
	})

	last, ok := r.Last()
	if !ok || last != 30 {
		t.Errorf("Last = %d, %v; want 30, true", last, ok)
	}
}

func TestReverseOrder(t *testing.T) {
	r := New[string](3)
	for _, s := range []string{"a", "b", "c", "d"} {
		r.Push(s)
	}

	var got []string
	r.Reverse(func(v *string) bool {
		got = append(got, *v)
		return true
	})
	if len(got) != 3 || got[0] != "d" || got[2] != "b" {
		t.Errorf("Reverse = %v, want [d c b]", got)
	}
}

func TestClear(t *testing.T) {
	r := New[int](2)
	r.Push(1)
	r.Push(2)
	r.Push(3)
	r.Clear()

	if r.Len() != 0 || r.Evicted() != 0 {
		t.Errorf("after Clear Len=%d Evicted=%d, want 0 0", r.Len(), r.Evicted())
	}
	if _, ok := r.Last(); ok {
		t.Error("Last on empty ring should report false")
	}
	r.Push(9)
	if items := r.Items(); len(items) != 1 || items[0] != 9 {
		t.Errorf("Items after reuse = %v, want [9]", items)
	}
}

func TestZeroCapacity(t *testing.T) {
	r := New[int](0)
	r.Push(1)
	r.Push(2)
	if r.Cap() != 1 || r.Len() != 1 {
		t.Errorf("Cap=%d Len=%d, want 1 1", r.Cap(), r.Len())
	}
}
