package graph

import "testing"

func TestUnionFind(t *testing.T) {
	uf := NewUnionFind(5)

	// Initially all separate.
	for i := uint32(0); i < 5; i++ {
		if uf.Find(i) != i {
			t.Errorf("Find(%d) = %d, want %d", i, uf.Find(i), i)
		}
	}

	uf.Union(0, 1)
	if uf.Find(0) != uf.Find(1) {
		t.Error("0 and 1 should be in same set")
	}

	uf.Union(2, 3)
	if uf.Find(2) != uf.Find(3) {
		t.Error("2 and 3 should be in same set")
	}

	if uf.Find(0) == uf.Find(2) {
		t.Error("0 and 2 should be in different sets")
	}

	// Union the two groups.
	if !uf.Union(1, 3) {
		t.Error("Union(1, 3) should merge two sets")
	}
	if uf.Find(0) != uf.Find(3) {
		t.Error("0 and 3 should now be in same set")
	}
	if uf.Size(0) != 4 {
		t.Errorf("Size(0) = %d, want 4", uf.Size(0))
	}
	if uf.Union(0, 2) {
		t.Error("Union(0, 2) should report already joined")
	}
}

// twoComponents: 0 <-> 1 <-> 2 and 3 -> 4.
func twoComponents() *Graph {
	return Build(5, []Arc{
		{From: 0, To: 1}, {From: 1, To: 0},
		{From: 1, To: 2}, {From: 2, To: 1},
		{From: 3, To: 4},
	})
}

func TestComponents(t *testing.T) {
	labels, largest := Components(twoComponents())

	if len(labels) != 5 {
		t.Fatalf("len(labels) = %d, want 5", len(labels))
	}
	for _, n := range []int{0, 1, 2} {
		if labels[n] != largest {
			t.Errorf("node %d not in largest component", n)
		}
	}
	for _, n := range []int{3, 4} {
		if labels[n] == largest {
			t.Errorf("node %d should not be in largest component", n)
		}
	}
	if labels[3] != labels[4] {
		t.Error("one-way edge 3 -> 4 should still join a weak component")
	}
}

func TestComponentSizes(t *testing.T) {
	sizes := ComponentSizes(twoComponents())
	want := []uint32{3, 3, 3, 2, 2}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("sizes[%d] = %d, want %d", i, sizes[i], want[i])
		}
	}
}

func TestComponentsEmptyGraph(t *testing.T) {
	labels, _ := Components(Build(0, nil))
	if labels != nil {
		t.Errorf("labels = %v, want nil", labels)
	}
}
