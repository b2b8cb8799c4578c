package simdata

import "testing"

func TestLinkPathAlgebraUpToAndFromXToEnd(t *testing.T) {
	p := FromNodes([]uint32{1, 2, 3, 4, 5})
	for _, n := range []uint32{1, 2, 3, 4, 5} {
		got := p.UpTo(n).Append(p.FromXToEnd(n))
		if len(got) != len(p) {
			t.Fatalf("node %d: split/rejoin length mismatch: got %v want %v", n, got, p)
		}
		for i := range p {
			if got[i] != p[i] {
				t.Fatalf("node %d: split/rejoin mismatch at %d: got %v want %v", n, i, got, p)
			}
		}
	}
}

func TestAppendAppendToSymmetry(t *testing.T) {
	p := FromNodes([]uint32{1, 2, 3})
	q := FromNodes([]uint32{3, 4, 5})
	a := p.Append(q)
	b := q.AppendTo(p)
	if len(a) != len(b) {
		t.Fatalf("length mismatch: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("mismatch at %d: %v vs %v", i, a, b)
		}
	}
}

func TestFromNodesShorterThanTwoIsEmpty(t *testing.T) {
	if len(FromNodes(nil)) != 0 {
		t.Fatal("expected empty path for nil nodes")
	}
	if len(FromNodes([]uint32{1})) != 0 {
		t.Fatal("expected empty path for single node")
	}
}

func TestUpToNodeNeverReachedReturnsWholePath(t *testing.T) {
	p := FromNodes([]uint32{1, 2, 3})
	got := p.UpTo(99)
	if len(got) != len(p) {
		t.Fatalf("expected whole path, got %v", got)
	}
}

func TestUpToFirstNodeIsEmpty(t *testing.T) {
	p := FromNodes([]uint32{1, 2, 3})
	if len(p.UpTo(1)) != 0 {
		t.Fatalf("expected empty prefix at first node, got %v", p.UpTo(1))
	}
}
