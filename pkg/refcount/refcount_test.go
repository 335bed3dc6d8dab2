package refcount

import (
	"sync"
	"testing"
)

type node struct {
	Object
	finalized int
}

func (n *node) Finalize() { n.finalized++ }

func TestHandleLifecycle(t *testing.T) {
	n := &node{}

	h := New(n)
	if got := n.Live(); got != 1 {
		t.Errorf("Live() after New = %d, want 1", got)
	}

	c := h.Clone()
	if got := n.Live(); got != 2 {
		t.Errorf("Live() after Clone = %d, want 2", got)
	}

	c.Reset()
	if got := n.Live(); got != 1 {
		t.Errorf("Live() after Reset of clone = %d, want 1", got)
	}
	if n.finalized != 0 {
		t.Errorf("finalized early with %d live references", n.Live())
	}

	h.Reset()
	if got := n.Live(); got != 0 {
		t.Errorf("Live() after final Reset = %d, want 0", got)
	}
	if n.finalized != 1 {
		t.Errorf("finalized = %d, want 1", n.finalized)
	}
}

func TestNilHandle(t *testing.T) {
	var h Ptr[*node]

	if !h.IsNil() {
		t.Error("zero handle is not nil")
	}
	h.Reset() // must be a no-op
	c := h.Clone()
	if !c.IsNil() {
		t.Error("clone of nil handle is not nil")
	}
}

func TestSwap(t *testing.T) {
	a, b := &node{}, &node{}
	ha := New(a)
	hb := New(b)

	ha.Swap(&hb)
	if ha.Get() != b || hb.Get() != a {
		t.Error("Swap did not exchange pointees")
	}
	if a.Live() != 1 || b.Live() != 1 {
		t.Errorf("Swap changed counts: a=%d b=%d", a.Live(), b.Live())
	}

	ha.Reset()
	hb.Reset()
}

func TestEq(t *testing.T) {
	a, b := &node{}, &node{}
	ha := New(a)
	hb := New(b)
	ha2 := ha.Clone()

	if !ha.Eq(ha2) {
		t.Error("handles to the same object compare unequal")
	}
	if ha.Eq(hb) {
		t.Error("handles to distinct objects compare equal")
	}

	ha.Reset()
	ha2.Reset()
	hb.Reset()
}

func TestOverReleasePanics(t *testing.T) {
	n := &node{}
	h := New(n)
	h.Reset()

	defer func() {
		if recover() == nil {
			t.Error("releasing a dead object did not panic")
		}
	}()
	n.AddRef(-1)
}

func TestConcurrentCloneReset(t *testing.T) {
	n := &node{}
	root := New(n)

	const goroutines = 8
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		h := root.Clone()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c := h.Clone()
				c.Reset()
			}
			h.Reset()
		}()
	}
	wg.Wait()

	root.Reset()
	if got := n.Live(); got != 0 {
		t.Errorf("Live() = %d after all handles dropped, want 0", got)
	}
	if n.finalized != 1 {
		t.Errorf("finalized = %d, want 1", n.finalized)
	}
}
