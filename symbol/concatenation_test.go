package symbol

import (
	"testing"
)

func TestFlatConcatenation(t *testing.T) {
	t.Run("StacksInOrder", func(t *testing.T) {
		c := NewFlatConcatenation(
			NewVector([]float64{1, 2}),
			NewScalar(3),
			NewVector([]float64{4}),
		)
		got := evalColumn(t, c, 0, nil)
		want := []float64{1, 2, 3, 4}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("got %v, want %v", got, want)
			}
		}
	})

	t.Run("NoChildrenPanics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected a panic")
			}
		}()
		NewFlatConcatenation()
	})
}

func TestCollapseStateVectors(t *testing.T) {
	c := NewFlatConcatenation(
		NewStateVector(Slice{Start: 0, Stop: 2}),
		NewStateVector(Slice{Start: 2, Stop: 5}),
	)
	got := c.Simplify()
	sv, ok := got.(*StateVector)
	if !ok {
		t.Fatalf("got %T, want a single *StateVector", got)
	}
	if sv.Slice() != (Slice{Start: 0, Stop: 5}) {
		t.Errorf("slice = %+v, want [0, 5)", sv.Slice())
	}

	// non-contiguous slices must stay a concatenation
	gap := NewFlatConcatenation(
		NewStateVector(Slice{Start: 0, Stop: 2}),
		NewStateVector(Slice{Start: 3, Stop: 5}),
	)
	if _, ok := gap.Simplify().(*StateVector); ok {
		t.Error("non-contiguous state vectors must not collapse")
	}
}

func TestDomainConcatenation(t *testing.T) {
	order := DomainOrder{"negative electrode", "separator", "positive electrode"}
	sizes := map[string]int{"negative electrode": 3, "separator": 2, "positive electrode": 3}

	neg := NewVector([]float64{1, 1, 1}, "negative electrode")
	sep := NewVector([]float64{2, 2}, "separator")
	pos := NewVector([]float64{3, 3, 3}, "positive electrode")

	t.Run("OrdersByDomain", func(t *testing.T) {
		// children supplied out of order still concatenate in domain order
		c, err := NewDomainConcatenation([]Symbol{pos, neg, sep}, order, sizes)
		if err != nil {
			t.Fatal(err)
		}
		got := evalColumn(t, c, 0, nil)
		want := []float64{1, 1, 1, 2, 2, 3, 3, 3}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("got %v, want %v", got, want)
			}
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		c, err := NewDomainConcatenation([]Symbol{neg, sep, pos}, order, sizes)
		if err != nil {
			t.Fatal(err)
		}
		full := evalColumn(t, c, 0, nil)
		for _, child := range []Symbol{neg, sep, pos} {
			sl := c.Slices()[child.Domain()[0]]
			childVals := evalColumn(t, child, 0, nil)
			for i, v := range full[sl.Start:sl.Stop] {
				if v != childVals[i] {
					t.Fatalf("domain %q: slice %v does not reproduce the child", child.Domain()[0], full[sl.Start:sl.Stop])
				}
			}
		}
	})

	t.Run("OverlapErrors", func(t *testing.T) {
		other := NewVector([]float64{9, 9, 9}, "negative electrode")
		if _, err := NewDomainConcatenation([]Symbol{neg, other}, order, sizes); err == nil {
			t.Error("overlapping domains must error")
		}
	})
}

func TestBroadcastDomains(t *testing.T) {
	if _, err := NewBroadcast(NewScalar(2), []string{"separator"}); err != nil {
		t.Errorf("broadcasting a domainless child: %v", err)
	}
	if _, err := NewBroadcast(NewVariable("u", "separator"), []string{"separator"}); err != nil {
		t.Errorf("matching domains: %v", err)
	}
	if _, err := NewBroadcast(NewVariable("i", "current collector"), []string{"separator"}); err != nil {
		t.Errorf("broadcasting from the current collector: %v", err)
	}
	if _, err := NewBroadcast(NewVariable("u", "separator"), []string{"positive electrode"}); err == nil {
		t.Error("mismatched domains must error")
	}
}

func TestFlatBroadcast(t *testing.T) {
	fb, err := NewFlatBroadcast(NewScalar(7), []string{"separator"}, map[string]int{"separator": 4})
	if err != nil {
		t.Fatal(err)
	}
	got := evalColumn(t, fb, 0, nil)
	if len(got) != 4 {
		t.Fatalf("size = %d, want 4", len(got))
	}
	for _, v := range got {
		if v != 7 {
			t.Fatalf("got %v, want all 7s", got)
		}
	}

	empty, err := NewFlatBroadcast(NewScalar(7), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Size() != 1 {
		t.Errorf("empty-domain broadcast size = %d, want 1", empty.Size())
	}
}
