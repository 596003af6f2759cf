package symbol

import (
	"testing"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

func TestSimplifyIdentities(t *testing.T) {
	u := NewStateVector(Slice{Start: 0, Stop: 3})
	zero, one := NewScalar(0), NewScalar(1)

	cases := []struct {
		name string
		expr Symbol
	}{
		{"add zero right", Add(u, zero)},
		{"add zero left", Add(zero, u)},
		{"sub zero", Sub(u, zero)},
		{"mul one right", Mul(u, one)},
		{"mul one left", Mul(one, u)},
		{"div one", DivBy(u, one)},
		{"pow one", Pow(u, one)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.expr.Simplify()
			if got.ID() != u.ID() {
				t.Errorf("simplified to %q, want the bare state vector", got.Name())
			}
		})
	}
}

func TestSimplifyMulZero(t *testing.T) {
	expr := Mul(NewScalar(0), Mul(NewScalar(2), NewScalar(3)))
	got := expr.Simplify()
	s, ok := got.(*Scalar)
	if !ok {
		t.Fatalf("got %T, want *Scalar", got)
	}
	if s.Value() != 0 {
		t.Errorf("value = %v, want 0", s.Value())
	}

	// a vector-valued operand must not collapse to a scalar zero
	v := NewStateVector(Slice{Start: 0, Stop: 3})
	kept := Mul(NewScalar(0), v).Simplify()
	if _, ok := kept.(*Scalar); ok {
		t.Error("0 * vector must keep its shape")
	}
}

func TestSimplifyConstantFolding(t *testing.T) {
	expr := Add(Mul(NewScalar(2), NewScalar(3)), NewScalar(4))
	got := expr.Simplify()
	s, ok := got.(*Scalar)
	if !ok {
		t.Fatalf("got %T, want *Scalar", got)
	}
	if s.Value() != 10 {
		t.Errorf("value = %v, want 10", s.Value())
	}
}

// Simplification must preserve evaluation on constant trees and be
// idempotent.
func TestSimplifyProperties(t *testing.T) {
	trees := []Symbol{
		Add(Mul(NewScalar(2), NewVector([]float64{1, 2, 3})), NewVector([]float64{4, 5, 6})),
		Sub(Pow(NewScalar(3), NewScalar(2)), NewScalar(1)),
		Mul(Add(NewScalar(1), NewScalar(0)), NewVector([]float64{7})),
	}
	for _, tree := range trees {
		want := evalColumn(t, tree, 0, nil)
		simplified := tree.Simplify()
		got := evalColumn(t, simplified, 0, nil)
		if len(got) != len(want) {
			t.Fatalf("%q: simplified shape changed: %v vs %v", tree.Name(), got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%q: entry %d: %v != %v", tree.Name(), i, got[i], want[i])
			}
		}
		twice := simplified.Simplify()
		if twice.ID() != simplified.ID() {
			t.Errorf("%q: simplify is not idempotent", tree.Name())
		}
	}
}

func TestFoldMatMulChain(t *testing.T) {
	a := mat.NewDense(2, 3, []float64{1, 0, 0, 0, 1, 0})
	b := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	u := NewStateVector(Slice{Start: 0, Stop: 2})

	t.Run("AdjacentMatrices", func(t *testing.T) {
		expr := MatMul(NewMatrix(a), NewMatrix(b))
		got := expr.Simplify()
		m, ok := got.(*Matrix)
		if !ok {
			t.Fatalf("got %T, want *Matrix", got)
		}
		r, c := m.Entries().Dims()
		if r != 2 || c != 2 {
			t.Errorf("dims = (%d, %d), want (2, 2)", r, c)
		}
	})

	t.Run("ReassociatesAroundState", func(t *testing.T) {
		// A @ (B @ u) folds to (A @ B) @ u
		expr := MatMul(NewMatrix(a), MatMul(NewMatrix(b), u))
		got := expr.Simplify()
		bin, ok := got.(*BinaryOp)
		if !ok || bin.Kind() != OpMatMul {
			t.Fatalf("got %T %q, want a single matrix product", got, got.Name())
		}
		if _, ok := bin.Left().(*Matrix); !ok {
			t.Fatalf("left operand is %T, want the folded *Matrix", bin.Left())
		}
		if _, ok := bin.Right().(*StateVector); !ok {
			t.Fatalf("right operand is %T, want the state vector", bin.Right())
		}

		want := evalColumn(t, expr, 0, []float64{1, 2})
		have := evalColumn(t, got, 0, []float64{1, 2})
		for i := range want {
			if have[i] != want[i] {
				t.Errorf("entry %d: folded %v != original %v", i, have[i], want[i])
			}
		}
	})

	t.Run("SparseStaysSparse", func(t *testing.T) {
		sa := sparse.NewDOK(2, 2)
		sa.Set(0, 0, 2)
		sa.Set(1, 1, 3)
		sb := sparse.NewDOK(2, 2)
		sb.Set(0, 1, 1)
		sb.Set(1, 0, 1)

		expr := MatMul(NewMatrix(sa.ToCSR()), NewMatrix(sb.ToCSR()))
		got := expr.Simplify()
		m, ok := got.(*Matrix)
		if !ok {
			t.Fatalf("got %T, want *Matrix", got)
		}
		if _, ok := m.Entries().(*sparse.CSR); !ok {
			t.Errorf("folded entries are %T, want *sparse.CSR", m.Entries())
		}
		if v := m.Entries().At(0, 1); v != 2 {
			t.Errorf("entry (0,1) = %v, want 2", v)
		}
		if v := m.Entries().At(1, 0); v != 3 {
			t.Errorf("entry (1,0) = %v, want 3", v)
		}
	})
}
