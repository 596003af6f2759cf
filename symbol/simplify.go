package symbol

import (
	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// SimplifyIfConstant folds a tree with only constant leaves to a single
// constant node with the same domain and evaluated value. Non-constant or
// unevaluable trees are returned unchanged.
func SimplifyIfConstant(s Symbol) Symbol {
	switch s.(type) {
	case *Scalar, *Vector, *Matrix:
		return s
	}
	if !IsConstant(s) {
		return s
	}
	v, err := s.Evaluate(0, nil, nil)
	if err != nil {
		return s
	}
	return constantNode(v, s.Domain())
}

func constantNode(v mat.Matrix, domain []string) Symbol {
	r, c := v.Dims()
	switch {
	case r == 1 && c == 1:
		return NewScalar(v.At(0, 0))
	case c == 1:
		data := make([]float64, r)
		for i := 0; i < r; i++ {
			data[i] = v.At(i, 0)
		}
		return NewVector(data, domain...)
	default:
		return NewMatrix(v, domain...)
	}
}

// foldMatMulChain re-associates constant matrix products so that evaluation
// never materialises a large intermediate: A @ (B @ x) with A, B constant
// becomes (A@B) @ x with the product folded once, and A @ B folds outright.
// Multiplications are never distributed over the operands of a matrix
// multiplication, so sparsity is preserved. Returns nil when no rule
// applies.
func foldMatMulChain(left, right Symbol) Symbol {
	lm, ok := left.(*Matrix)
	if !ok {
		return nil
	}
	if rm, ok := right.(*Matrix); ok {
		return foldMatMul(lm, rm)
	}
	chain, ok := right.(*BinaryOp)
	if !ok || chain.kind != OpMatMul {
		return nil
	}
	rm, ok := chain.Left().(*Matrix)
	if !ok {
		return nil
	}
	folded := foldMatMul(lm, rm)
	if folded == nil {
		return nil
	}
	out, err := NewBinaryOp(OpMatMul, folded, chain.Right())
	if err != nil {
		return nil
	}
	return out
}

// foldMatMul multiplies two constant matrices, keeping a sparse result when
// both operands are sparse.
func foldMatMul(a, b *Matrix) Symbol {
	ar, ac := a.entries.Dims()
	br, bc := b.entries.Dims()
	if ac != br {
		return nil
	}
	domain, err := combineDomains(a.Domain(), b.Domain())
	if err != nil {
		return nil
	}
	anz, aSparse := a.entries.(nonZeroDoer)
	bnz, bSparse := b.entries.(nonZeroDoer)
	if aSparse && bSparse {
		return NewMatrix(mulSparse(ar, bc, anz, bnz), domain...)
	}
	var out mat.Dense
	out.Mul(a.entries, b.entries)
	return NewMatrix(&out, domain...)
}

// mulSparse computes the product of two sparse matrices in time proportional
// to the nonzero structure.
func mulSparse(rows, cols int, a, b nonZeroDoer) *sparse.CSR {
	type entry struct {
		col int
		val float64
	}
	bRows := make(map[int][]entry)
	b.DoNonZero(func(i, j int, v float64) {
		bRows[i] = append(bRows[i], entry{col: j, val: v})
	})
	dok := sparse.NewDOK(rows, cols)
	a.DoNonZero(func(i, k int, v float64) {
		for _, e := range bRows[k] {
			dok.Set(i, e.col, dok.At(i, e.col)+v*e.val)
		}
	})
	return dok.ToCSR()
}
