package symbol

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

func scalarMat(v float64) mat.Matrix {
	return mat.NewDense(1, 1, []float64{v})
}

func isScalarMat(m mat.Matrix) bool {
	r, c := m.Dims()
	return r == 1 && c == 1
}

func shapeString(m mat.Matrix) string {
	r, c := m.Dims()
	return fmt.Sprintf("(%d, %d)", r, c)
}

// elementwise applies op entry by entry, broadcasting a 1x1 operand over the
// other. Mismatched shapes are a ModelError at evaluation time.
func elementwise(name string, op func(a, b float64) float64, l, r mat.Matrix) (mat.Matrix, error) {
	lr, lc := l.Dims()
	rr, rc := r.Dims()
	switch {
	case isScalarMat(l) && !isScalarMat(r):
		lv := l.At(0, 0)
		out := mat.NewDense(rr, rc, nil)
		for i := 0; i < rr; i++ {
			for j := 0; j < rc; j++ {
				out.Set(i, j, op(lv, r.At(i, j)))
			}
		}
		return out, nil
	case !isScalarMat(l) && isScalarMat(r):
		rv := r.At(0, 0)
		out := mat.NewDense(lr, lc, nil)
		for i := 0; i < lr; i++ {
			for j := 0; j < lc; j++ {
				out.Set(i, j, op(l.At(i, j), rv))
			}
		}
		return out, nil
	case lr == rr && lc == rc:
		out := mat.NewDense(lr, lc, nil)
		for i := 0; i < lr; i++ {
			for j := 0; j < lc; j++ {
				out.Set(i, j, op(l.At(i, j), r.At(i, j)))
			}
		}
		return out, nil
	default:
		return nil, NewModelError("shape mismatch in %s: left is %s, right is %s",
			name, shapeString(l), shapeString(r))
	}
}

func mapEntries(m mat.Matrix, fn func(float64) float64) mat.Matrix {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, fn(m.At(i, j)))
		}
	}
	return out
}

// columnData flattens a column-shaped result to a plain slice. Results with
// more than one column are a ModelError.
func columnData(m mat.Matrix) ([]float64, error) {
	r, c := m.Dims()
	if c != 1 {
		return nil, NewModelError("expected a column vector, got shape %s", shapeString(m))
	}
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		out[i] = m.At(i, 0)
	}
	return out, nil
}

// EvaluateColumn evaluates s and flattens the column result to a slice.
func EvaluateColumn(s Symbol, t float64, y []float64, known Evals) ([]float64, error) {
	v, err := s.Evaluate(t, y, known)
	if err != nil {
		return nil, err
	}
	return columnData(v)
}

// Rows returns the row count of the evaluated shape of s at (t, y).
func Rows(s Symbol, t float64, y []float64) (int, error) {
	v, err := s.Evaluate(t, y, nil)
	if err != nil {
		return 0, err
	}
	r, _ := v.Dims()
	return r, nil
}
