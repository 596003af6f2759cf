package symbol

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Vector is a constant column vector.
type Vector struct {
	base
	entries *mat.VecDense
}

func NewVector(entries []float64, domain ...string) *Vector {
	data := make([]float64, len(entries))
	copy(data, entries)
	name := fmt.Sprintf("vector (%d)", len(data))
	return &Vector{
		base:    newBase("vector", name, copyStrings(domain), nil, floatPayload(data...)),
		entries: mat.NewVecDense(len(data), data),
	}
}

func (v *Vector) Entries() *mat.VecDense { return v.entries }

func (v *Vector) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	return v.entries, nil
}

func (v *Vector) NewCopy() Symbol {
	return NewVector(rawVec(v.entries), v.domain...)
}

func (v *Vector) Simplify() Symbol { return v.NewCopy() }

// Matrix is a constant matrix, dense or sparse. Discretised spatial
// operators are sparse Matrix nodes applied by matrix multiplication.
type Matrix struct {
	base
	entries mat.Matrix
}

func NewMatrix(entries mat.Matrix, domain ...string) *Matrix {
	r, c := entries.Dims()
	name := fmt.Sprintf("matrix (%d, %d)", r, c)
	if _, ok := entries.(nonZeroDoer); ok {
		name = "sparse " + name
	}
	return &Matrix{
		base:    newBase("matrix", name, copyStrings(domain), nil, matrixPayload(entries)),
		entries: entries,
	}
}

func (m *Matrix) Entries() mat.Matrix { return m.entries }

func (m *Matrix) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	return m.entries, nil
}

func (m *Matrix) NewCopy() Symbol {
	// entries are never mutated, sharing them is safe
	return NewMatrix(m.entries, m.domain...)
}

func (m *Matrix) Simplify() Symbol { return m.NewCopy() }

// nonZeroDoer is satisfied by the sparse matrix types.
type nonZeroDoer interface {
	DoNonZero(fn func(i, j int, v float64))
}

// matrixPayload serialises matrix content for structural hashing.
func matrixPayload(m mat.Matrix) []byte {
	r, c := m.Dims()
	buf := intPayload(r, c)
	if nz, ok := m.(nonZeroDoer); ok {
		nz.DoNonZero(func(i, j int, v float64) {
			buf = append(buf, intPayload(i, j)...)
			buf = append(buf, floatPayload(v)...)
		})
		return buf
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			buf = append(buf, floatPayload(m.At(i, j))...)
		}
	}
	return buf
}

// Slice is a half-open range [Start, Stop) within the flat state vector.
type Slice struct {
	Start int
	Stop  int
}

// Size returns the number of entries covered by the slice.
func (s Slice) Size() int { return s.Stop - s.Start }

// StateVector selects a slice of the flat numeric state vector y.
type StateVector struct {
	base
	slice Slice
}

func NewStateVector(slice Slice, domain ...string) *StateVector {
	name := fmt.Sprintf("y[%d:%d]", slice.Start, slice.Stop)
	return &StateVector{
		base:  newBase("state vector", name, copyStrings(domain), nil, intPayload(slice.Start, slice.Stop)),
		slice: slice,
	}
}

func (s *StateVector) Slice() Slice { return s.slice }

func (s *StateVector) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	if v, ok := known.get(s.id); ok {
		return v, nil
	}
	if y == nil {
		return nil, NewModelError("state vector %s evaluated without a state", s.name)
	}
	if len(y) < s.slice.Stop {
		return nil, NewModelError(
			"state vector %s out of range: state has length %d", s.name, len(y))
	}
	data := make([]float64, s.slice.Size())
	copy(data, y[s.slice.Start:s.slice.Stop])
	return known.put(s.id, mat.NewVecDense(len(data), data)), nil
}

func (s *StateVector) NewCopy() Symbol  { return NewStateVector(s.slice, s.domain...) }
func (s *StateVector) Simplify() Symbol { return s.NewCopy() }

func rawVec(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
