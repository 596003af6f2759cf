// Package solver packages a discretised model as the plain numeric
// callbacks a time integrator consumes: initial state, mass matrix,
// right-hand side, algebraic residual and event functions.
package solver

import (
	"github.com/james-bowman/sparse"
	"github.com/pkg/errors"

	"github.com/cellsim/cellsim/disc"
	"github.com/cellsim/cellsim/symbol"
)

// System is an immutable, solver-ready view of one discretised model. All
// expression trees are simplified once at construction; every callback is
// safe for concurrent use because evaluation never mutates the trees.
type System struct {
	// Y0 is the full initial state.
	Y0 []float64

	// MassMatrix multiplies the time derivatives of the differential block;
	// its algebraic rows are zero.
	MassMatrix *sparse.CSR

	rhs       symbol.Symbol
	algebraic symbol.Symbol
	events    []symbol.Symbol
	numRHS    int
}

// NewSystem builds the solver view. The differential block size is fixed
// here by evaluating the concatenated right-hand side at the initial state.
func NewSystem(dm *disc.DiscretisedModel) (*System, error) {
	s := &System{
		Y0:         append([]float64{}, dm.ConcatenatedInitialConditions...),
		MassMatrix: dm.MassMatrix,
	}
	if dm.ConcatenatedRHS != nil {
		s.rhs = dm.ConcatenatedRHS.Simplify()
		n, err := symbol.Rows(s.rhs, 0, s.Y0)
		if err != nil {
			return nil, errors.Wrap(err, "sizing the differential block")
		}
		s.numRHS = n
	}
	if dm.ConcatenatedAlgebraic != nil {
		s.algebraic = dm.ConcatenatedAlgebraic.Simplify()
	}
	s.events = make([]symbol.Symbol, len(dm.Events))
	for i, ev := range dm.Events {
		s.events[i] = ev.Simplify()
	}
	return s, nil
}

// NumRHS returns the number of differential equations; rows [NumRHS, len(Y0))
// of the state are governed by algebraic equations.
func (s *System) NumRHS() int { return s.numRHS }

// RHS returns the differential right-hand side callback, or nil for a pure
// algebraic system.
func (s *System) RHS() func(t float64, y []float64) ([]float64, error) {
	if s.rhs == nil {
		return nil
	}
	return func(t float64, y []float64) ([]float64, error) {
		return symbol.EvaluateColumn(s.rhs, t, y, symbol.Evals{})
	}
}

// Algebraic returns the algebraic residual callback, or nil for a pure ODE
// system.
func (s *System) Algebraic() func(t float64, y []float64) ([]float64, error) {
	if s.algebraic == nil {
		return nil
	}
	return func(t float64, y []float64) ([]float64, error) {
		return symbol.EvaluateColumn(s.algebraic, t, y, symbol.Evals{})
	}
}

// Residual evaluates the DAE residual (f(t, y) - ydot', g(t, y)) at one
// point. The differential and algebraic trees share a single evaluation
// cache for the call, so common subtrees are computed once.
func (s *System) Residual(t float64, y, ydot []float64) ([]float64, error) {
	known := symbol.Evals{}
	out := make([]float64, 0, len(s.Y0))
	if s.rhs != nil {
		f, err := symbol.EvaluateColumn(s.rhs, t, y, known)
		if err != nil {
			return nil, err
		}
		if len(ydot) < len(f) {
			return nil, errors.Errorf(
				"residual: ydot has length %d, need at least %d", len(ydot), len(f))
		}
		for i, fi := range f {
			out = append(out, fi-ydot[i])
		}
	}
	if s.algebraic != nil {
		g, err := symbol.EvaluateColumn(s.algebraic, t, y, known)
		if err != nil {
			return nil, err
		}
		out = append(out, g...)
	}
	return out, nil
}

// Events returns one scalar root function per model event. An integrator
// stops when any of them crosses zero.
func (s *System) Events() []func(t float64, y []float64) (float64, error) {
	fns := make([]func(t float64, y []float64) (float64, error), len(s.events))
	for i, ev := range s.events {
		ev := ev
		fns[i] = func(t float64, y []float64) (float64, error) {
			col, err := symbol.EvaluateColumn(ev, t, y, symbol.Evals{})
			if err != nil {
				return 0, err
			}
			if len(col) != 1 {
				return 0, symbol.NewModelError(
					"event must evaluate to a single value, got %d", len(col))
			}
			return col[0], nil
		}
	}
	return fns
}
