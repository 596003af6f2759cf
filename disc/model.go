// Package disc compiles a symbolic continuous model into a discrete
// algebraic/differential system: state variables become slices of a flat
// state vector, spatial operators become sparse matrices sized by the mesh,
// and the result carries a shape-checked mass matrix and concatenated
// equations an integrator can evaluate.
package disc

import (
	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/cellsim/cellsim/symbol"
)

// BCKind is the kind of a boundary condition.
type BCKind uint8

const (
	Dirichlet BCKind = iota
	Neumann
)

func (k BCKind) String() string {
	switch k {
	case Dirichlet:
		return "Dirichlet"
	case Neumann:
		return "Neumann"
	default:
		return "unknown"
	}
}

// BoundaryCondition is one side's condition: a value expression and whether
// it fixes the value (Dirichlet) or the flux (Neumann).
type BoundaryCondition struct {
	Value symbol.Symbol
	Kind  BCKind
}

// VariableBCs attaches boundary conditions to one equation key. The key is
// the state variable the conditions belong to, or a concatenation of
// variables for a field spanning several domains.
type VariableBCs struct {
	Key        symbol.Symbol
	Conditions map[symbol.Side]BoundaryCondition
}

// BCMap is the discretised boundary-condition map, keyed by the structural
// identity of the equation key rather than its name, so two variables with
// the same name never alias.
type BCMap map[uint64]map[symbol.Side]BoundaryCondition

// Equation pairs an equation key (a Variable, or a Concatenation of
// Variables) with its expression.
type Equation struct {
	Key symbol.Symbol
	Eqn symbol.Symbol
}

// NamedExpression is an observable output keyed by name.
type NamedExpression struct {
	Name string
	Expr symbol.Symbol
}

// Model is the continuous model bundle handed to the discretiser. All
// collections are ordered slices: the ordering of RHS then Algebraic is the
// canonical ordering of the flat state vector, so it must be deterministic.
type Model struct {
	RHS                []Equation
	Algebraic          []Equation
	InitialConditions  []Equation
	BoundaryConditions []VariableBCs
	Variables          []NamedExpression
	Events             []symbol.Symbol
}

// VariableSlice records the state slice a variable was assigned.
type VariableSlice struct {
	Variable *symbol.Variable
	Slice    symbol.Slice
}

// DiscretisedModel is the immutable result of discretising a Model. The
// input Model is never mutated.
type DiscretisedModel struct {
	RHS                []Equation
	Algebraic          []Equation
	InitialConditions  []Equation
	BoundaryConditions BCMap
	Variables          []NamedExpression
	Events             []symbol.Symbol

	// ConcatenatedRHS stacks the differential equations in variable order;
	// ConcatenatedAlgebraic stacks the algebraic equations in key order and
	// is nil when the model has none. ConcatenatedEvents is nil when the
	// model has no events.
	ConcatenatedRHS       symbol.Symbol
	ConcatenatedAlgebraic symbol.Symbol
	ConcatenatedEvents    symbol.Symbol

	// ConcatenatedInitialConditions is a concrete numeric vector, never a
	// symbolic tree, of length TotalSize.
	ConcatenatedInitialConditions []float64

	// MassMatrix is the block-diagonal sparse mass matrix M in M*y' = f,
	// with a zero block for the algebraic equations.
	MassMatrix *sparse.CSR

	// YSlices maps each state variable's structural identity to its slice
	// of the flat state vector; SliceOrder lists the same assignment in
	// cursor order.
	YSlices    map[uint64]symbol.Slice
	SliceOrder []VariableSlice
	TotalSize  int

	// Jacobian is df/dy. It is left nil: differentiation is the external
	// integrator's responsibility.
	Jacobian func(t float64, y []float64) mat.Matrix
}
