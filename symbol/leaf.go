package symbol

import (
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Scalar is a constant number.
type Scalar struct {
	base
	value float64
}

func NewScalar(value float64) *Scalar {
	return &Scalar{
		base:  newBase("scalar", strconv.FormatFloat(value, 'g', -1, 64), nil, nil, floatPayload(value)),
		value: value,
	}
}

func (s *Scalar) Value() float64 { return s.value }

func (s *Scalar) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	return scalarMat(s.value), nil
}

func (s *Scalar) NewCopy() Symbol  { return NewScalar(s.value) }
func (s *Scalar) Simplify() Symbol { return s.NewCopy() }

// Parameter is a named constant whose value is supplied by an external
// parameter-substitution pass before evaluation.
type Parameter struct {
	base
}

func NewParameter(name string) *Parameter {
	return &Parameter{base: newBase("parameter", name, nil, nil, []byte(name))}
}

func (p *Parameter) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	return nil, errors.Errorf("parameter %q must be resolved before evaluation", p.name)
}

func (p *Parameter) NewCopy() Symbol  { return NewParameter(p.name) }
func (p *Parameter) Simplify() Symbol { return p.NewCopy() }

// FunctionParameter is a named function of its arguments whose form is
// supplied by an external parameter-substitution pass.
type FunctionParameter struct {
	base
}

func NewFunctionParameter(name string, args ...Symbol) *FunctionParameter {
	return &FunctionParameter{base: newBase("function parameter", name, nil, args, []byte(name))}
}

func (f *FunctionParameter) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	return nil, errors.Errorf("function parameter %q must be resolved before evaluation", f.name)
}

func (f *FunctionParameter) NewCopy() Symbol {
	return NewFunctionParameter(f.name, copyChildren(f.children)...)
}

func (f *FunctionParameter) Simplify() Symbol { return f.NewCopy() }

// Variable is a placeholder for a dependent state variable. Discretisation
// replaces it with a StateVector slice into the flat state.
type Variable struct {
	base
}

func NewVariable(name string, domain ...string) *Variable {
	return &Variable{base: newBase("variable", name, copyStrings(domain), nil, []byte(name))}
}

func (v *Variable) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	return nil, errors.Errorf("variable %q must be discretised before evaluation", v.name)
}

func (v *Variable) NewCopy() Symbol  { return NewVariable(v.name, v.domain...) }
func (v *Variable) Simplify() Symbol { return v.NewCopy() }

// Time is the independent time variable.
type Time struct {
	base
}

// T is the shared time node.
var T = NewTime()

func NewTime() *Time {
	return &Time{base: newBase("time", "t", nil, nil, nil)}
}

func (tm *Time) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	return scalarMat(t), nil
}

func (tm *Time) NewCopy() Symbol  { return NewTime() }
func (tm *Time) Simplify() Symbol { return tm.NewCopy() }

// SpatialVariable is an independent spatial coordinate over a domain. The
// spatial method replaces it with the mesh node positions.
type SpatialVariable struct {
	base
}

func NewSpatialVariable(name string, domain ...string) *SpatialVariable {
	return &SpatialVariable{base: newBase("spatial variable", name, copyStrings(domain), nil, []byte(name))}
}

func (v *SpatialVariable) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	return nil, errors.Errorf("spatial variable %q must be discretised before evaluation", v.name)
}

func (v *SpatialVariable) NewCopy() Symbol  { return NewSpatialVariable(v.name, v.domain...) }
func (v *SpatialVariable) Simplify() Symbol { return v.NewCopy() }
