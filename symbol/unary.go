package symbol

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

type unary struct {
	base
}

// Child returns the single operand.
func (u *unary) Child() Symbol { return u.children[0] }

// Negate is the elementwise additive inverse.
type Negate struct {
	unary
}

func NewNegate(child Symbol) *Negate {
	return &Negate{unary{newBase("negate", "-"+child.Name(), copyStrings(child.Domain()), []Symbol{child}, nil)}}
}

func (n *Negate) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	if v, ok := known.get(n.id); ok {
		return v, nil
	}
	c, err := n.Child().Evaluate(t, y, known)
	if err != nil {
		return nil, err
	}
	return known.put(n.id, mapEntries(c, func(x float64) float64 { return -x })), nil
}

func (n *Negate) NewCopy() Symbol { return NewNegate(n.Child().NewCopy()) }

func (n *Negate) Simplify() Symbol {
	return SimplifyIfConstant(NewNegate(n.Child().Simplify()))
}

// AbsoluteValue is the elementwise absolute value.
type AbsoluteValue struct {
	unary
}

func NewAbsoluteValue(child Symbol) *AbsoluteValue {
	return &AbsoluteValue{unary{newBase("abs", "abs("+child.Name()+")", copyStrings(child.Domain()), []Symbol{child}, nil)}}
}

func (a *AbsoluteValue) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	if v, ok := known.get(a.id); ok {
		return v, nil
	}
	c, err := a.Child().Evaluate(t, y, known)
	if err != nil {
		return nil, err
	}
	return known.put(a.id, mapEntries(c, math.Abs)), nil
}

func (a *AbsoluteValue) NewCopy() Symbol { return NewAbsoluteValue(a.Child().NewCopy()) }

func (a *AbsoluteValue) Simplify() Symbol {
	return SimplifyIfConstant(NewAbsoluteValue(a.Child().Simplify()))
}

// Function applies a named scalar function elementwise. The name, not the
// function pointer, carries the structural identity.
type Function struct {
	unary
	fnName string
	fn     func(float64) float64
}

func NewFunction(name string, fn func(float64) float64, child Symbol) *Function {
	return &Function{
		unary:  unary{newBase("function", name+"("+child.Name()+")", copyStrings(child.Domain()), []Symbol{child}, []byte(name))},
		fnName: name,
		fn:     fn,
	}
}

func (f *Function) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	if v, ok := known.get(f.id); ok {
		return v, nil
	}
	c, err := f.Child().Evaluate(t, y, known)
	if err != nil {
		return nil, err
	}
	return known.put(f.id, mapEntries(c, f.fn)), nil
}

func (f *Function) NewCopy() Symbol {
	return NewFunction(f.fnName, f.fn, f.Child().NewCopy())
}

// WithChild rebuilds the same function around a new child.
func (f *Function) WithChild(child Symbol) *Function {
	return NewFunction(f.fnName, f.fn, child)
}

func (f *Function) Simplify() Symbol {
	return SimplifyIfConstant(NewFunction(f.fnName, f.fn, f.Child().Simplify()))
}

// spatialOperator nodes stand for continuous spatial operations. They carry
// no evaluation of their own: the discretiser replaces them with
// mesh-specific sparse operators.
type spatialOperator struct {
	unary
}

func (s *spatialOperator) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	return nil, errors.Errorf("%s must be discretised before evaluation", s.name)
}

func newSpatial(kind, name string, child Symbol, payload []byte) (spatialOperator, error) {
	if len(child.Domain()) == 0 {
		return spatialOperator{}, NewDomainError("cannot take %s of %q: child has no domain", kind, child.Name())
	}
	return spatialOperator{unary{newBase(kind, name, copyStrings(child.Domain()), []Symbol{child}, payload)}}, nil
}

// Gradient of a scalar field over its domain.
type Gradient struct {
	spatialOperator
}

func NewGradient(child Symbol) (*Gradient, error) {
	s, err := newSpatial("gradient", "grad("+child.Name()+")", child, nil)
	if err != nil {
		return nil, err
	}
	return &Gradient{s}, nil
}

func (g *Gradient) NewCopy() Symbol {
	n, err := NewGradient(g.Child().NewCopy())
	if err != nil {
		panic(err)
	}
	return n
}

func (g *Gradient) Simplify() Symbol {
	n, err := NewGradient(g.Child().Simplify())
	if err != nil {
		panic(err)
	}
	return n
}

// Divergence of a vector field over its domain.
type Divergence struct {
	spatialOperator
}

func NewDivergence(child Symbol) (*Divergence, error) {
	s, err := newSpatial("divergence", "div("+child.Name()+")", child, nil)
	if err != nil {
		return nil, err
	}
	return &Divergence{s}, nil
}

func (d *Divergence) NewCopy() Symbol {
	n, err := NewDivergence(d.Child().NewCopy())
	if err != nil {
		panic(err)
	}
	return n
}

func (d *Divergence) Simplify() Symbol {
	n, err := NewDivergence(d.Child().Simplify())
	if err != nil {
		panic(err)
	}
	return n
}

// Integral is the definite integral of the child over its whole domain.
type Integral struct {
	spatialOperator
}

func NewIntegral(child Symbol) (*Integral, error) {
	s, err := newSpatial("integral", "integral("+child.Name()+")", child, nil)
	if err != nil {
		return nil, err
	}
	return &Integral{s}, nil
}

func (in *Integral) NewCopy() Symbol {
	n, err := NewIntegral(in.Child().NewCopy())
	if err != nil {
		panic(err)
	}
	return n
}

func (in *Integral) Simplify() Symbol {
	n, err := NewIntegral(in.Child().Simplify())
	if err != nil {
		panic(err)
	}
	return n
}

// IndefiniteIntegral is the cumulative integral of the child from the left
// boundary of its domain.
type IndefiniteIntegral struct {
	spatialOperator
}

func NewIndefiniteIntegral(child Symbol) (*IndefiniteIntegral, error) {
	s, err := newSpatial("indefinite integral", "cumulative integral("+child.Name()+")", child, nil)
	if err != nil {
		return nil, err
	}
	return &IndefiniteIntegral{s}, nil
}

func (in *IndefiniteIntegral) NewCopy() Symbol {
	n, err := NewIndefiniteIntegral(in.Child().NewCopy())
	if err != nil {
		panic(err)
	}
	return n
}

func (in *IndefiniteIntegral) Simplify() Symbol {
	n, err := NewIndefiniteIntegral(in.Child().Simplify())
	if err != nil {
		panic(err)
	}
	return n
}

// BoundaryValue is the value of the child at one boundary of its domain.
type BoundaryValue struct {
	spatialOperator
	side Side
}

func NewBoundaryValue(child Symbol, side Side) (*BoundaryValue, error) {
	s, err := newSpatial("boundary value", "boundary("+child.Name()+", "+string(side)+")", child, []byte(side))
	if err != nil {
		return nil, err
	}
	return &BoundaryValue{spatialOperator: s, side: side}, nil
}

func (b *BoundaryValue) Side() Side { return b.side }

func (b *BoundaryValue) NewCopy() Symbol {
	n, err := NewBoundaryValue(b.Child().NewCopy(), b.side)
	if err != nil {
		panic(err)
	}
	return n
}

func (b *BoundaryValue) Simplify() Symbol {
	n, err := NewBoundaryValue(b.Child().Simplify(), b.side)
	if err != nil {
		panic(err)
	}
	return n
}

// Shorthand constructors in the style the model-authoring layer uses.
// They panic on domain errors, which are authoring bugs.

func Grad(child Symbol) Symbol {
	n, err := NewGradient(child)
	if err != nil {
		panic(err)
	}
	return n
}

func Div(child Symbol) Symbol {
	n, err := NewDivergence(child)
	if err != nil {
		panic(err)
	}
	return n
}

// Surf is the boundary value at the right boundary, the surface of a
// particle domain.
func Surf(child Symbol) Symbol {
	n, err := NewBoundaryValue(child, SideRight)
	if err != nil {
		panic(err)
	}
	return n
}

func Integrate(child Symbol) Symbol {
	n, err := NewIntegral(child)
	if err != nil {
		panic(err)
	}
	return n
}
