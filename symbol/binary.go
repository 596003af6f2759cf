package symbol

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// BinaryKind tags the operation performed by a BinaryOp.
type BinaryKind uint8

const (
	OpAdd BinaryKind = iota
	OpSub
	OpMul // elementwise
	OpDiv
	OpPow
	OpMatMul
)

func (k BinaryKind) String() string {
	switch k {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpPow:
		return "**"
	case OpMatMul:
		return "@"
	default:
		return "?"
	}
}

// BinaryOp is a binary arithmetic or matrix operation. Elementwise
// operations broadcast a number-valued operand over the other; matrix
// multiplication follows the usual shape rules.
type BinaryOp struct {
	base
	kind BinaryKind
}

// NewBinaryOp builds a binary operation, inferring the domain from the
// children. Incompatible child domains are a DomainError.
func NewBinaryOp(kind BinaryKind, left, right Symbol) (*BinaryOp, error) {
	domain, err := combineDomains(left.Domain(), right.Domain())
	if err != nil {
		return nil, err
	}
	name := left.Name() + " " + kind.String() + " " + right.Name()
	return &BinaryOp{
		base: newBase("binary:"+kind.String(), name, domain, []Symbol{left, right}, nil),
		kind: kind,
	}, nil
}

func (b *BinaryOp) Kind() BinaryKind { return b.kind }
func (b *BinaryOp) Left() Symbol     { return b.children[0] }
func (b *BinaryOp) Right() Symbol    { return b.children[1] }

func (b *BinaryOp) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	if v, ok := known.get(b.id); ok {
		return v, nil
	}
	l, err := b.Left().Evaluate(t, y, known)
	if err != nil {
		return nil, err
	}
	r, err := b.Right().Evaluate(t, y, known)
	if err != nil {
		return nil, err
	}
	var out mat.Matrix
	switch b.kind {
	case OpAdd:
		out, err = elementwise(b.name, func(a, c float64) float64 { return a + c }, l, r)
	case OpSub:
		out, err = elementwise(b.name, func(a, c float64) float64 { return a - c }, l, r)
	case OpMul:
		out, err = elementwise(b.name, func(a, c float64) float64 { return a * c }, l, r)
	case OpDiv:
		out, err = elementwise(b.name, func(a, c float64) float64 { return a / c }, l, r)
	case OpPow:
		out, err = elementwise(b.name, math.Pow, l, r)
	case OpMatMul:
		out, err = matMul(b.name, l, r)
	}
	if err != nil {
		return nil, err
	}
	return known.put(b.id, out), nil
}

func matMul(name string, l, r mat.Matrix) (mat.Matrix, error) {
	_, lc := l.Dims()
	rr, _ := r.Dims()
	if lc != rr {
		return nil, NewModelError("shape mismatch in %s: cannot multiply %s by %s",
			name, shapeString(l), shapeString(r))
	}
	var out mat.Dense
	out.Mul(l, r)
	return &out, nil
}

func (b *BinaryOp) NewCopy() Symbol {
	n, err := NewBinaryOp(b.kind, b.Left().NewCopy(), b.Right().NewCopy())
	if err != nil {
		// children were compatible when b was built
		panic(err)
	}
	return n
}

func (b *BinaryOp) Simplify() Symbol {
	left := b.Left().Simplify()
	right := b.Right().Simplify()

	if s := simplifyIdentities(b.kind, left, right); s != nil {
		return s
	}
	if b.kind == OpMatMul {
		if s := foldMatMulChain(left, right); s != nil {
			return SimplifyIfConstant(s)
		}
	}
	n, err := NewBinaryOp(b.kind, left, right)
	if err != nil {
		panic(err)
	}
	return SimplifyIfConstant(n)
}

// simplifyIdentities eliminates additive and multiplicative identities and,
// where shape-safe, annihilators. It returns nil when no rule applies.
func simplifyIdentities(kind BinaryKind, left, right Symbol) Symbol {
	lv, lok := scalarValueOf(left)
	rv, rok := scalarValueOf(right)
	switch kind {
	case OpAdd:
		if lok && lv == 0 {
			return right
		}
		if rok && rv == 0 {
			return left
		}
	case OpSub:
		if rok && rv == 0 {
			return left
		}
	case OpMul:
		if lok && lv == 1 {
			return right
		}
		if rok && rv == 1 {
			return left
		}
		// x*0 -> 0 only when the surviving scalar keeps the evaluated shape
		if lok && lv == 0 && EvaluatesToNumber(right) {
			return NewScalar(0)
		}
		if rok && rv == 0 && EvaluatesToNumber(left) {
			return NewScalar(0)
		}
	case OpDiv:
		if rok && rv == 1 {
			return left
		}
	case OpPow:
		if rok && rv == 1 {
			return left
		}
	}
	return nil
}

func scalarValueOf(s Symbol) (float64, bool) {
	if sc, ok := s.(*Scalar); ok {
		return sc.value, true
	}
	return 0, false
}

// Convenience constructors. These panic on incompatible domains, which is a
// model-authoring error; use NewBinaryOp to handle the error instead.

func mustBinary(kind BinaryKind, left, right Symbol) Symbol {
	n, err := NewBinaryOp(kind, left, right)
	if err != nil {
		panic(err)
	}
	return n
}

func Add(left, right Symbol) Symbol    { return mustBinary(OpAdd, left, right) }
func Sub(left, right Symbol) Symbol    { return mustBinary(OpSub, left, right) }
func Mul(left, right Symbol) Symbol    { return mustBinary(OpMul, left, right) }
func DivBy(left, right Symbol) Symbol  { return mustBinary(OpDiv, left, right) }
func Pow(left, right Symbol) Symbol    { return mustBinary(OpPow, left, right) }
func MatMul(left, right Symbol) Symbol { return mustBinary(OpMatMul, left, right) }
