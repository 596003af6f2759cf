// Package symbol implements the expression tree used to state continuous
// models symbolically. Nodes are immutable value trees: every rewrite
// (simplification, discretisation) builds new nodes rather than mutating in
// place, so trees can be shared read-only across concurrent evaluations.
package symbol

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Symbol is a node in the expression tree. Identity is structural: two
// independently built trees with the same shape and literal content report
// the same ID, which is what memoisation and slice-map keys rely on.
type Symbol interface {
	// Name is a human-readable label used in error messages.
	Name() string

	// ID is the structural content hash of the node, computed once at
	// construction from the node kind, literal payload, domain and the IDs
	// of the children. Never address-based.
	ID() uint64

	// Domain is the ordered list of named regions the node is defined over.
	// Empty means domain-independent (scalar-like).
	Domain() []string

	// Children returns the owned child nodes, outermost first.
	Children() []Symbol

	// Evaluate computes the numeric value of the node at time t and flat
	// state vector y. Results are column matrices: scalars are 1x1. If
	// known is non-nil it is used as a shared sub-result cache keyed by
	// structural ID, valid for a single (t, y) point.
	Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error)

	// NewCopy returns a structural clone of the node. The clone compares
	// equal to the original by ID.
	NewCopy() Symbol

	// Simplify returns an evaluation-equivalent node with the same domain,
	// applying constant folding and identity elimination bottom-up.
	Simplify() Symbol

	// Ghost-cell markers, set by spatial methods while discretising a
	// gradient and read back when averaging diffusivities. Only meaningful
	// during a single discretisation run.
	HasLeftGhostCell() bool
	HasRightGhostCell() bool
	SetGhostCells(left, right bool)
}

// Evals memoises evaluation results across sibling evaluations at a single
// (t, y) point, keyed by structural ID. A nil Evals disables caching.
type Evals map[uint64]mat.Matrix

func (e Evals) get(id uint64) (mat.Matrix, bool) {
	if e == nil {
		return nil, false
	}
	v, ok := e[id]
	return v, ok
}

func (e Evals) put(id uint64, v mat.Matrix) mat.Matrix {
	if e != nil {
		e[id] = v
	}
	return v
}

// base carries the state shared by every node kind.
type base struct {
	name       string
	domain     []string
	children   []Symbol
	id         uint64
	leftGhost  bool
	rightGhost bool
}

func newBase(kind, name string, domain []string, children []Symbol, payload []byte) base {
	return base{
		name:     name,
		domain:   domain,
		children: children,
		id:       hashID(kind, payload, domain, children),
	}
}

func (b *base) Name() string            { return b.name }
func (b *base) ID() uint64              { return b.id }
func (b *base) Domain() []string        { return b.domain }
func (b *base) Children() []Symbol      { return b.children }
func (b *base) HasLeftGhostCell() bool  { return b.leftGhost }
func (b *base) HasRightGhostCell() bool { return b.rightGhost }

func (b *base) SetGhostCells(left, right bool) {
	b.leftGhost = left
	b.rightGhost = right
}

// hashID computes the structural identity of a node.
func hashID(kind string, payload []byte, domain []string, children []Symbol) uint64 {
	h := fnv.New64a()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	for _, d := range domain {
		h.Write([]byte(d))
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	h.Write(payload)
	var buf [8]byte
	for _, c := range children {
		binary.LittleEndian.PutUint64(buf[:], c.ID())
		h.Write(buf[:])
	}
	return h.Sum64()
}

func floatPayload(vals ...float64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func intPayload(vals ...int) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(v))
	}
	return buf
}

// PreOrder returns the node and all of its descendants, parents before
// children, left to right.
func PreOrder(s Symbol) []Symbol {
	out := []Symbol{s}
	for _, c := range s.Children() {
		out = append(out, PreOrder(c)...)
	}
	return out
}

// IsConstant reports whether the tree contains no state, time or unresolved
// symbolic leaves, i.e. whether it can be folded to a numeric constant.
func IsConstant(s Symbol) bool {
	for _, n := range PreOrder(s) {
		switch n.(type) {
		case *Variable, *StateVector, *Time, *SpatialVariable,
			*Parameter, *FunctionParameter,
			*Gradient, *Divergence, *Integral, *IndefiniteIntegral,
			*BoundaryValue, *Broadcast, *Concatenation:
			return false
		}
	}
	return true
}

// EvaluatesToNumber reports, structurally, whether evaluation yields a
// single number rather than an array.
func EvaluatesToNumber(s Symbol) bool {
	switch v := s.(type) {
	case *Scalar, *Time, *Parameter:
		return true
	case *Vector:
		return v.entries.Len() == 1
	case *Matrix:
		r, c := v.entries.Dims()
		return r == 1 && c == 1
	case *BinaryOp:
		return EvaluatesToNumber(v.children[0]) && EvaluatesToNumber(v.children[1])
	case *Negate:
		return EvaluatesToNumber(v.children[0])
	case *AbsoluteValue:
		return EvaluatesToNumber(v.children[0])
	case *Function:
		return EvaluatesToNumber(v.children[0])
	default:
		return false
	}
}

// GradientNotDivergence reports whether the tree contains a gradient that is
// not wrapped in a divergence. Binary operators combining such a subtree
// with a gradient-free one need diffusivity averaging when discretised.
func GradientNotDivergence(s Symbol) bool {
	hasGrad := false
	for _, n := range PreOrder(s) {
		switch n.(type) {
		case *Divergence:
			return false
		case *Gradient:
			hasGrad = true
		}
	}
	return hasGrad
}

func copyChildren(children []Symbol) []Symbol {
	out := make([]Symbol, len(children))
	for i, c := range children {
		out[i] = c.NewCopy()
	}
	return out
}

func copyStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
