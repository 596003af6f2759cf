package symbol

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Broadcast marks a domain-less child for expansion onto a domain. The
// spatial method decides what the expansion looks like after discretisation.
type Broadcast struct {
	unary
	target []string
}

// NewBroadcast builds a symbolic broadcast of child onto domain. The child
// must be domain-less, already on the target domain, or on the current
// collector.
func NewBroadcast(child Symbol, domain []string) (*Broadcast, error) {
	cd := child.Domain()
	if len(cd) != 0 && !domainsEqual(cd, domain) && !domainsEqual(cd, []string{"current collector"}) {
		return nil, NewDomainError(
			"cannot broadcast %q from domain %v onto %v", child.Name(), cd, domain)
	}
	return &Broadcast{
		unary:  unary{newBase("broadcast", "broadcast("+child.Name()+")", copyStrings(domain), []Symbol{child}, nil)},
		target: copyStrings(domain),
	}, nil
}

func (b *Broadcast) Target() []string { return b.target }

func (b *Broadcast) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	return nil, errors.Errorf("%s must be discretised before evaluation", b.name)
}

func (b *Broadcast) NewCopy() Symbol {
	n, err := NewBroadcast(b.Child().NewCopy(), b.target)
	if err != nil {
		panic(err)
	}
	return n
}

func (b *Broadcast) Simplify() Symbol {
	n, err := NewBroadcast(b.Child().Simplify(), b.target)
	if err != nil {
		panic(err)
	}
	return n
}

// FlatBroadcast replicates a number-valued child at evaluation time: once
// per mesh point of each domain, or to a length-1 vector when the domain is
// empty. It is the post-discretisation counterpart of Broadcast.
type FlatBroadcast struct {
	unary
	size int
}

// NewFlatBroadcast builds a replicating broadcast. npts gives the number of
// evaluation points per domain name; it is ignored for an empty domain.
func NewFlatBroadcast(child Symbol, domain []string, npts map[string]int) (*FlatBroadcast, error) {
	size := 1
	if len(domain) > 0 {
		size = 0
		for _, d := range domain {
			n, ok := npts[d]
			if !ok {
				return nil, NewDomainError("no point count for domain %q in broadcast of %q", d, child.Name())
			}
			size += n
		}
	}
	return &FlatBroadcast{
		unary: unary{newBase("flat broadcast", "broadcast("+child.Name()+")",
			copyStrings(domain), []Symbol{child}, intPayload(size))},
		size: size,
	}, nil
}

// Size is the length of the evaluated vector.
func (b *FlatBroadcast) Size() int { return b.size }

func (b *FlatBroadcast) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	if v, ok := known.get(b.id); ok {
		return v, nil
	}
	c, err := b.Child().Evaluate(t, y, known)
	if err != nil {
		return nil, err
	}
	if !isScalarMat(c) {
		return nil, NewModelError(
			"%s: child evaluates to shape %s, expected a single number", b.name, shapeString(c))
	}
	data := make([]float64, b.size)
	v := c.At(0, 0)
	for i := range data {
		data[i] = v
	}
	return known.put(b.id, mat.NewVecDense(b.size, data)), nil
}

func (b *FlatBroadcast) NewCopy() Symbol {
	return b.WithChild(b.Child().NewCopy())
}

func (b *FlatBroadcast) Simplify() Symbol {
	return SimplifyIfConstant(b.WithChild(b.Child().Simplify()))
}

// WithChild rebuilds the broadcast with the same size around a new child.
func (b *FlatBroadcast) WithChild(child Symbol) *FlatBroadcast {
	return &FlatBroadcast{
		unary: unary{newBase("flat broadcast", "broadcast("+child.Name()+")",
			copyStrings(b.domain), []Symbol{child}, intPayload(b.size))},
		size: b.size,
	}
}
