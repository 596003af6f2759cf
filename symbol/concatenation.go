package symbol

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// concatDomains combines child domains for a concatenation: they must be
// pairwise disjoint, and the union is sorted by the global domain order.
func concatDomains(order DomainOrder, children []Symbol) ([]string, error) {
	var domain []string
	for _, c := range children {
		if !domainsDisjoint(domain, c.Domain()) {
			return nil, NewDomainError(
				"domains of concatenated children must be disjoint: %q overlaps %v",
				c.Name(), domain)
		}
		domain = append(domain, c.Domain()...)
	}
	return order.Sort(domain)
}

// Concatenation assembles domain-scoped children into one symbolic vector.
// It is rewritten to a DomainConcatenation during discretisation and cannot
// be evaluated directly.
type Concatenation struct {
	base
}

func NewConcatenation(order DomainOrder, children ...Symbol) (*Concatenation, error) {
	domain, err := concatDomains(order, children)
	if err != nil {
		return nil, err
	}
	return &Concatenation{newBase("concatenation", "concatenation", domain, children, nil)}, nil
}

// Concat is the panicking shorthand used when authoring models.
func Concat(order DomainOrder, children ...Symbol) Symbol {
	n, err := NewConcatenation(order, children...)
	if err != nil {
		panic(err)
	}
	return n
}

func (c *Concatenation) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	return nil, errors.Errorf("%s must be discretised before evaluation", c.name)
}

func (c *Concatenation) NewCopy() Symbol {
	return &Concatenation{newBase("concatenation", "concatenation", copyStrings(c.domain), copyChildren(c.children), nil)}
}

func (c *Concatenation) Simplify() Symbol {
	children := make([]Symbol, len(c.children))
	for i, ch := range c.children {
		children[i] = ch.Simplify()
	}
	return &Concatenation{newBase("concatenation", "concatenation", copyStrings(c.domain), children, nil)}
}

// FlatConcatenation stacks the evaluated children into one column vector
// without any domain bookkeeping. Number-valued children are lifted to
// length-1 vectors so stacking always works.
type FlatConcatenation struct {
	base
}

func NewFlatConcatenation(children ...Symbol) *FlatConcatenation {
	if len(children) == 0 {
		panic("flat concatenation needs at least one child")
	}
	lifted := make([]Symbol, len(children))
	for i, c := range children {
		if EvaluatesToNumber(c) {
			fb, err := NewFlatBroadcast(c, nil, nil)
			if err != nil {
				panic(err)
			}
			lifted[i] = fb
		} else {
			lifted[i] = c
		}
	}
	return &FlatConcatenation{newBase("flat concatenation", "flat concatenation", nil, lifted, nil)}
}

func (c *FlatConcatenation) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	if v, ok := known.get(c.id); ok {
		return v, nil
	}
	var data []float64
	for _, ch := range c.children {
		part, err := EvaluateColumn(ch, t, y, known)
		if err != nil {
			return nil, err
		}
		data = append(data, part...)
	}
	return known.put(c.id, mat.NewVecDense(len(data), data)), nil
}

func (c *FlatConcatenation) NewCopy() Symbol {
	return NewFlatConcatenation(copyChildren(c.children)...)
}

func (c *FlatConcatenation) Simplify() Symbol {
	if sv := collapseStateVectors(c.children); sv != nil {
		return sv
	}
	children := make([]Symbol, len(c.children))
	for i, ch := range c.children {
		children[i] = ch.Simplify()
	}
	return SimplifyIfConstant(NewFlatConcatenation(children...))
}

// collapseStateVectors merges a run of contiguous, increasing state-vector
// slices into a single slice node. Returns nil when the children are not
// such a run.
func collapseStateVectors(children []Symbol) Symbol {
	if len(children) == 0 {
		return nil
	}
	vectors := make([]*StateVector, len(children))
	for i, c := range children {
		sv, ok := c.(*StateVector)
		if !ok {
			return nil
		}
		vectors[i] = sv
	}
	for i := 0; i < len(vectors)-1; i++ {
		if vectors[i].slice.Stop != vectors[i+1].slice.Start {
			return nil
		}
	}
	return NewStateVector(Slice{Start: vectors[0].slice.Start, Stop: vectors[len(vectors)-1].slice.Stop})
}

// DomainConcatenation assembles domain-scoped children into one flat vector
// ordered by the global domain order, tracking both the slice of each domain
// within its own output and within each child's output.
type DomainConcatenation struct {
	base
	size        int
	slices      map[string]Slice
	childSlices []map[string]Slice
}

// NewDomainConcatenation builds a domain concatenation against per-domain
// flattened sizes (typically derived from the mesh).
func NewDomainConcatenation(children []Symbol, order DomainOrder, sizes map[string]int) (*DomainConcatenation, error) {
	domain, err := concatDomains(order, children)
	if err != nil {
		return nil, err
	}
	if len(domain) == 0 {
		return nil, NewDomainError(
			"domain concatenation needs domain-scoped children; broadcast them first")
	}
	slices, size, err := domainSlices(domain, sizes)
	if err != nil {
		return nil, err
	}
	childSlices := make([]map[string]Slice, len(children))
	for i, c := range children {
		cd, err := order.Sort(c.Domain())
		if err != nil {
			return nil, err
		}
		childSlices[i], _, err = domainSlices(cd, sizes)
		if err != nil {
			return nil, err
		}
	}
	payload := intPayload(size)
	for _, d := range domain {
		payload = append(payload, intPayload(sizes[d])...)
	}
	return &DomainConcatenation{
		base:        newBase("domain concatenation", "domain concatenation", domain, children, payload),
		size:        size,
		slices:      slices,
		childSlices: childSlices,
	}, nil
}

func domainSlices(domain []string, sizes map[string]int) (map[string]Slice, int, error) {
	slices := make(map[string]Slice, len(domain))
	cursor := 0
	for _, d := range domain {
		n, ok := sizes[d]
		if !ok {
			return nil, 0, NewDomainError("no discretised size for domain %q", d)
		}
		slices[d] = Slice{Start: cursor, Stop: cursor + n}
		cursor += n
	}
	return slices, cursor, nil
}

// Size is the length of the evaluated vector.
func (c *DomainConcatenation) Size() int { return c.size }

// Slices maps each domain to its slice of the node's own output.
func (c *DomainConcatenation) Slices() map[string]Slice { return c.slices }

// ChildSlices maps, for each child, each of its domains to the slice of that
// child's own output.
func (c *DomainConcatenation) ChildSlices() []map[string]Slice { return c.childSlices }

func (c *DomainConcatenation) Evaluate(t float64, y []float64, known Evals) (mat.Matrix, error) {
	if v, ok := known.get(c.id); ok {
		return v, nil
	}
	out := make([]float64, c.size)
	for i, ch := range c.children {
		part, err := EvaluateColumn(ch, t, y, known)
		if err != nil {
			return nil, err
		}
		for dom, cs := range c.childSlices[i] {
			if cs.Stop > len(part) {
				return nil, NewModelError(
					"domain concatenation child %q evaluates to %d entries, need %d for domain %q",
					ch.Name(), len(part), cs.Stop, dom)
			}
			copy(out[c.slices[dom].Start:c.slices[dom].Stop], part[cs.Start:cs.Stop])
		}
	}
	return known.put(c.id, mat.NewVecDense(c.size, out)), nil
}

func (c *DomainConcatenation) NewCopy() Symbol {
	return c.withChildren(copyChildren(c.children))
}

func (c *DomainConcatenation) Simplify() Symbol {
	if sv := collapseStateVectors(c.children); sv != nil {
		return sv
	}
	children := make([]Symbol, len(c.children))
	for i, ch := range c.children {
		children[i] = ch.Simplify()
	}
	return SimplifyIfConstant(c.withChildren(children))
}

// withChildren rebuilds the node with the same slice bookkeeping.
func (c *DomainConcatenation) withChildren(children []Symbol) *DomainConcatenation {
	payload := intPayload(c.size)
	for _, d := range c.domain {
		payload = append(payload, intPayload(c.slices[d].Size())...)
	}
	return &DomainConcatenation{
		base:        newBase("domain concatenation", "domain concatenation", copyStrings(c.domain), children, payload),
		size:        c.size,
		slices:      c.slices,
		childSlices: c.childSlices,
	}
}
