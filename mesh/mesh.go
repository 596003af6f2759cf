// Package mesh provides the minimal mesh contract the discretiser consumes:
// ordered lists of one-dimensional submeshes per named domain, point counts,
// and the explicit global domain ordering used for concatenation.
package mesh

import (
	"math"

	"github.com/cellsim/cellsim/symbol"
)

// Submesh is one cell-centered 1D mesh: Nodes are the cell centers, Edges
// the cell faces (len(Edges) == len(Nodes)+1).
type Submesh struct {
	Nodes []float64
	Edges []float64

	// Npts is the number of cells. NptsForBroadcast is the number of state
	// entries a variable on this submesh consumes; it equals Npts for the
	// macroscale but can differ for reduced micro-scale submeshes.
	Npts             int
	NptsForBroadcast int
}

// NewUniformSubmesh builds a uniform cell-centered submesh of npts cells on
// [min, max].
func NewUniformSubmesh(min, max float64, npts int) *Submesh {
	edges := make([]float64, npts+1)
	nodes := make([]float64, npts)
	h := (max - min) / float64(npts)
	for i := 0; i <= npts; i++ {
		edges[i] = min + float64(i)*h
	}
	for i := 0; i < npts; i++ {
		nodes[i] = (edges[i] + edges[i+1]) / 2
	}
	return &Submesh{Nodes: nodes, Edges: edges, Npts: npts, NptsForBroadcast: npts}
}

// Mesh maps each named domain to its ordered submeshes and owns the global
// domain ordering. It is built once and treated as immutable afterwards;
// mutating it invalidates every model discretised against it.
type Mesh struct {
	order     symbol.DomainOrder
	submeshes map[string][]*Submesh
}

func New(order symbol.DomainOrder) *Mesh {
	return &Mesh{order: order, submeshes: make(map[string][]*Submesh)}
}

// Order returns the global domain ordering.
func (m *Mesh) Order() symbol.DomainOrder { return m.order }

// Add registers the submeshes composing a domain. The domain must be part
// of the global ordering.
func (m *Mesh) Add(domain string, subs ...*Submesh) error {
	if !m.order.Contains(domain) {
		return symbol.NewDomainError("unknown domain %q: not in the global domain order %v",
			domain, []string(m.order))
	}
	if len(subs) == 0 {
		return symbol.NewDomainError("domain %q needs at least one submesh", domain)
	}
	m.submeshes[domain] = subs
	return nil
}

// At returns the ordered submeshes of a domain.
func (m *Mesh) At(domain string) ([]*Submesh, error) {
	subs, ok := m.submeshes[domain]
	if !ok {
		return nil, symbol.NewDomainError("no submeshes for domain %q", domain)
	}
	return subs, nil
}

// DomainSize is the flattened length of a field over one domain: primary
// points times the number of secondary submeshes. It sizes the per-domain
// slices of a domain concatenation.
func (m *Mesh) DomainSize(domain string) (int, error) {
	subs, err := m.At(domain)
	if err != nil {
		return 0, err
	}
	return subs[0].Npts * len(subs), nil
}

// ConcatenationSizes returns DomainSize for each named domain, the sizing a
// domain concatenation is built against.
func (m *Mesh) ConcatenationSizes(domains []string) (map[string]int, error) {
	out := make(map[string]int, len(domains))
	for _, d := range domains {
		n, err := m.DomainSize(d)
		if err != nil {
			return nil, err
		}
		out[d] = n
	}
	return out, nil
}

// BroadcastSize is the number of state entries a variable over the given
// domains consumes.
func (m *Mesh) BroadcastSize(domains []string) (int, error) {
	total := 0
	for _, d := range domains {
		subs, err := m.At(d)
		if err != nil {
			return 0, err
		}
		for _, s := range subs {
			total += s.NptsForBroadcast
		}
	}
	return total, nil
}

// Combine merges the primary submeshes of adjacent domains into one, in the
// order given. The domains must be geometrically contiguous: the last edge
// of each submesh must coincide with the first edge of the next.
func (m *Mesh) Combine(domains ...string) (*Submesh, error) {
	if len(domains) == 0 {
		return nil, symbol.NewDomainError("cannot combine an empty domain list")
	}
	first, err := m.At(domains[0])
	if err != nil {
		return nil, err
	}
	nodes := append([]float64(nil), first[0].Nodes...)
	edges := append([]float64(nil), first[0].Edges...)
	for _, d := range domains[1:] {
		subs, err := m.At(d)
		if err != nil {
			return nil, err
		}
		sub := subs[0]
		if math.Abs(edges[len(edges)-1]-sub.Edges[0]) > 1e-12 {
			return nil, symbol.NewDomainError(
				"domains %v are not contiguous: edge %g does not meet %q at %g",
				domains, edges[len(edges)-1], d, sub.Edges[0])
		}
		nodes = append(nodes, sub.Nodes...)
		edges = append(edges, sub.Edges[1:]...)
	}
	return &Submesh{
		Nodes:            nodes,
		Edges:            edges,
		Npts:             len(nodes),
		NptsForBroadcast: len(nodes),
	}, nil
}
