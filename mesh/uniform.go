package mesh

import "github.com/cellsim/cellsim/symbol"

// DomainSpec describes one uniformly meshed domain.
type DomainSpec struct {
	Domain string
	Min    float64
	Max    float64
	Npts   int
}

// Uniform1DConfig configures a uniform one-dimensional mesh. Domains are
// listed in geometric order; adjacent extents should touch so the domains
// can be combined for whole-cell operators.
type Uniform1DConfig struct {
	Order   symbol.DomainOrder
	Domains []DomainSpec
}

// NewUniform1D builds a mesh with one uniform submesh per listed domain.
func NewUniform1D(cfg Uniform1DConfig) (*Mesh, error) {
	m := New(cfg.Order)
	for _, spec := range cfg.Domains {
		if spec.Npts <= 0 {
			return nil, symbol.NewDomainError("domain %q needs a positive point count, got %d",
				spec.Domain, spec.Npts)
		}
		if err := m.Add(spec.Domain, NewUniformSubmesh(spec.Min, spec.Max, spec.Npts)); err != nil {
			return nil, err
		}
	}
	return m, nil
}
