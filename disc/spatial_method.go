package disc

import (
	"github.com/cellsim/cellsim/symbol"
)

// SpatialMethod turns continuous spatial operators into discrete ones for
// one mesh representation. The discretiser never branches on the concrete
// strategy; it only calls this contract with the domain's registered method.
//
// Every operator receives the original (continuous) child alongside its
// already-discretised form: boundary conditions are keyed by the original
// child's structural identity.
type SpatialMethod interface {
	// Gradient discretises grad(child) as a sparse linear operation on the
	// discretised child, applying any boundary conditions for the child.
	Gradient(child, discChild symbol.Symbol, bcs BCMap) (symbol.Symbol, error)

	// Divergence discretises div(child).
	Divergence(child, discChild symbol.Symbol, bcs BCMap) (symbol.Symbol, error)

	// Integral discretises the definite integral of child over domain.
	Integral(domain []string, child, discChild symbol.Symbol) (symbol.Symbol, error)

	// IndefiniteIntegral discretises the cumulative integral of child from
	// the left boundary of domain.
	IndefiniteIntegral(domain []string, child, discChild symbol.Symbol) (symbol.Symbol, error)

	// BoundaryValue discretises the value of child at one domain boundary.
	BoundaryValue(child, discChild symbol.Symbol, side symbol.Side) (symbol.Symbol, error)

	// Broadcast expands a number-valued node to one entry per mesh point of
	// domain.
	Broadcast(child symbol.Symbol, domain []string) (symbol.Symbol, error)

	// SpatialVariable discretises a coordinate to the mesh node positions.
	SpatialVariable(sv *symbol.SpatialVariable) (symbol.Symbol, error)

	// MassMatrix builds the variable's mass-matrix block, sized to its
	// discretised length and incorporating boundary-condition effects.
	MassMatrix(v *symbol.Variable, bcs BCMap) (*symbol.Matrix, error)

	// ComputeDiffusivity interpolates a cell-centered quantity onto face
	// locations so it can combine with a discretised gradient, linearly
	// extrapolating to boundary faces where ghost cells demand it.
	ComputeDiffusivity(disc symbol.Symbol, extrapolateLeft, extrapolateRight bool) (symbol.Symbol, error)
}

// Macroscale is the reserved registry name standing for all primary
// electrochemical sub-domains. It is expanded to per-domain entries before
// the registry reaches the discretiser.
const Macroscale = "macroscale"

var macroscaleDomains = []string{"negative electrode", "separator", "positive electrode"}

// normalizeMethods expands the reserved macroscale entry to its constituent
// sub-domains. The input map is not modified.
func normalizeMethods(methods map[string]SpatialMethod) map[string]SpatialMethod {
	out := make(map[string]SpatialMethod, len(methods)+2)
	if m, ok := methods[Macroscale]; ok {
		for _, sub := range macroscaleDomains {
			out[sub] = m
		}
	}
	for dom, m := range methods {
		if dom != Macroscale {
			out[dom] = m
		}
	}
	return out
}
