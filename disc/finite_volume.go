package disc

import (
	"github.com/james-bowman/sparse"

	"github.com/cellsim/cellsim/mesh"
	"github.com/cellsim/cellsim/symbol"
)

// FiniteVolume is the cell-centered finite-volume strategy on 1D submeshes.
// Variables live at cell centers; gradients live at cell faces. Dirichlet
// boundary conditions are imposed through ghost cells, Neumann conditions by
// writing the known flux straight onto the boundary face.
type FiniteVolume struct {
	mesh *mesh.Mesh
}

func NewFiniteVolume(m *mesh.Mesh) *FiniteVolume {
	return &FiniteVolume{mesh: m}
}

func (fv *FiniteVolume) submesh(domain []string) (*mesh.Submesh, error) {
	return fv.mesh.Combine(domain...)
}

// Gradient builds the two-point face gradient. Where a ghost cell or a
// Neumann flux extends the stencil to a boundary face, the result carries a
// ghost-cell flag on that side so later face interpolation knows to
// extrapolate.
func (fv *FiniteVolume) Gradient(child, discChild symbol.Symbol, bcs BCMap) (symbol.Symbol, error) {
	sub, err := fv.submesh(child.Domain())
	if err != nil {
		return nil, err
	}
	n := sub.Npts
	conds := bcs[child.ID()]

	// extend the cell-center values and positions with ghost cells where a
	// Dirichlet condition demands one
	nodes := make([]float64, 0, n+2)
	parts := make([]symbol.Symbol, 0, 3)
	var leftFlux, rightFlux symbol.Symbol
	leftGhost, rightGhost := false, false

	if bc, ok := conds[symbol.SideLeft]; ok {
		leftGhost = true
		switch bc.Kind {
		case Dirichlet:
			// ghost value u_g with (u_g + u_0)/2 == bc
			ghost := symbol.Sub(
				symbol.Mul(symbol.NewScalar(2), bc.Value),
				symbol.MatMul(selectionMatrix(0, n), discChild))
			parts = append(parts, ghost)
			nodes = append(nodes, 2*sub.Edges[0]-sub.Nodes[0])
		case Neumann:
			leftFlux = bc.Value
		}
	}
	parts = append(parts, discChild)
	nodes = append(nodes, sub.Nodes...)
	if bc, ok := conds[symbol.SideRight]; ok {
		rightGhost = true
		switch bc.Kind {
		case Dirichlet:
			ghost := symbol.Sub(
				symbol.Mul(symbol.NewScalar(2), bc.Value),
				symbol.MatMul(selectionMatrix(n-1, n), discChild))
			parts = append(parts, ghost)
			nodes = append(nodes, 2*sub.Edges[len(sub.Edges)-1]-sub.Nodes[n-1])
		case Neumann:
			rightFlux = bc.Value
		}
	}

	extended := parts[0]
	if len(parts) > 1 {
		extended = symbol.NewFlatConcatenation(parts...)
	}

	// one finite difference per adjacent node pair
	faces := len(nodes) - 1
	dok := sparse.NewDOK(faces, len(nodes))
	for i := 0; i < faces; i++ {
		d := nodes[i+1] - nodes[i]
		dok.Set(i, i, -1/d)
		dok.Set(i, i+1, 1/d)
	}
	grad := symbol.MatMul(symbol.NewMatrix(dok.ToCSR()), extended)

	if leftFlux != nil || rightFlux != nil {
		flux := make([]symbol.Symbol, 0, 3)
		if leftFlux != nil {
			flux = append(flux, leftFlux)
		}
		flux = append(flux, grad)
		if rightFlux != nil {
			flux = append(flux, rightFlux)
		}
		grad = symbol.NewFlatConcatenation(flux...)
	}
	grad.SetGhostCells(leftGhost, rightGhost)
	return grad, nil
}

// Divergence maps face values back to cell averages by differencing across
// each cell and dividing by its width.
func (fv *FiniteVolume) Divergence(child, discChild symbol.Symbol, bcs BCMap) (symbol.Symbol, error) {
	sub, err := fv.submesh(child.Domain())
	if err != nil {
		return nil, err
	}
	n := sub.Npts
	dok := sparse.NewDOK(n, n+1)
	for i := 0; i < n; i++ {
		dx := sub.Edges[i+1] - sub.Edges[i]
		dok.Set(i, i, -1/dx)
		dok.Set(i, i+1, 1/dx)
	}
	return symbol.MatMul(symbol.NewMatrix(dok.ToCSR()), discChild), nil
}

// Integral is the midpoint rule: one row of cell widths.
func (fv *FiniteVolume) Integral(domain []string, child, discChild symbol.Symbol) (symbol.Symbol, error) {
	sub, err := fv.submesh(domain)
	if err != nil {
		return nil, err
	}
	dok := sparse.NewDOK(1, sub.Npts)
	for i := 0; i < sub.Npts; i++ {
		dok.Set(0, i, sub.Edges[i+1]-sub.Edges[i])
	}
	return symbol.MatMul(symbol.NewMatrix(dok.ToCSR()), discChild), nil
}

// IndefiniteIntegral accumulates the midpoint rule from the left boundary to
// each cell center: full widths for cells already passed, half the width of
// the cell itself.
func (fv *FiniteVolume) IndefiniteIntegral(domain []string, child, discChild symbol.Symbol) (symbol.Symbol, error) {
	sub, err := fv.submesh(domain)
	if err != nil {
		return nil, err
	}
	n := sub.Npts
	dok := sparse.NewDOK(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			dok.Set(i, j, sub.Edges[j+1]-sub.Edges[j])
		}
		dok.Set(i, i, (sub.Edges[i+1]-sub.Edges[i])/2)
	}
	return symbol.MatMul(symbol.NewMatrix(dok.ToCSR()), discChild), nil
}

// BoundaryValue linearly extrapolates the two cells nearest the requested
// boundary.
func (fv *FiniteVolume) BoundaryValue(child, discChild symbol.Symbol, side symbol.Side) (symbol.Symbol, error) {
	sub, err := fv.submesh(child.Domain())
	if err != nil {
		return nil, err
	}
	n := sub.Npts
	dok := sparse.NewDOK(1, n)
	switch {
	case n < 2:
		dok.Set(0, 0, 1)
	case side == symbol.SideLeft:
		dok.Set(0, 0, 1.5)
		dok.Set(0, 1, -0.5)
	default:
		dok.Set(0, n-2, -0.5)
		dok.Set(0, n-1, 1.5)
	}
	return symbol.MatMul(symbol.NewMatrix(dok.ToCSR()), discChild), nil
}

// Broadcast replicates a number-valued node across every state entry of the
// domain.
func (fv *FiniteVolume) Broadcast(child symbol.Symbol, domain []string) (symbol.Symbol, error) {
	size, err := fv.mesh.BroadcastSize(domain)
	if err != nil {
		return nil, err
	}
	dok := sparse.NewDOK(size, 1)
	for i := 0; i < size; i++ {
		dok.Set(i, 0, 1)
	}
	return symbol.MatMul(symbol.NewMatrix(dok.ToCSR(), domain...), child), nil
}

// SpatialVariable resolves a coordinate to the cell-center positions of its
// domain.
func (fv *FiniteVolume) SpatialVariable(sv *symbol.SpatialVariable) (symbol.Symbol, error) {
	sub, err := fv.submesh(sv.Domain())
	if err != nil {
		return nil, err
	}
	return symbol.NewVector(sub.Nodes, sv.Domain()...), nil
}

// MassMatrix is the identity: cell averages are the state itself.
func (fv *FiniteVolume) MassMatrix(v *symbol.Variable, bcs BCMap) (*symbol.Matrix, error) {
	size, err := fv.mesh.BroadcastSize(v.Domain())
	if err != nil {
		return nil, err
	}
	dok := sparse.NewDOK(size, size)
	for i := 0; i < size; i++ {
		dok.Set(i, i, 1)
	}
	return symbol.NewMatrix(dok.ToCSR()), nil
}

// ComputeDiffusivity averages a cell-centered quantity onto the interior
// faces, extrapolating to a boundary face on each side that carries a ghost
// cell. Number-valued and domainless quantities pass through unchanged.
func (fv *FiniteVolume) ComputeDiffusivity(disc symbol.Symbol, extrapolateLeft, extrapolateRight bool) (symbol.Symbol, error) {
	if symbol.EvaluatesToNumber(disc) || len(disc.Domain()) == 0 {
		return disc, nil
	}
	sub, err := fv.submesh(disc.Domain())
	if err != nil {
		return nil, err
	}
	n := sub.Npts
	rows := n - 1
	if extrapolateLeft {
		rows++
	}
	if extrapolateRight {
		rows++
	}
	dok := sparse.NewDOK(rows, n)
	row := 0
	if extrapolateLeft {
		if n < 2 {
			dok.Set(row, 0, 1)
		} else {
			dok.Set(row, 0, 1.5)
			dok.Set(row, 1, -0.5)
		}
		row++
	}
	for i := 0; i < n-1; i++ {
		dok.Set(row, i, 0.5)
		dok.Set(row, i+1, 0.5)
		row++
	}
	if extrapolateRight {
		if n < 2 {
			dok.Set(row, 0, 1)
		} else {
			dok.Set(row, n-2, -0.5)
			dok.Set(row, n-1, 1.5)
		}
	}
	return symbol.MatMul(symbol.NewMatrix(dok.ToCSR()), disc), nil
}

// selectionMatrix picks one entry out of an n-vector.
func selectionMatrix(i, n int) *symbol.Matrix {
	dok := sparse.NewDOK(1, n)
	dok.Set(0, i, 1)
	return symbol.NewMatrix(dok.ToCSR())
}
