package disc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/cellsim/cellsim/mesh"
	"github.com/cellsim/cellsim/symbol"
)

func wholeCellMesh(t *testing.T) *mesh.Mesh {
	t.Helper()
	m, err := mesh.NewUniform1D(mesh.Uniform1DConfig{
		Order: symbol.CellDomains,
		Domains: []mesh.DomainSpec{
			{Domain: "negative electrode", Min: 0, Max: 0.3, Npts: 5},
			{Domain: "separator", Min: 0.3, Max: 0.5, Npts: 4},
			{Domain: "positive electrode", Min: 0.5, Max: 1, Npts: 5},
		},
	})
	require.NoError(t, err)
	return m
}

func newDisc(t *testing.T, m *mesh.Mesh) *Discretisation {
	t.Helper()
	d, err := New(Config{Mesh: m, Methods: map[string]SpatialMethod{
		Macroscale: NewFiniteVolume(m),
	}})
	require.NoError(t, err)
	return d
}

// diffusionModel is the reference problem used across tests: diffusion of u
// over one electrode with fixed boundary values, plus one scalar algebraic
// unknown.
func diffusionModel(t *testing.T) (Model, *symbol.Variable) {
	t.Helper()
	u := symbol.NewVariable("u", "negative electrode")
	v := symbol.NewVariable("v")
	return Model{
		RHS: []Equation{
			{Key: u, Eqn: symbol.Div(symbol.Grad(u))},
		},
		Algebraic: []Equation{
			{Key: v, Eqn: symbol.Sub(v, symbol.NewScalar(4))},
		},
		InitialConditions: []Equation{
			{Key: u, Eqn: symbol.NewScalar(0)},
			{Key: v, Eqn: symbol.NewScalar(4)},
		},
		BoundaryConditions: []VariableBCs{
			{Key: u, Conditions: map[symbol.Side]BoundaryCondition{
				symbol.SideLeft:  {Value: symbol.NewScalar(0), Kind: Dirichlet},
				symbol.SideRight: {Value: symbol.NewScalar(1), Kind: Dirichlet},
			}},
		},
		Variables: []NamedExpression{
			{Name: "surface value", Expr: symbol.Surf(u)},
		},
		Events: []symbol.Symbol{
			symbol.Sub(symbol.T, symbol.NewScalar(1)),
		},
	}, u
}

func TestDiscretiseDiffusionModel(t *testing.T) {
	m := wholeCellMesh(t)
	d := newDisc(t, m)
	model, u := diffusionModel(t)

	dm, err := d.Discretise(model)
	require.NoError(t, err)

	assert.Equal(t, 6, dm.TotalSize)
	assert.Equal(t, symbol.Slice{Start: 0, Stop: 5}, dm.YSlices[u.ID()])
	require.Len(t, dm.ConcatenatedInitialConditions, 6)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 4}, dm.ConcatenatedInitialConditions)

	t.Run("RHSShape", func(t *testing.T) {
		rows, err := symbol.Rows(dm.ConcatenatedRHS, 0, dm.ConcatenatedInitialConditions)
		require.NoError(t, err)
		assert.Equal(t, 5, rows)
	})

	t.Run("MassMatrix", func(t *testing.T) {
		r, c := dm.MassMatrix.Dims()
		require.Equal(t, 6, r)
		require.Equal(t, 6, c)
		for i := 0; i < 5; i++ {
			assert.Equal(t, 1.0, dm.MassMatrix.At(i, i), "row %d", i)
		}
		// algebraic row stays zero
		assert.Equal(t, 0.0, dm.MassMatrix.At(5, 5))
	})

	t.Run("OutputVariable", func(t *testing.T) {
		require.Len(t, dm.Variables, 1)
		y := dm.ConcatenatedInitialConditions
		surf, err := symbol.EvaluateColumn(dm.Variables[0].Expr, 0, y, nil)
		require.NoError(t, err)
		require.Len(t, surf, 1)
		assert.InDelta(t, 0, surf[0], 1e-12)
	})

	t.Run("Event", func(t *testing.T) {
		require.NotNil(t, dm.ConcatenatedEvents)
		got, err := symbol.EvaluateColumn(dm.ConcatenatedEvents, 0.25, dm.ConcatenatedInitialConditions, nil)
		require.NoError(t, err)
		assert.InDelta(t, -0.75, got[0], 1e-12)
	})
}

// Three domain-less variables pack into a flat state of length three, one
// slot each, in declaration order.
func TestDiscretiseDomainlessVariables(t *testing.T) {
	d := newDisc(t, wholeCellMesh(t))

	a := symbol.NewVariable("a")
	b := symbol.NewVariable("b")
	c := symbol.NewVariable("c")
	model := Model{
		RHS: []Equation{
			{Key: a, Eqn: symbol.NewScalar(-1)},
			{Key: b, Eqn: symbol.NewNegate(b)},
			{Key: c, Eqn: symbol.Mul(symbol.NewScalar(2), a)},
		},
		InitialConditions: []Equation{
			{Key: a, Eqn: symbol.NewScalar(1)},
			{Key: b, Eqn: symbol.NewScalar(2)},
			{Key: c, Eqn: symbol.NewScalar(3)},
		},
	}

	dm, err := d.Discretise(model)
	require.NoError(t, err)

	assert.Equal(t, 3, dm.TotalSize)
	assert.Equal(t, symbol.Slice{Start: 0, Stop: 1}, dm.YSlices[a.ID()])
	assert.Equal(t, symbol.Slice{Start: 1, Stop: 2}, dm.YSlices[b.ID()])
	assert.Equal(t, symbol.Slice{Start: 2, Stop: 3}, dm.YSlices[c.ID()])
	assert.Equal(t, []float64{1, 2, 3}, dm.ConcatenatedInitialConditions)

	got, err := symbol.EvaluateColumn(dm.ConcatenatedRHS, 0, dm.ConcatenatedInitialConditions, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -2, 2}, got)
}

// Broadcasting constants over the three cell domains and concatenating
// yields the per-domain blocks in domain order.
func TestDiscretiseBroadcastConcatenation(t *testing.T) {
	m := wholeCellMesh(t)
	d := newDisc(t, m)

	dummy := symbol.NewVariable("dummy")
	field := symbol.Concat(m.Order(),
		mustBroadcast(t, symbol.NewScalar(1), "negative electrode"),
		mustBroadcast(t, symbol.NewScalar(2), "separator"),
		mustBroadcast(t, symbol.NewScalar(3), "positive electrode"),
	)
	model := Model{
		RHS:               []Equation{{Key: dummy, Eqn: symbol.NewScalar(0)}},
		InitialConditions: []Equation{{Key: dummy, Eqn: symbol.NewScalar(0)}},
		Variables:         []NamedExpression{{Name: "field", Expr: field}},
	}

	dm, err := d.Discretise(model)
	require.NoError(t, err)

	got, err := symbol.EvaluateColumn(dm.Variables[0].Expr, 0, dm.ConcatenatedInitialConditions, nil)
	require.NoError(t, err)
	want := []float64{1, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 3}
	assert.Equal(t, want, got)
}

func mustBroadcast(t *testing.T, child symbol.Symbol, domain string) symbol.Symbol {
	t.Helper()
	b, err := symbol.NewBroadcast(child, []string{domain})
	require.NoError(t, err)
	return b
}

// The discretised gradient of a flat state with Dirichlet values 0 and 1
// sees flux only through the right boundary face.
func TestDiscretiseGradientWithDirichlet(t *testing.T) {
	m, err := mesh.NewUniform1D(mesh.Uniform1DConfig{
		Order:   symbol.CellDomains,
		Domains: []mesh.DomainSpec{{Domain: "negative electrode", Min: 0, Max: 1, Npts: 10}},
	})
	require.NoError(t, err)
	d := newDisc(t, m)

	u := symbol.NewVariable("u", "negative electrode")
	model := Model{
		RHS:               []Equation{{Key: u, Eqn: symbol.Div(symbol.Grad(u))}},
		InitialConditions: []Equation{{Key: u, Eqn: symbol.NewScalar(0)}},
		BoundaryConditions: []VariableBCs{
			{Key: u, Conditions: map[symbol.Side]BoundaryCondition{
				symbol.SideLeft:  {Value: symbol.NewScalar(0), Kind: Dirichlet},
				symbol.SideRight: {Value: symbol.NewScalar(1), Kind: Dirichlet},
			}},
		},
		Variables: []NamedExpression{{Name: "flux", Expr: symbol.Grad(u)}},
	}

	dm, err := d.Discretise(model)
	require.NoError(t, err)

	flux, err := symbol.EvaluateColumn(dm.Variables[0].Expr, 0, make([]float64, 10), nil)
	require.NoError(t, err)
	require.Len(t, flux, 11)
	for i := 0; i < 10; i++ {
		assert.InDelta(t, 0, flux[i], 1e-12, "face %d", i)
	}
	assert.InDelta(t, 20, flux[10], 1e-10)
}

// A spatially varying coefficient multiplying a gradient is averaged onto
// the faces before the product is formed.
func TestDiscretiseVariableDiffusivity(t *testing.T) {
	m, err := mesh.NewUniform1D(mesh.Uniform1DConfig{
		Order:   symbol.CellDomains,
		Domains: []mesh.DomainSpec{{Domain: "separator", Min: 0, Max: 1, Npts: 4}},
	})
	require.NoError(t, err)
	d := newDisc(t, m)

	u := symbol.NewVariable("u", "separator")
	diffusivity := symbol.NewVector([]float64{1, 2, 3, 4}, "separator")
	model := Model{
		RHS: []Equation{
			{Key: u, Eqn: symbol.Div(symbol.Mul(diffusivity, symbol.Grad(u)))},
		},
		InitialConditions: []Equation{{Key: u, Eqn: symbol.NewScalar(0)}},
		BoundaryConditions: []VariableBCs{
			{Key: u, Conditions: map[symbol.Side]BoundaryCondition{
				symbol.SideLeft:  {Value: symbol.NewScalar(0), Kind: Dirichlet},
				symbol.SideRight: {Value: symbol.NewScalar(0), Kind: Dirichlet},
			}},
		},
	}

	dm, err := d.Discretise(model)
	require.NoError(t, err)

	// shapes must agree: 5 faces times 5 face coefficients back to 4 cells
	got, err := symbol.EvaluateColumn(dm.RHS[0].Eqn, 0, []float64{1, 1, 1, 1}, nil)
	require.NoError(t, err)
	require.Len(t, got, 4)
}

// Initial conditions covering only part of the state abort discretisation
// with the supplied variable names in the error.
func TestDiscretiseInsufficientInitialConditions(t *testing.T) {
	d := newDisc(t, wholeCellMesh(t))

	a := symbol.NewVariable("porosity")
	b := symbol.NewVariable("interface current")
	c := symbol.NewVariable("cell voltage")
	model := Model{
		RHS: []Equation{
			{Key: a, Eqn: symbol.NewScalar(0)},
			{Key: b, Eqn: symbol.NewScalar(0)},
			{Key: c, Eqn: symbol.NewScalar(0)},
		},
		InitialConditions: []Equation{
			{Key: a, Eqn: symbol.NewScalar(1)},
			{Key: b, Eqn: symbol.NewScalar(2)},
		},
	}

	_, err := d.Discretise(model)
	require.Error(t, err)
	var modelErr *symbol.ModelError
	require.ErrorAs(t, err, &modelErr)
	assert.Contains(t, modelErr.Error(), "porosity")
	assert.Contains(t, modelErr.Error(), "interface current")
	assert.NotContains(t, modelErr.Error(), "cell voltage")
}

func TestDiscretiseBadKeys(t *testing.T) {
	d := newDisc(t, wholeCellMesh(t))

	t.Run("NonVariableKey", func(t *testing.T) {
		model := Model{
			RHS:               []Equation{{Key: symbol.NewScalar(1), Eqn: symbol.NewScalar(0)}},
			InitialConditions: nil,
		}
		_, err := d.Discretise(model)
		var modelErr *symbol.ModelError
		require.ErrorAs(t, err, &modelErr)
	})

	t.Run("UnregisteredDomain", func(t *testing.T) {
		u := symbol.NewVariable("c_s", "negative particle")
		model := Model{
			RHS:               []Equation{{Key: u, Eqn: symbol.NewScalar(0)}},
			InitialConditions: []Equation{{Key: u, Eqn: symbol.NewScalar(0)}},
		}
		_, err := d.Discretise(model)
		var domainErr *symbol.DomainError
		require.ErrorAs(t, err, &domainErr)
	})

	t.Run("DuplicateVariable", func(t *testing.T) {
		a := symbol.NewVariable("a")
		model := Model{
			RHS: []Equation{
				{Key: a, Eqn: symbol.NewScalar(0)},
				{Key: a, Eqn: symbol.NewScalar(1)},
			},
		}
		_, err := d.Discretise(model)
		var modelErr *symbol.ModelError
		require.ErrorAs(t, err, &modelErr)
	})
}

func TestDiscretiseShapeMismatch(t *testing.T) {
	d := newDisc(t, wholeCellMesh(t))

	u := symbol.NewVariable("u", "negative electrode")
	model := Model{
		RHS: []Equation{
			// wrong shape on purpose: 2 entries against a 5-point domain
			{Key: u, Eqn: symbol.NewVector([]float64{1, 2}, "negative electrode")},
		},
		InitialConditions: []Equation{{Key: u, Eqn: symbol.NewScalar(0)}},
	}
	_, err := d.Discretise(model)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "u")
}

// Re-discretising the identical model must reproduce the identical slice
// map, initial state and mass matrix.
func TestDiscretiseDeterministic(t *testing.T) {
	m := wholeCellMesh(t)
	model, _ := diffusionModel(t)

	first, err := newDisc(t, m).Discretise(model)
	require.NoError(t, err)
	second, err := newDisc(t, m).Discretise(model)
	require.NoError(t, err)

	assert.Equal(t, first.YSlices, second.YSlices)
	assert.Equal(t, first.SliceOrder, second.SliceOrder)
	assert.Equal(t, first.ConcatenatedInitialConditions, second.ConcatenatedInitialConditions)
	assert.Equal(t, first.ConcatenatedRHS.ID(), second.ConcatenatedRHS.ID())
	assert.True(t, mat.Equal(first.MassMatrix, second.MassMatrix))
}

func TestNewValidation(t *testing.T) {
	m := wholeCellMesh(t)
	fv := NewFiniteVolume(m)

	_, err := New(Config{Mesh: nil, Methods: map[string]SpatialMethod{Macroscale: fv}})
	require.Error(t, err)

	_, err = New(Config{Mesh: m})
	require.Error(t, err)

	_, err = New(Config{Mesh: m, Methods: map[string]SpatialMethod{"mystery": fv}})
	var domainErr *symbol.DomainError
	require.ErrorAs(t, err, &domainErr)
}
