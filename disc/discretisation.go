package disc

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/cellsim/cellsim/mesh"
	"github.com/cellsim/cellsim/symbol"
)

// Config configures a Discretisation.
type Config struct {
	Mesh *mesh.Mesh

	// Methods maps domain names to spatial-method strategies. The reserved
	// Macroscale entry is expanded to the primary electrochemical
	// sub-domains.
	Methods map[string]SpatialMethod
}

// Discretisation compiles one model against one mesh and one set of spatial
// methods. It is run to completion exactly once per model; the resulting
// DiscretisedModel is immutable and safe for concurrent evaluation.
type Discretisation struct {
	mesh    *mesh.Mesh
	methods map[string]SpatialMethod

	bcs       BCMap
	ySlices   map[uint64]symbol.Slice
	order     []VariableSlice
	totalSize int
}

// New builds a Discretisation. Every registered domain must be part of the
// mesh's global domain order.
func New(cfg Config) (*Discretisation, error) {
	if cfg.Mesh == nil {
		return nil, errors.New("disc: mesh cannot be nil")
	}
	if len(cfg.Methods) == 0 {
		return nil, errors.New("disc: at least one spatial method is required")
	}
	methods := normalizeMethods(cfg.Methods)
	for dom := range methods {
		if !cfg.Mesh.Order().Contains(dom) {
			return nil, symbol.NewDomainError(
				"spatial method registered for unknown domain %q", dom)
		}
	}
	return &Discretisation{mesh: cfg.Mesh, methods: methods}, nil
}

// Mesh returns the mesh the discretisation was built against.
func (d *Discretisation) Mesh() *mesh.Mesh { return d.mesh }

// Discretise compiles the model. The input model is not mutated; on any
// error no partial discretised model is returned.
func (d *Discretisation) Discretise(m Model) (*DiscretisedModel, error) {
	// canonical variable ordering: rhs variables then algebraic variables,
	// unpacking concatenation keys
	variables, err := unpackKeys(append(append([]Equation{}, m.RHS...), m.Algebraic...))
	if err != nil {
		return nil, err
	}
	if err := d.setVariableSlices(variables); err != nil {
		return nil, err
	}

	if err := d.processBoundaryConditions(m.BoundaryConditions); err != nil {
		return nil, err
	}

	dm := &DiscretisedModel{
		BoundaryConditions: d.bcs,
		YSlices:            d.ySlices,
		SliceOrder:         d.order,
		TotalSize:          d.totalSize,
	}

	dm.InitialConditions, err = d.processEquations(m.InitialConditions)
	if err != nil {
		return nil, errors.Wrap(err, "discretising initial conditions")
	}
	dm.ConcatenatedInitialConditions, err = d.concatenateInitialConditions(dm.InitialConditions)
	if err != nil {
		return nil, err
	}

	dm.RHS, err = d.processEquations(m.RHS)
	if err != nil {
		return nil, errors.Wrap(err, "discretising rhs")
	}
	dm.Algebraic, err = d.processEquations(m.Algebraic)
	if err != nil {
		return nil, errors.Wrap(err, "discretising algebraic equations")
	}
	dm.ConcatenatedRHS = concatenateEquations(dm.RHS)
	dm.ConcatenatedAlgebraic = concatenateEquations(dm.Algebraic)

	dm.Variables, err = d.processNamed(m.Variables)
	if err != nil {
		return nil, errors.Wrap(err, "discretising output variables")
	}

	dm.Events = make([]symbol.Symbol, len(m.Events))
	for i, ev := range m.Events {
		dm.Events[i], err = d.processSymbol(ev)
		if err != nil {
			return nil, errors.Wrapf(err, "discretising event %d", i)
		}
	}
	if len(dm.Events) > 0 {
		dm.ConcatenatedEvents = symbol.NewFlatConcatenation(dm.Events...)
	}

	if err := d.createMassMatrix(dm); err != nil {
		return nil, err
	}
	if err := d.checkModel(dm); err != nil {
		return nil, err
	}
	return dm, nil
}

// unpackKeys flattens equation keys to the state variables they declare,
// expanding concatenation keys in child order.
func unpackKeys(eqs []Equation) ([]*symbol.Variable, error) {
	var out []*symbol.Variable
	for _, eq := range eqs {
		switch key := eq.Key.(type) {
		case *symbol.Variable:
			out = append(out, key)
		case *symbol.Concatenation:
			for _, c := range key.Children() {
				v, ok := c.(*symbol.Variable)
				if !ok {
					return nil, symbol.NewModelError(
						"equation key concatenation may only contain variables, got %q", c.Name())
				}
				out = append(out, v)
			}
		default:
			return nil, symbol.NewModelError(
				"equation key must be a variable or a concatenation of variables, got %q", eq.Key.Name())
		}
	}
	return out, nil
}

// setVariableSlices assigns each variable a contiguous slice of the flat
// state vector with a single monotonically advancing cursor. The assignment
// depends only on the variable list and the mesh, so re-discretising the
// same model yields the identical slice map.
func (d *Discretisation) setVariableSlices(variables []*symbol.Variable) error {
	d.ySlices = make(map[uint64]symbol.Slice, len(variables))
	d.order = make([]VariableSlice, 0, len(variables))
	cursor := 0
	for _, v := range variables {
		if _, dup := d.ySlices[v.ID()]; dup {
			return symbol.NewModelError("variable %q declared by more than one equation", v.Name())
		}
		size := 1
		if len(v.Domain()) > 0 {
			for _, dom := range v.Domain() {
				if _, ok := d.methods[dom]; !ok {
					return symbol.NewDomainError(
						"no spatial method registered for domain %q of variable %q", dom, v.Name())
				}
			}
			var err error
			size, err = d.mesh.BroadcastSize(v.Domain())
			if err != nil {
				return err
			}
		}
		sl := symbol.Slice{Start: cursor, Stop: cursor + size}
		d.ySlices[v.ID()] = sl
		d.order = append(d.order, VariableSlice{Variable: v, Slice: sl})
		cursor += size
	}
	d.totalSize = cursor
	return nil
}

// processBoundaryConditions discretises condition values, keyed by the
// structural identity of the equation key.
func (d *Discretisation) processBoundaryConditions(bcs []VariableBCs) error {
	d.bcs = make(BCMap, len(bcs))
	for _, vb := range bcs {
		conds := make(map[symbol.Side]BoundaryCondition, len(vb.Conditions))
		for side, bc := range vb.Conditions {
			value, err := d.processSymbol(bc.Value)
			if err != nil {
				return errors.Wrapf(err, "discretising %s boundary condition of %q", side, vb.Key.Name())
			}
			conds[side] = BoundaryCondition{Value: value, Kind: bc.Kind}
		}
		d.bcs[vb.Key.ID()] = conds
	}
	return nil
}

// processEquations discretises a keyed equation list. A number-valued
// equation for a domain variable is broadcast to the variable's domain
// first, so its discretised shape matches the variable's.
func (d *Discretisation) processEquations(eqs []Equation) ([]Equation, error) {
	out := make([]Equation, len(eqs))
	for i, eq := range eqs {
		eqn := eq.Eqn
		if symbol.EvaluatesToNumber(eqn) {
			domain := eq.Key.Domain()
			if len(domain) == 0 {
				fb, err := symbol.NewFlatBroadcast(eqn, nil, nil)
				if err != nil {
					return nil, err
				}
				eqn = fb
			} else {
				method, err := d.method(domain[0])
				if err != nil {
					return nil, err
				}
				eqn, err = method.Broadcast(eqn, domain)
				if err != nil {
					return nil, err
				}
			}
		}
		processed, err := d.processSymbol(eqn)
		if err != nil {
			return nil, errors.Wrapf(err, "equation for %q", eq.Key.Name())
		}
		// keys are deliberately left undiscretised
		out[i] = Equation{Key: eq.Key, Eqn: processed}
	}
	return out, nil
}

func (d *Discretisation) processNamed(vars []NamedExpression) ([]NamedExpression, error) {
	out := make([]NamedExpression, len(vars))
	for i, nv := range vars {
		processed, err := d.processSymbol(nv.Expr)
		if err != nil {
			return nil, errors.Wrapf(err, "variable %q", nv.Name)
		}
		out[i] = NamedExpression{Name: nv.Name, Expr: processed}
	}
	return out, nil
}

// processSymbol is the generic rewrite rule: one dispatch per node kind.
func (d *Discretisation) processSymbol(s symbol.Symbol) (symbol.Symbol, error) {
	switch n := s.(type) {
	case *symbol.Gradient:
		child := n.Child()
		discChild, err := d.processSymbol(child)
		if err != nil {
			return nil, err
		}
		method, err := d.method(child.Domain()[0])
		if err != nil {
			return nil, err
		}
		return method.Gradient(child, discChild, d.bcs)

	case *symbol.Divergence:
		child := n.Child()
		discChild, err := d.processSymbol(child)
		if err != nil {
			return nil, err
		}
		method, err := d.method(child.Domain()[0])
		if err != nil {
			return nil, err
		}
		return method.Divergence(child, discChild, d.bcs)

	case *symbol.Integral:
		child := n.Child()
		discChild, err := d.processSymbol(child)
		if err != nil {
			return nil, err
		}
		method, err := d.method(child.Domain()[0])
		if err != nil {
			return nil, err
		}
		return method.Integral(child.Domain(), child, discChild)

	case *symbol.IndefiniteIntegral:
		child := n.Child()
		discChild, err := d.processSymbol(child)
		if err != nil {
			return nil, err
		}
		method, err := d.method(child.Domain()[0])
		if err != nil {
			return nil, err
		}
		return method.IndefiniteIntegral(child.Domain(), child, discChild)

	case *symbol.BoundaryValue:
		child := n.Child()
		discChild, err := d.processSymbol(child)
		if err != nil {
			return nil, err
		}
		method, err := d.method(child.Domain()[0])
		if err != nil {
			return nil, err
		}
		return method.BoundaryValue(child, discChild, n.Side())

	case *symbol.Broadcast:
		discChild, err := d.processSymbol(n.Child())
		if err != nil {
			return nil, err
		}
		if len(n.Target()) == 0 {
			return symbol.NewFlatBroadcast(discChild, nil, nil)
		}
		method, err := d.method(n.Target()[0])
		if err != nil {
			return nil, err
		}
		return method.Broadcast(discChild, n.Target())

	case *symbol.BinaryOp:
		return d.processBinary(n)

	case *symbol.Negate:
		child, err := d.processSymbol(n.Child())
		if err != nil {
			return nil, err
		}
		return symbol.NewNegate(child), nil

	case *symbol.AbsoluteValue:
		child, err := d.processSymbol(n.Child())
		if err != nil {
			return nil, err
		}
		return symbol.NewAbsoluteValue(child), nil

	case *symbol.Function:
		child, err := d.processSymbol(n.Child())
		if err != nil {
			return nil, err
		}
		return n.WithChild(child), nil

	case *symbol.Variable:
		sl, ok := d.ySlices[n.ID()]
		if !ok {
			// not user-recoverable: the variable was never declared by an
			// rhs or algebraic equation
			panic(fmt.Sprintf("disc: variable %q has no state slice", n.Name()))
		}
		return symbol.NewStateVector(sl, n.Domain()...), nil

	case *symbol.SpatialVariable:
		method, err := d.method(n.Domain()[0])
		if err != nil {
			return nil, err
		}
		return method.SpatialVariable(n)

	case *symbol.Concatenation:
		children := n.Children()
		newChildren := make([]symbol.Symbol, len(children))
		for i, c := range children {
			nc, err := d.processSymbol(c)
			if err != nil {
				return nil, err
			}
			newChildren[i] = nc
		}
		sizes, err := d.mesh.ConcatenationSizes(n.Domain())
		if err != nil {
			return nil, err
		}
		return symbol.NewDomainConcatenation(newChildren, d.mesh.Order(), sizes)

	case *symbol.FlatConcatenation:
		children := n.Children()
		newChildren := make([]symbol.Symbol, len(children))
		for i, c := range children {
			nc, err := d.processSymbol(c)
			if err != nil {
				return nil, err
			}
			newChildren[i] = nc
		}
		return symbol.NewFlatConcatenation(newChildren...), nil

	case *symbol.FlatBroadcast:
		child, err := d.processSymbol(n.Child())
		if err != nil {
			return nil, err
		}
		return n.WithChild(child), nil

	default:
		if len(s.Children()) == 0 {
			return s.NewCopy(), nil
		}
		panic(fmt.Sprintf("disc: no rewrite rule for node kind %T", s))
	}
}

// processBinary rewrites both children, then averages the gradient-free side
// onto face locations when exactly one side is a pure gradient, so the
// discretised shapes agree at the point where they combine.
func (d *Discretisation) processBinary(b *symbol.BinaryOp) (symbol.Symbol, error) {
	left, right := b.Left(), b.Right()
	newLeft, err := d.processSymbol(left)
	if err != nil {
		return nil, err
	}
	newRight, err := d.processSymbol(right)
	if err != nil {
		return nil, err
	}

	leftGrad := symbol.GradientNotDivergence(left)
	rightGrad := symbol.GradientNotDivergence(right)
	if leftGrad != rightGrad && len(b.Domain()) > 0 {
		method, err := d.method(b.Domain()[0])
		if err != nil {
			return nil, err
		}
		if leftGrad {
			el, er := ghostCells(newLeft)
			newRight, err = method.ComputeDiffusivity(newRight, el, er)
		} else {
			el, er := ghostCells(newRight)
			newLeft, err = method.ComputeDiffusivity(newLeft, el, er)
		}
		if err != nil {
			return nil, err
		}
	}
	return symbol.NewBinaryOp(b.Kind(), newLeft, newRight)
}

// ghostCells reports whether any node in the discretised tree introduced a
// ghost cell on either side.
func ghostCells(s symbol.Symbol) (left, right bool) {
	for _, n := range symbol.PreOrder(s) {
		left = left || n.HasLeftGhostCell()
		right = right || n.HasRightGhostCell()
	}
	return left, right
}

func (d *Discretisation) method(domain string) (SpatialMethod, error) {
	m, ok := d.methods[domain]
	if !ok {
		return nil, symbol.NewDomainError("no spatial method registered for domain %q", domain)
	}
	return m, nil
}

// concatenateEquations stacks discretised equations in list order. Returns
// nil for an empty list.
func concatenateEquations(eqs []Equation) symbol.Symbol {
	if len(eqs) == 0 {
		return nil
	}
	parts := make([]symbol.Symbol, len(eqs))
	for i, eq := range eqs {
		parts[i] = eq.Eqn
	}
	return symbol.NewFlatConcatenation(parts...)
}

// concatenateInitialConditions orders the discretised initial conditions by
// state slice and evaluates them at t=0 with no state. The result must be a
// concrete numeric vector covering the whole state.
func (d *Discretisation) concatenateInitialConditions(ics []Equation) ([]float64, error) {
	if len(ics) == 0 && d.totalSize == 0 {
		return nil, nil
	}
	supplied, err := unpackKeys(ics)
	if err != nil {
		return nil, err
	}
	if !d.coversSliceMap(supplied) {
		names := make([]string, len(ics))
		for i, eq := range ics {
			names[i] = eq.Key.Name()
		}
		return nil, symbol.NewModelError(
			"initial conditions are insufficient: only provided for %v", names)
	}

	// order equations by the slice of their (first) variable
	type entry struct {
		start int
		eqn   symbol.Symbol
	}
	entries := make([]entry, len(ics))
	for i, eq := range ics {
		vars, err := unpackKeys([]Equation{eq})
		if err != nil {
			return nil, err
		}
		entries[i] = entry{start: d.ySlices[vars[0].ID()].Start, eqn: eq.Eqn}
	}
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].start > entries[j].start; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
	parts := make([]symbol.Symbol, len(entries))
	for i, e := range entries {
		parts[i] = e.eqn
	}

	y0, err := symbol.EvaluateColumn(symbol.NewFlatConcatenation(parts...), 0, nil, nil)
	if err != nil {
		return nil, symbol.NewModelError(
			"initial conditions must evaluate to a concrete numeric vector: %v", err)
	}
	return y0, nil
}

func (d *Discretisation) coversSliceMap(supplied []*symbol.Variable) bool {
	if len(supplied) != len(d.ySlices) {
		return false
	}
	for _, v := range supplied {
		if _, ok := d.ySlices[v.ID()]; !ok {
			return false
		}
	}
	return true
}

// createMassMatrix assembles the block-diagonal mass matrix: one strategy
// block per rhs variable in slice order, then a zero block sized to the
// algebraic equations.
func (d *Discretisation) createMassMatrix(dm *DiscretisedModel) error {
	rhsVars, err := unpackKeys(dm.RHS)
	if err != nil {
		return err
	}
	var blocks []*symbol.Matrix
	rhsSize := 0
	for _, v := range rhsVars {
		if len(v.Domain()) == 0 {
			one := sparse.NewDOK(1, 1)
			one.Set(0, 0, 1)
			blocks = append(blocks, symbol.NewMatrix(one.ToCSR()))
			rhsSize++
			continue
		}
		method, err := d.method(v.Domain()[0])
		if err != nil {
			return err
		}
		m, err := method.MassMatrix(v, d.bcs)
		if err != nil {
			return err
		}
		r, _ := m.Entries().Dims()
		blocks = append(blocks, m)
		rhsSize += r
	}

	algSize := 0
	if dm.ConcatenatedAlgebraic != nil {
		algSize, err = symbol.Rows(dm.ConcatenatedAlgebraic, 0, dm.ConcatenatedInitialConditions)
		if err != nil {
			return symbol.NewModelError("cannot size the algebraic zero block: %v", err)
		}
	}

	total := rhsSize + algSize
	dok := sparse.NewDOK(total, total)
	offset := 0
	for _, b := range blocks {
		entries := b.Entries()
		r, c := entries.Dims()
		if nz, ok := entries.(interface {
			DoNonZero(fn func(i, j int, v float64))
		}); ok {
			nz.DoNonZero(func(i, j int, v float64) {
				dok.Set(offset+i, offset+j, v)
			})
		} else {
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					if v := entries.At(i, j); v != 0 {
						dok.Set(offset+i, offset+j, v)
					}
				}
			}
		}
		offset += r
	}
	// rows [rhsSize, total) stay zero for the algebraic equations
	dm.MassMatrix = dok.ToCSR()
	return nil
}

// checkModel validates the discretised model's internal shape consistency,
// collecting every mismatch before failing.
func (d *Discretisation) checkModel(dm *DiscretisedModel) error {
	var errs error
	y0 := dm.ConcatenatedInitialConditions

	if len(y0) != dm.TotalSize {
		errs = multierr.Append(errs, symbol.NewModelError(
			"concatenated initial conditions have length %d, state has length %d",
			len(y0), dm.TotalSize))
	}

	icByKey := make(map[uint64]symbol.Symbol, len(dm.InitialConditions))
	for _, eq := range dm.InitialConditions {
		icByKey[eq.Key.ID()] = eq.Eqn
	}
	for _, eq := range dm.RHS {
		ic, ok := icByKey[eq.Key.ID()]
		if !ok {
			continue // coverage was already checked against the slice map
		}
		rhsRows, err := symbol.Rows(eq.Eqn, 0, y0)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		icRows, err := symbol.Rows(ic, 0, nil)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if rhsRows != icRows {
			errs = multierr.Append(errs, symbol.NewModelError(
				"rhs and initial condition of %q must have the same shape after discretisation: rhs is (%d, 1), initial condition is (%d, 1)",
				eq.Key.Name(), rhsRows, icRows))
		}
	}

	rhsRows := 0
	if dm.ConcatenatedRHS != nil {
		r, err := symbol.Rows(dm.ConcatenatedRHS, 0, y0)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			rhsRows = r
		}
	}
	algRows := 0
	if dm.ConcatenatedAlgebraic != nil {
		r, err := symbol.Rows(dm.ConcatenatedAlgebraic, 0, y0)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			algRows = r
		}
	}
	if rhsRows+algRows != len(y0) {
		errs = multierr.Append(errs, symbol.NewModelError(
			"concatenation of (rhs, algebraic) must match the initial conditions: rhs is (%d, 1), algebraic is (%d, 1), initial conditions have length %d",
			rhsRows, algRows, len(y0)))
	}

	// declared outputs corresponding 1:1 to a state variable must agree in
	// shape, unless the output is an evaluation-time broadcast
	outByName := make(map[string]symbol.Symbol, len(dm.Variables))
	for _, nv := range dm.Variables {
		outByName[nv.Name] = nv.Expr
	}
	for _, eq := range dm.RHS {
		v, ok := eq.Key.(*symbol.Variable)
		if !ok {
			continue
		}
		out, ok := outByName[v.Name()]
		if !ok {
			continue
		}
		if _, broadcast := out.(*symbol.FlatBroadcast); broadcast {
			continue
		}
		outRows, err := symbol.Rows(out, 0, y0)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		varRows, err := symbol.Rows(eq.Eqn, 0, y0)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if outRows != varRows {
			errs = multierr.Append(errs, symbol.NewModelError(
				"output %q and its rhs must have the same shape after discretisation: output is (%d, 1), rhs is (%d, 1)",
				v.Name(), outRows, varRows))
		}
	}
	return errs
}
