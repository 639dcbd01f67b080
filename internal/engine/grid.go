package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/vecgrid/internal/ir"
	"github.com/roach88/vecgrid/internal/model"
)

// Names of the nodes a grid creates.
const (
	GridName = "Grid"
	CellName = "Cell0"
)

// RowName returns the browse name of the row at index.
func RowName(index int) string {
	return fmt.Sprintf("Row%d", index)
}

// Grid is the shadow grid: one Row per array element, each holding a single
// observable cell. The Grid owns its rows and their cell registrations.
//
// A Grid is not safe for concurrent use; the engine serializes access.
type Grid struct {
	space    *model.Space
	object   *model.Object
	cellKind ir.Kind
	domain   *model.Domain
	observe  func(*Row) model.Callback
	metrics  *Metrics
	rows     []*Row
}

// Row mirrors one array element. Its index is its position in the grid.
type Row struct {
	index  int
	object *model.Object
	cell   *model.Variable
	reg    *model.Registration
}

// Index returns the row's ordinal.
func (r *Row) Index() int { return r.index }

// Cell returns the row's cell variable.
func (r *Row) Cell() *model.Variable { return r.cell }

// Object returns the row's node.
func (r *Row) Object() *model.Object { return r.object }

// newGrid creates an empty, detached grid for arrays of elem. Cell
// registrations are made in domain with the callback observe returns for
// each row.
func newGrid(space *model.Space, elem ir.Kind, domain *model.Domain, observe func(*Row) model.Callback, metrics *Metrics) (*Grid, error) {
	cellKind, ok := ir.CellKind(elem)
	if !ok {
		return nil, configError(ErrCodeUnsupportedType, "", "element kind %s has no grid cell type", elem)
	}
	return &Grid{
		space:    space,
		object:   space.NewObject(GridName),
		cellKind: cellKind,
		domain:   domain,
		observe:  observe,
		metrics:  metrics,
	}, nil
}

// ID returns the grid's node id, the value published into the grid slot.
func (g *Grid) ID() ir.NodeID { return g.object.ID() }

// Object returns the grid's node.
func (g *Grid) Object() *model.Object { return g.object }

// Len returns the number of rows.
func (g *Grid) Len() int { return len(g.rows) }

// Row returns the row at index.
func (g *Grid) Row(index int) (*Row, error) {
	if index < 0 || index >= len(g.rows) {
		return nil, &ShapeError{Index: index, Rows: len(g.rows)}
	}
	return g.rows[index], nil
}

// owns reports whether row is still the grid's row at its index.
func (g *Grid) owns(row *Row) bool {
	return row.index < len(g.rows) && g.rows[row.index] == row
}

// Values returns the cell values in row order.
func (g *Grid) Values() []ir.Value {
	out := make([]ir.Value, len(g.rows))
	for i, r := range g.rows {
		out[i] = r.cell.Value()
	}
	return out
}

// CreateRow builds an unattached row for src[index] and registers its
// cell. On failure nothing is left registered.
func (g *Grid) CreateRow(src ir.Array, index int) (*Row, error) {
	item, err := src.At(index)
	if err != nil {
		return nil, fmt.Errorf("create row %d: %w", index, err)
	}

	row := &Row{index: index, object: g.space.NewObject(RowName(index))}
	cell, err := g.space.NewVariable(CellName, g.cellKind, item)
	if err != nil {
		row.object.Delete()
		return nil, fmt.Errorf("create row %d: %w", index, err)
	}
	if err := row.object.Add(cell); err != nil {
		row.object.Delete()
		cell.Delete()
		return nil, fmt.Errorf("create row %d: %w", index, err)
	}
	row.cell = cell

	reg, err := cell.Observe(g.domain, g.observe(row))
	if err != nil {
		row.object.Delete()
		return nil, fmt.Errorf("create row %d: observe cell: %w", index, err)
	}
	row.reg = reg
	return row, nil
}

// append attaches a row created for the next index.
func (g *Grid) append(row *Row) error {
	if row.index != len(g.rows) {
		return fmt.Errorf("append row %d: grid has %d rows", row.index, len(g.rows))
	}
	if err := g.object.Add(row.object); err != nil {
		return fmt.Errorf("append row %d: %w", row.index, err)
	}
	g.rows = append(g.rows, row)
	g.metrics.rowAdded()
	return nil
}

// DeleteRow releases the row's cell registration and removes the row.
// Only the last row can be deleted, so shrinking always runs from the
// highest index down and no ordinal is ever held by two rows.
func (g *Grid) DeleteRow(row *Row) error {
	if len(g.rows) == 0 || g.rows[len(g.rows)-1] != row {
		return fmt.Errorf("delete row %d: not the last of %d rows", row.index, len(g.rows))
	}

	var err error
	if cerr := row.reg.Close(); cerr != nil && !errors.Is(cerr, model.ErrRegistrationClosed) {
		err = fmt.Errorf("delete row %d: %w", row.index, cerr)
	}
	row.object.Delete()

	g.rows[len(g.rows)-1] = nil
	g.rows = g.rows[:len(g.rows)-1]
	g.metrics.rowRemoved()
	return err
}

// resize grows or shrinks the grid to len(src) rows. New rows are appended
// in ascending order; surplus rows are deleted highest index first.
func (g *Grid) resize(src ir.Array) (added, removed int, err error) {
	target := src.Len()

	for len(g.rows) < target {
		row, err := g.CreateRow(src, len(g.rows))
		if err != nil {
			return added, removed, err
		}
		if err := g.append(row); err != nil {
			_ = row.reg.Close()
			row.object.Delete()
			return added, removed, err
		}
		added++
	}

	var errs []error
	for len(g.rows) > target {
		if err := g.DeleteRow(g.rows[len(g.rows)-1]); err != nil {
			errs = append(errs, err)
		}
		removed++
	}
	return added, removed, errors.Join(errs...)
}

// push writes every element of src into its row's cell, attributed to the
// sender carried by ctx. Call after resize.
func (g *Grid) push(ctx context.Context, src ir.Array) error {
	var errs []error
	for i, row := range g.rows {
		if i >= len(src.Items) {
			break
		}
		if err := row.cell.Set(ctx, src.Items[i]); err != nil {
			errs = append(errs, fmt.Errorf("push row %d: %w", i, err))
			continue
		}
		g.metrics.cellWrite()
	}
	return errors.Join(errs...)
}

// destroy releases every cell registration, then deletes the grid subtree.
// Every release is attempted even if one fails.
func (g *Grid) destroy() error {
	var errs []error
	for i := len(g.rows) - 1; i >= 0; i-- {
		row := g.rows[i]
		if err := row.reg.Close(); err != nil && !errors.Is(err, model.ErrRegistrationClosed) {
			errs = append(errs, fmt.Errorf("release row %d: %w", i, err))
		}
		g.metrics.rowRemoved()
	}
	g.rows = nil
	g.object.Delete()
	return errors.Join(errs...)
}
