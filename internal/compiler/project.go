package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/vecgrid/internal/ir"
)

// CompileProject parses a CUE project value into an ir.Project.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is the root of the project, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`variables: VectorValue: { type: "int", value: [1, 2] }`)
//	project, err := CompileProject(v)
func CompileProject(v cue.Value) (*ir.Project, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	project := &ir.Project{
		Variables: []ir.VariableSpec{},
		Editors:   []ir.EditorSpec{},
	}

	varsVal := v.LookupPath(cue.ParsePath("variables"))
	if varsVal.Exists() {
		iter, err := varsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			spec, err := compileVariable(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			project.Variables = append(project.Variables, spec)
		}
	}

	editorsVal := v.LookupPath(cue.ParsePath("editors"))
	if editorsVal.Exists() {
		iter, err := editorsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			spec, err := compileEditor(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			project.Editors = append(project.Editors, spec)
		}
	}

	if len(project.Variables) == 0 {
		return nil, &CompileError{
			Field:   "variables",
			Message: "at least one variable is required",
			Pos:     v.Pos(),
		}
	}

	return project, nil
}

// compileVariable parses one entry of the variables struct.
//
//	VectorValue: { type: "int", value: [1, 2, 3] }
//	Empty:       { type: "int", array: true }
func compileVariable(path string, v cue.Value) (ir.VariableSpec, error) {
	spec := ir.VariableSpec{Path: path}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return spec, &CompileError{
			Field:   "variables." + path + ".type",
			Message: "type is required",
			Pos:     v.Pos(),
		}
	}
	typeName, err := typeVal.String()
	if err != nil {
		return spec, formatCUEError(err)
	}
	spec.Kind, err = ir.ParseKind(typeName)
	if err != nil {
		return spec, &CompileError{
			Field:   "variables." + path + ".type",
			Message: err.Error(),
			Pos:     typeVal.Pos(),
		}
	}

	valueVal := v.LookupPath(cue.ParsePath("value"))
	if valueVal.Exists() {
		raw, err := decodeValue(valueVal)
		if err != nil {
			return spec, err
		}
		spec.Value, err = ir.FromAny(spec.Kind, raw)
		if err != nil {
			return spec, &CompileError{
				Field:   "variables." + path + ".value",
				Message: err.Error(),
				Pos:     valueVal.Pos(),
			}
		}
	}

	arrayVal := v.LookupPath(cue.ParsePath("array"))
	if arrayVal.Exists() {
		isArray, err := arrayVal.Bool()
		if err != nil {
			return spec, formatCUEError(err)
		}
		switch {
		case isArray && spec.Value == nil:
			spec.Value = ir.NewArray(spec.Kind)
		case isArray != ir.IsArray(spec.Value):
			return spec, &CompileError{
				Field:   "variables." + path + ".array",
				Message: fmt.Sprintf("array: %t contradicts the declared value", isArray),
				Pos:     arrayVal.Pos(),
			}
		}
	}

	return spec, nil
}

// compileEditor parses one entry of the editors struct.
//
//	Main: { array: "VectorValue", grid: "GridModel" }
func compileEditor(name string, v cue.Value) (ir.EditorSpec, error) {
	spec := ir.EditorSpec{Name: name}

	for _, f := range []struct {
		label string
		dst   *string
	}{
		{"array", &spec.Array},
		{"grid", &spec.Grid},
	} {
		fv := v.LookupPath(cue.ParsePath(f.label))
		if !fv.Exists() {
			return spec, &CompileError{
				Field:   "editors." + name + "." + f.label,
				Message: f.label + " is required",
				Pos:     v.Pos(),
			}
		}
		s, err := fv.String()
		if err != nil {
			return spec, formatCUEError(err)
		}
		*f.dst = s
	}

	return spec, nil
}

// decodeValue converts a concrete CUE value into plain Go values: int64,
// float64, string, bool, []any and map[string]any.
func decodeValue(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return b, nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return n, nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return f, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return s, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		list := []any{}
		for iter.Next() {
			item, err := decodeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		return list, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		m := map[string]any{}
		for iter.Next() {
			item, err := decodeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			m[iter.Label()] = item
		}
		return m, nil
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
