package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/vecgrid/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Variable errors (E100-E109)
	ErrVariablePathEmpty   = "E100" // variable path is empty
	ErrVariablePathInvalid = "E101" // empty path segment
	ErrDuplicateVariable   = "E102" // same path declared twice
	ErrVariableValue       = "E103" // seed value does not fit the kind

	// Editor errors (E110-E119)
	ErrEditorNameInvalid  = "E110" // editor name is empty or has a path segment
	ErrDuplicateEditor    = "E111" // editor declared twice
	ErrMissingVariable    = "E112" // array variable not declared
	ErrNotAnArray         = "E113" // array variable holds a scalar
	ErrUnsupportedRank    = "E114" // array rank is not 1
	ErrUnsupportedType    = "E115" // element kind has no cell type
	ErrMissingGridSlot    = "E116" // grid slot not declared
	ErrInvalidGridSlot    = "E117" // grid slot is not a node reference
	ErrSharedGridSlot     = "E118" // two editors publish into one slot
	ErrEditorNameConflict = "E119" // editor object collides with a variable
)

// ValidationError represents a project validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled project without building an address space.
// Returns all errors found (does not fail-fast).
func Validate(p *ir.Project) []ValidationError {
	var errs []ValidationError

	vars := make(map[string]ir.VariableSpec, len(p.Variables))
	for _, v := range p.Variables {
		field := "variables." + v.Path
		path := strings.Trim(v.Path, "/")
		switch {
		case path == "":
			errs = append(errs, ValidationError{Field: field, Message: "path is empty", Code: ErrVariablePathEmpty})
			continue
		case strings.Contains(path, "//"):
			errs = append(errs, ValidationError{Field: field, Message: "path has an empty segment", Code: ErrVariablePathInvalid})
			continue
		}
		if _, dup := vars[path]; dup {
			errs = append(errs, ValidationError{Field: field, Message: "declared more than once", Code: ErrDuplicateVariable})
			continue
		}
		if arr, ok := v.Value.(ir.Array); ok {
			if err := arr.Validate(); err != nil {
				errs = append(errs, ValidationError{Field: field, Message: err.Error(), Code: ErrVariableValue})
			}
		}
		vars[path] = v
	}

	editors := make(map[string]bool, len(p.Editors))
	slots := make(map[string]string, len(p.Editors))
	for _, e := range p.Editors {
		errs = append(errs, validateEditor(e, vars, editors, slots)...)
	}

	return errs
}

func validateEditor(e ir.EditorSpec, vars map[string]ir.VariableSpec, editors map[string]bool, slots map[string]string) []ValidationError {
	var errs []ValidationError
	field := "editors." + e.Name

	if e.Name == "" || strings.Contains(e.Name, "/") {
		errs = append(errs, ValidationError{Field: field, Message: "editor name must be a single path segment", Code: ErrEditorNameInvalid})
	}
	if editors[e.Name] {
		errs = append(errs, ValidationError{Field: field, Message: "declared more than once", Code: ErrDuplicateEditor})
	}
	editors[e.Name] = true
	if _, clash := vars[e.Name]; clash {
		errs = append(errs, ValidationError{Field: field, Message: "editor object would replace variable " + e.Name, Code: ErrEditorNameConflict})
	}

	arrayPath := strings.Trim(e.Array, "/")
	if v, ok := vars[arrayPath]; !ok {
		errs = append(errs, ValidationError{Field: field + ".array", Message: fmt.Sprintf("variable %q is not declared", e.Array), Code: ErrMissingVariable})
	} else {
		arr, isArray := v.Value.(ir.Array)
		switch {
		case !isArray:
			errs = append(errs, ValidationError{Field: field + ".array", Message: fmt.Sprintf("variable %q holds a scalar", e.Array), Code: ErrNotAnArray})
		case arr.Rank() != 1:
			errs = append(errs, ValidationError{Field: field + ".array", Message: fmt.Sprintf("variable %q has rank %d, want 1", e.Array, arr.Rank()), Code: ErrUnsupportedRank})
		}
		if _, ok := ir.CellKind(v.Kind); !ok {
			errs = append(errs, ValidationError{Field: field + ".array", Message: fmt.Sprintf("element kind %s has no cell type", v.Kind), Code: ErrUnsupportedType})
		}
	}

	gridPath := strings.Trim(e.Grid, "/")
	if v, ok := vars[gridPath]; !ok {
		errs = append(errs, ValidationError{Field: field + ".grid", Message: fmt.Sprintf("variable %q is not declared", e.Grid), Code: ErrMissingGridSlot})
	} else if v.Kind != ir.KindNodeRef || ir.IsArray(v.Value) {
		errs = append(errs, ValidationError{Field: field + ".grid", Message: fmt.Sprintf("variable %q is not a node reference", e.Grid), Code: ErrInvalidGridSlot})
	}
	if other, taken := slots[gridPath]; taken {
		errs = append(errs, ValidationError{Field: field + ".grid", Message: fmt.Sprintf("slot %q is already used by editor %s", e.Grid, other), Code: ErrSharedGridSlot})
	} else {
		slots[gridPath] = e.Name
	}

	return errs
}
