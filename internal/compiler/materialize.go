package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/vecgrid/internal/ir"
	"github.com/roach88/vecgrid/internal/model"
)

// Materialize seeds a space with the project's variables and creates one
// object per editor under the root. Intermediate objects along variable
// paths are created as needed. It returns the editor objects by name.
func Materialize(space *model.Space, p *ir.Project) (map[string]*model.Object, error) {
	for _, spec := range p.Variables {
		if err := materializeVariable(space, spec); err != nil {
			return nil, err
		}
	}

	owners := make(map[string]*model.Object, len(p.Editors))
	for _, e := range p.Editors {
		obj, err := ensureObject(space, e.Name)
		if err != nil {
			return nil, fmt.Errorf("editor %s: %w", e.Name, err)
		}
		owners[e.Name] = obj
	}
	return owners, nil
}

func materializeVariable(space *model.Space, spec ir.VariableSpec) error {
	path := strings.Trim(spec.Path, "/")
	dir, name := "", path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		dir, name = path[:i], path[i+1:]
	}
	if name == "" {
		return fmt.Errorf("variable %q: empty name", spec.Path)
	}

	parent, err := ensureObject(space, dir)
	if err != nil {
		return fmt.Errorf("variable %s: %w", spec.Path, err)
	}
	v, err := space.NewVariable(name, spec.Kind, spec.Value)
	if err != nil {
		return fmt.Errorf("variable %s: %w", spec.Path, err)
	}
	if err := parent.Add(v); err != nil {
		return fmt.Errorf("variable %s: %w", spec.Path, err)
	}
	return nil
}

// ensureObject resolves path, creating missing objects segment by segment.
func ensureObject(space *model.Space, path string) (*model.Object, error) {
	cur := space.Root()
	if strings.Trim(path, "/") == "" {
		return cur, nil
	}
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			return nil, fmt.Errorf("path %q has an empty segment", path)
		}
		child, ok := cur.Child(part)
		if !ok {
			obj := space.NewObject(part)
			if err := cur.Add(obj); err != nil {
				return nil, err
			}
			cur = obj
			continue
		}
		obj, isObj := child.(*model.Object)
		if !isObj {
			return nil, fmt.Errorf("%s: %w", child.Path(), model.ErrNotObject)
		}
		cur = obj
	}
	return cur, nil
}
