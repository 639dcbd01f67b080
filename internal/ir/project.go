package ir

// Project is the compiled form of a project directory: the variables to
// seed into an address space and the vector editors to start over them.
type Project struct {
	Variables []VariableSpec `json:"variables"`
	Editors   []EditorSpec   `json:"editors"`
}

// VariableSpec declares one variable. Path is relative to the space root
// and uses "/" separators; intermediate objects are created as needed.
type VariableSpec struct {
	Path  string `json:"path"`
	Kind  Kind   `json:"kind"`
	Value Value  `json:"-"` // nil means the kind's zero value
}

// EditorSpec binds a synchronization engine to an array variable and the
// reference slot that publishes its grid.
type EditorSpec struct {
	Name  string `json:"name"`
	Array string `json:"array"`
	Grid  string `json:"grid"`
}

// Editor returns the editor with the given name.
func (p *Project) Editor(name string) (EditorSpec, bool) {
	for _, e := range p.Editors {
		if e.Name == name {
			return e, true
		}
	}
	return EditorSpec{}, false
}
