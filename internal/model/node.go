package model

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/roach88/vecgrid/internal/ir"
)

// Node is an object or a variable in the address space.
type Node interface {
	ID() ir.NodeID
	Name() string
	Parent() *Object
	Path() string
	Deleted() bool

	base() *nodeBase
}

// nodeBase holds the fields shared by objects and variables.
// parent is guarded by the space's tree lock.
type nodeBase struct {
	id      ir.NodeID
	name    string
	space   *Space
	parent  *Object
	deleted atomic.Bool
}

func (n *nodeBase) base() *nodeBase { return n }

// ID returns the node id.
func (n *nodeBase) ID() ir.NodeID { return n.id }

// Name returns the browse name.
func (n *nodeBase) Name() string { return n.name }

// Deleted reports whether the node has been deleted.
func (n *nodeBase) Deleted() bool { return n.deleted.Load() }

// Parent returns the parent object, or nil for the root and detached nodes.
func (n *nodeBase) Parent() *Object {
	n.space.tree.RLock()
	defer n.space.tree.RUnlock()
	return n.parent
}

// Path returns the "/"-separated browse path from the root. Detached nodes
// return their bare name.
func (n *nodeBase) Path() string {
	n.space.tree.RLock()
	defer n.space.tree.RUnlock()
	return n.pathLocked()
}

func (n *nodeBase) pathLocked() string {
	var parts []string
	for cur := n; cur != nil && cur.parent != nil; cur = &cur.parent.nodeBase {
		parts = append(parts, cur.name)
	}
	if len(parts) == 0 {
		return n.name
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// Object is a container of named, ordered child nodes.
type Object struct {
	nodeBase

	// children and byName are guarded by the space's tree lock.
	children []Node
	byName   map[string]Node
}

// Add attaches a detached node as the last child.
func (o *Object) Add(child Node) error {
	if o.Deleted() {
		return fmt.Errorf("add %s to %s: %w", child.Name(), o.name, ErrDeleted)
	}
	if child.Deleted() {
		return fmt.Errorf("add %s to %s: %w", child.Name(), o.name, ErrDeleted)
	}

	o.space.tree.Lock()
	defer o.space.tree.Unlock()

	cb := child.base()
	if cb.parent != nil || Node(o) == child {
		return fmt.Errorf("add %s to %s: %w", cb.name, o.name, ErrAttached)
	}
	if _, taken := o.byName[cb.name]; taken {
		return fmt.Errorf("add %s to %s: %w", cb.name, o.name, ErrDuplicateName)
	}

	o.children = append(o.children, child)
	o.byName[cb.name] = child
	cb.parent = o
	return nil
}

// Child returns the direct child with the given name.
func (o *Object) Child(name string) (Node, bool) {
	o.space.tree.RLock()
	defer o.space.tree.RUnlock()
	n, ok := o.byName[name]
	return n, ok
}

// Children returns the children in insertion order.
func (o *Object) Children() []Node {
	o.space.tree.RLock()
	defer o.space.tree.RUnlock()
	out := make([]Node, len(o.children))
	copy(out, o.children)
	return out
}

// Len returns the number of children.
func (o *Object) Len() int {
	o.space.tree.RLock()
	defer o.space.tree.RUnlock()
	return len(o.children)
}

// Delete deletes the node and its whole subtree. Every registration on a
// deleted variable is closed. Deleting twice is a no-op.
func (o *Object) Delete() {
	o.space.deleteNode(o)
}

// Delete deletes the variable and closes its registrations.
func (v *Variable) Delete() {
	v.space.deleteNode(v)
}

// detachLocked unlinks child from o. Caller holds the tree lock.
func (o *Object) detachLocked(child Node) {
	cb := child.base()
	for i, c := range o.children {
		if c == child {
			o.children = append(o.children[:i], o.children[i+1:]...)
			break
		}
	}
	delete(o.byName, cb.name)
	cb.parent = nil
}
