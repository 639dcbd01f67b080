package model

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/roach88/vecgrid/internal/ir"
)

// DefaultMaxCascade bounds how deep a chain of callback-triggered writes may
// grow before a write is refused.
const DefaultMaxCascade = 32

// SpaceOption configures a Space.
type SpaceOption func(*Space)

// WithClock sets the clock that stamps writes. Default: NewLogicalClock().
func WithClock(c Clock) SpaceOption {
	return func(s *Space) {
		s.clock = c
	}
}

// WithJournal sets the journal every committed write is appended to.
func WithJournal(j Journal) SpaceOption {
	return func(s *Space) {
		s.journal = j
	}
}

// WithMaxCascade sets the cascade limit. Zero or negative disables it.
func WithMaxCascade(n int) SpaceOption {
	return func(s *Space) {
		s.maxCascade = n
	}
}

// WithLogger sets the logger used for dropped notifications, journal
// failures and callback panics.
func WithLogger(l *slog.Logger) SpaceOption {
	return func(s *Space) {
		if l != nil {
			s.logger = l
		}
	}
}

// Space is the address space: a tree of objects and variables plus the
// affinity domains that deliver their notifications.
//
// Thread-safety: all methods are safe for concurrent use.
type Space struct {
	logger     *slog.Logger
	clock      Clock
	journal    Journal
	maxCascade int

	// tree guards every node's parent and every object's children.
	tree sync.RWMutex
	root *Object

	mu      sync.Mutex
	nodes   map[ir.NodeID]Node
	domains map[ir.AffinityID]*Domain

	ctx    context.Context
	cancel context.CancelFunc

	nextNodeID    atomic.Uint64
	nextSender    atomic.Uint64
	nextAffinity  atomic.Uint32
	nextRegID     atomic.Uint64
	registrations atomic.Int64
}

// NewSpace creates an empty address space with a root object.
func NewSpace(opts ...SpaceOption) *Space {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Space{
		logger:     slog.Default(),
		clock:      NewLogicalClock(),
		maxCascade: DefaultMaxCascade,
		nodes:      make(map[ir.NodeID]Node),
		domains:    make(map[ir.AffinityID]*Domain),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.root = s.NewObject("")
	return s
}

// Root returns the root object. Its children are the top-level nodes.
func (s *Space) Root() *Object { return s.root }

// MaxCascade returns the configured cascade limit.
func (s *Space) MaxCascade() int { return s.maxCascade }

// NewObject creates a detached object. Attach it with Object.Add.
func (s *Space) NewObject(name string) *Object {
	o := &Object{byName: make(map[string]Node)}
	s.initNode(&o.nodeBase, name)
	s.register(o)
	return o
}

// NewVariable creates a detached variable of the given kind.
// A nil initial value means the kind's zero value.
func (s *Space) NewVariable(name string, kind ir.Kind, initial ir.Value) (*Variable, error) {
	if kind == ir.KindInvalid {
		return nil, fmt.Errorf("new variable %s: invalid kind: %w", name, ErrTypeMismatch)
	}
	v := &Variable{kind: kind}
	s.initNode(&v.nodeBase, name)
	if initial == nil {
		initial = ir.Zero(kind)
	}
	if err := v.checkKind(initial); err != nil {
		return nil, err
	}
	if arr, ok := initial.(ir.Array); ok {
		initial = arr.Clone()
	}
	v.value = initial
	s.register(v)
	return v, nil
}

func (s *Space) initNode(b *nodeBase, name string) {
	b.id = ir.NodeID(s.nextNodeID.Add(1))
	b.name = name
	b.space = s
}

func (s *Space) register(n Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n.ID()] = n
}

// NodeByID returns a live node by id.
func (s *Space) NodeByID(id ir.NodeID) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	return n, ok
}

// Resolve walks a "/"-separated browse path from the root.
func (s *Space) Resolve(path string) (Node, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return s.root, nil
	}

	s.tree.RLock()
	defer s.tree.RUnlock()

	var cur Node = s.root
	for _, part := range strings.Split(path, "/") {
		obj, ok := cur.(*Object)
		if !ok {
			return nil, fmt.Errorf("resolve %s: %s: %w", path, cur.Name(), ErrNotObject)
		}
		next, ok := obj.byName[part]
		if !ok {
			return nil, fmt.Errorf("resolve %s: %w", path, ErrNotFound)
		}
		cur = next
	}
	return cur, nil
}

// ResolveVariable resolves path and requires a variable.
func (s *Space) ResolveVariable(path string) (*Variable, error) {
	n, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	v, ok := n.(*Variable)
	if !ok {
		return nil, fmt.Errorf("resolve %s: %w", path, ErrNotVariable)
	}
	return v, nil
}

// AssignSender returns a fresh, non-zero sender identity.
func (s *Space) AssignSender() ir.SenderID {
	return ir.SenderID(s.nextSender.Add(1))
}

// AssignAffinity creates a new affinity domain with its own delivery
// goroutine. Terminate it when done.
func (s *Space) AssignAffinity() *Domain {
	id := ir.AffinityID(s.nextAffinity.Add(1))
	d := newDomain(s.ctx, s, id)

	s.mu.Lock()
	s.domains[id] = d
	s.mu.Unlock()
	return d
}

// Domains returns the number of live domains.
func (s *Space) Domains() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.domains)
}

func (s *Space) forgetDomain(d *Domain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.domains, d.id)
}

// Registrations returns the number of active registrations in the space.
func (s *Space) Registrations() int {
	return int(s.registrations.Load())
}

// deleteNode deletes n and its subtree, then detaches it from its parent.
func (s *Space) deleteNode(n Node) {
	if !n.base().deleted.CompareAndSwap(false, true) {
		return
	}

	var doomed []Node
	s.tree.Lock()
	collectSubtreeLocked(n, &doomed)
	if p := n.base().parent; p != nil {
		p.detachLocked(n)
	}
	s.tree.Unlock()

	s.mu.Lock()
	for _, d := range doomed {
		delete(s.nodes, d.ID())
	}
	s.mu.Unlock()

	for _, d := range doomed {
		d.base().deleted.Store(true)
		if v, ok := d.(*Variable); ok {
			v.closeRegistrations()
		}
	}
}

func collectSubtreeLocked(n Node, out *[]Node) {
	*out = append(*out, n)
	if o, ok := n.(*Object); ok {
		for _, c := range o.children {
			collectSubtreeLocked(c, out)
		}
	}
}

// Settle blocks until every domain is idle at the same time, so that
// cascades spanning several domains have run to completion.
func (s *Space) Settle(ctx context.Context) error {
	for {
		s.mu.Lock()
		domains := make([]*Domain, 0, len(s.domains))
		for _, d := range s.domains {
			domains = append(domains, d)
		}
		s.mu.Unlock()

		for _, d := range domains {
			if err := d.WaitIdle(ctx); err != nil {
				return err
			}
		}

		quiet := true
		for _, d := range domains {
			if d.Pending() > 0 {
				quiet = false
				break
			}
		}
		if quiet {
			return nil
		}
	}
}

// Close terminates every domain and waits for their goroutines to exit.
func (s *Space) Close() {
	s.mu.Lock()
	domains := make([]*Domain, 0, len(s.domains))
	for _, d := range s.domains {
		domains = append(domains, d)
	}
	s.mu.Unlock()

	for _, d := range domains {
		d.Terminate()
	}
	s.cancel()
	for _, d := range domains {
		<-d.Done()
	}
}
