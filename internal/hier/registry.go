package hier

import (
	"errors"
	"fmt"
	"strings"

	"strictparent/internal/source"
)

// DefaultRootName is the name of the implicit root class.
const DefaultRootName = "object"

// DefaultRootMembers are the methods every class inherits from the implicit root.
var DefaultRootMembers = []string{
	"__init__", "__new__", "__del__",
	"__repr__", "__str__", "__format__", "__bytes__",
	"__eq__", "__ne__", "__lt__", "__le__", "__gt__", "__ge__", "__hash__",
	"__getattribute__", "__setattr__", "__delattr__", "__dir__",
	"__init_subclass__", "__subclasshook__",
	"__reduce__", "__reduce_ex__", "__sizeof__", "__getstate__",
}

// State is the lifecycle state of a class name inside a Registry.
type State uint8

const (
	StateUnknown State = iota
	StateDeclaring
	StateValidating
	StateValid
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateDeclaring:
		return "declaring"
	case StateValidating:
		return "validating"
	case StateValid:
		return "valid"
	case StateRejected:
		return "rejected"
	}
	return "unknown"
}

// ErrDerive matches every *DeriveError via errors.Is.
var ErrDerive = errors.New("cannot derive class")

// DeriveProblem classifies construction failures that happen before validation.
type DeriveProblem uint8

const (
	ProblemDuplicateClass DeriveProblem = iota + 1
	ProblemDuplicateBase
	ProblemNilBase
	ProblemInconsistentMRO
	ProblemEmptyName
)

// DeriveError reports a class that cannot even be laid out.
type DeriveError struct {
	Problem DeriveProblem
	Class   string
	Detail  string
}

func (e *DeriveError) Error() string {
	switch e.Problem {
	case ProblemDuplicateClass:
		return fmt.Sprintf("class %s is already defined", e.Class)
	case ProblemDuplicateBase:
		return fmt.Sprintf("duplicate base class %s in %s", e.Detail, e.Class)
	case ProblemNilBase:
		return fmt.Sprintf("class %s lists a missing base", e.Class)
	case ProblemInconsistentMRO:
		return fmt.Sprintf("cannot create a consistent ancestry for %s (bases %s)", e.Class, e.Detail)
	case ProblemEmptyName:
		return "class name is empty"
	}
	return fmt.Sprintf("cannot derive %s", e.Class)
}

func (e *DeriveError) Is(target error) bool {
	return target == ErrDerive
}

// Options configures a Registry.
type Options struct {
	Policy Policy
	// RootName overrides DefaultRootName.
	RootName string
	// RootMembers overrides DefaultRootMembers when non-nil.
	RootMembers []string
}

// Decl is a class body ready to be derived.
type Decl struct {
	Name    string
	Span    source.Span
	Bases   []*Class
	Members []Entry
}

// Registry owns a marker store and every class constructed through it.
// It is not safe for concurrent use.
type Registry struct {
	store    *Store
	policy   Policy
	root     *Class
	classes  map[string]*Class
	order    []*Class
	states   map[string]State
	rejected map[string]error
}

// NewRegistry creates a registry with its implicit root class.
func NewRegistry(opts Options) *Registry {
	if opts.Policy.Baseline == nil {
		opts.Policy.Baseline = DefaultBaseline
	}
	rootName := opts.RootName
	if rootName == "" {
		rootName = DefaultRootName
	}
	rootMembers := opts.RootMembers
	if rootMembers == nil {
		rootMembers = DefaultRootMembers
	}
	own := make([]Entry, 0, len(rootMembers))
	for _, n := range rootMembers {
		own = append(own, NewMember(n, KindMethod))
	}
	root := newClass(rootName, source.Span{}, nil, own)
	root.root = true
	root.opaque = true
	root.mro = []*Class{root}

	r := &Registry{
		store:    NewStore(),
		policy:   opts.Policy,
		root:     root,
		classes:  map[string]*Class{rootName: root},
		states:   map[string]State{rootName: StateValid},
		rejected: make(map[string]error),
	}
	return r
}

// Store returns the marker table shared by all classes of the registry.
func (r *Registry) Store() *Store { return r.store }

// Root returns the implicit root class.
func (r *Registry) Root() *Class { return r.root }

// Policy returns the validation policy.
func (r *Registry) Policy() Policy { return r.policy }

// Lookup returns a valid class by name.
func (r *Registry) Lookup(name string) (*Class, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// State returns the lifecycle state of name.
func (r *Registry) State(name string) State {
	return r.states[name]
}

// Rejection returns the error that rejected name, if any.
func (r *Registry) Rejection(name string) (error, bool) {
	err, ok := r.rejected[name]
	return err, ok
}

// Classes returns valid classes in registration order, without the root.
func (r *Registry) Classes() []*Class {
	return append([]*Class(nil), r.order...)
}

// Declare starts a class body. Members are created and annotated against
// the registry store, then passed to Derive.
func (r *Registry) Declare(name string) {
	name = strings.TrimSpace(name)
	if _, taken := r.states[name]; !taken {
		r.states[name] = StateDeclaring
	}
}

// Opaque registers an externally supplied base type without validation.
func (r *Registry) Opaque(name string, span source.Span, bases []*Class, members ...Entry) (*Class, error) {
	c, err := r.layout(Decl{Name: name, Span: span, Bases: bases, Members: members})
	if err != nil {
		r.reject(strings.TrimSpace(name), err)
		return nil, err
	}
	c.opaque = true
	r.accept(c)
	return c, nil
}

// Derive lays out, validates and registers a class.
// On failure the class never becomes visible and its name is marked rejected.
// A class without direct bases is inspected against the implicit root, so
// override claims on root members are justified and nothing else is.
func (r *Registry) Derive(decl Decl) (*Class, error) {
	c, err := r.layout(decl)
	if err != nil {
		r.reject(strings.TrimSpace(decl.Name), err)
		return nil, err
	}

	r.states[c.name] = StateValidating
	bases := c.bases
	if len(bases) == 0 {
		bases = []*Class{r.root}
	}
	in := Inspect(bases, c.own, r.policy.Baseline)
	if err := Validate(c.name, in, r.store, r.policy); err != nil {
		r.reject(c.name, err)
		return nil, err
	}
	r.accept(c)
	return c, nil
}

func (r *Registry) layout(decl Decl) (*Class, error) {
	name := strings.TrimSpace(decl.Name)
	if name == "" {
		return nil, &DeriveError{Problem: ProblemEmptyName}
	}
	switch r.states[name] {
	case StateValid, StateRejected, StateValidating:
		return nil, &DeriveError{Problem: ProblemDuplicateClass, Class: name}
	}
	r.states[name] = StateDeclaring

	seen := make(map[*Class]bool, len(decl.Bases))
	for _, b := range decl.Bases {
		if b == nil {
			return nil, &DeriveError{Problem: ProblemNilBase, Class: name}
		}
		if seen[b] {
			return nil, &DeriveError{Problem: ProblemDuplicateBase, Class: name, Detail: b.name}
		}
		seen[b] = true
	}

	c := newClass(name, decl.Span, decl.Bases, decl.Members)
	mro, conflict := linearize(c, c.bases, r.root)
	if mro == nil {
		return nil, &DeriveError{Problem: ProblemInconsistentMRO, Class: name, Detail: strings.Join(conflict, ", ")}
	}
	c.mro = mro
	return c, nil
}

func (r *Registry) accept(c *Class) {
	r.classes[c.name] = c
	r.order = append(r.order, c)
	r.states[c.name] = StateValid
}

func (r *Registry) reject(name string, err error) {
	if name == "" {
		return
	}
	// a duplicate must not evict the accepted class
	if r.states[name] == StateValid {
		return
	}
	if _, ok := r.rejected[name]; ok {
		return
	}
	r.states[name] = StateRejected
	r.rejected[name] = err
}
