package hier

import (
	"strictparent/internal/source"
)

// Class is a fully constructed, immutable class definition.
// Values are only produced by Registry (Derive, Opaque or the implicit root).
type Class struct {
	name   string
	span   source.Span
	bases  []*Class
	own    []Entry
	index  map[string]int
	mro    []*Class
	opaque bool
	root   bool
}

func newClass(name string, span source.Span, bases []*Class, own []Entry) *Class {
	c := &Class{
		name:  name,
		span:  span,
		bases: append([]*Class(nil), bases...),
		index: make(map[string]int, len(own)),
	}
	// A redeclared member replaces the earlier one in place.
	for _, e := range own {
		if e == nil {
			continue
		}
		if i, ok := c.index[e.Name()]; ok {
			c.own[i] = e
			continue
		}
		c.index[e.Name()] = len(c.own)
		c.own = append(c.own, e)
	}
	return c
}

func (c *Class) Name() string      { return c.name }
func (c *Class) Span() source.Span { return c.span }

// Bases returns the direct bases in declaration order.
func (c *Class) Bases() []*Class { return append([]*Class(nil), c.bases...) }

// Members returns own entries in declaration order.
func (c *Class) Members() []Entry { return append([]Entry(nil), c.own...) }

// Own returns the entry declared directly in this class body.
func (c *Class) Own(name string) (Entry, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.own[i], true
}

// MRO returns the linearized ancestry, starting with c itself.
func (c *Class) MRO() []*Class { return append([]*Class(nil), c.mro...) }

// Opaque reports whether the class was registered without validation.
func (c *Class) Opaque() bool { return c.opaque }

// IsRoot reports whether c is the registry's implicit root.
func (c *Class) IsRoot() bool { return c.root }

// Lookup resolves name through the full ancestry, nearest declaration first.
func (c *Class) Lookup(name string) (Entry, *Class, bool) {
	for _, k := range c.mro {
		if e, ok := k.Own(name); ok {
			return e, k, true
		}
	}
	return nil, nil, false
}

// IsSubclassOf reports whether other appears in c's ancestry.
func (c *Class) IsSubclassOf(other *Class) bool {
	for _, k := range c.mro {
		if k == other {
			return true
		}
	}
	return false
}

func (c *Class) String() string { return c.name }
