package hier

import (
	"slices"
)

// Baseline is the set of bookkeeping names every class carries regardless of
// user code. Shadowing them never requires an override declaration.
type Baseline map[string]struct{}

// DefaultBaseline lists the bookkeeping names of a minimal class declaration.
var DefaultBaseline = NewBaseline("__module__", "__qualname__", "__doc__", "__dict__", "__weakref__")

// NewBaseline builds a baseline set.
func NewBaseline(names ...string) Baseline {
	b := make(Baseline, len(names))
	for _, n := range names {
		b[n] = struct{}{}
	}
	return b
}

// With returns a copy extended with extra names.
func (b Baseline) With(extra ...string) Baseline {
	out := make(Baseline, len(b)+len(extra))
	for n := range b {
		out[n] = struct{}{}
	}
	for _, n := range extra {
		out[n] = struct{}{}
	}
	return out
}

// Contains reports whether name is a baseline name.
func (b Baseline) Contains(name string) bool {
	_, ok := b[name]
	return ok
}

// Names returns the sorted baseline names.
func (b Baseline) Names() []string {
	out := make([]string, 0, len(b))
	for n := range b {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Inspector is the read-only view over a candidate class's direct bases.
type Inspector struct {
	bases     []*Class
	own       []Entry
	inventory map[string]Entry
	owners    map[string]*Class
	baseline  Baseline
}

// Inspect builds the two views used by validation: the merged inventory of
// members owned directly by the bases and the per-base inherited lookup.
func Inspect(bases []*Class, own []Entry, baseline Baseline) *Inspector {
	if baseline == nil {
		baseline = DefaultBaseline
	}
	in := &Inspector{
		bases:     bases,
		own:       own,
		inventory: make(map[string]Entry),
		owners:    make(map[string]*Class),
		baseline:  baseline,
	}
	// поздняя база перекрывает раннюю с тем же именем
	for _, b := range bases {
		if b == nil || b.root {
			// root members never count as declared by a base
			continue
		}
		for _, e := range b.own {
			in.inventory[e.Name()] = e
			in.owners[e.Name()] = b
		}
	}
	return in
}

// Bases returns the direct bases under inspection.
func (in *Inspector) Bases() []*Class { return in.bases }

// Candidates returns own entries that take part in validation, in declaration order.
func (in *Inspector) Candidates() []Entry {
	out := make([]Entry, 0, len(in.own))
	for _, e := range in.own {
		if e != nil && e.Kind().Validated() {
			out = append(out, e)
		}
	}
	return out
}

// OwnsDirectly reports whether some direct base declares name in its own body.
// It returns the base that wins the merge.
func (in *Inspector) OwnsDirectly(name string) (*Class, bool) {
	owner, ok := in.owners[name]
	return owner, ok
}

// Inventory returns the merged own-member mapping of the direct bases.
func (in *Inspector) Inventory() map[string]Entry {
	out := make(map[string]Entry, len(in.inventory))
	for k, v := range in.inventory {
		out[k] = v
	}
	return out
}

// InventoryNames returns the sorted names of the merged inventory.
func (in *Inspector) InventoryNames() []string {
	out := make([]string, 0, len(in.inventory))
	for n := range in.inventory {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// ResolveInBase walks base's full ancestry and returns the nearest
// declaration of name together with the class that declares it.
func (in *Inspector) ResolveInBase(base *Class, name string) (Entry, *Class, bool) {
	if base == nil {
		return nil, nil, false
	}
	return base.Lookup(name)
}

// IsBaseline reports whether name is a bookkeeping name.
func (in *Inspector) IsBaseline(name string) bool {
	return in.baseline.Contains(name)
}
