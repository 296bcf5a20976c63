package hier

import (
	"errors"
	"fmt"
	"strings"
)

// Marker is a single intent flag attached to an entry.
type Marker uint8

const (
	MarkerFinalized Marker = 1 << iota
	MarkerDeclaredOverride
	MarkerForcedOverride
)

func (m Marker) String() string {
	switch m {
	case MarkerFinalized:
		return "final"
	case MarkerDeclaredOverride:
		return "overrides"
	case MarkerForcedOverride:
		return "force_override"
	}
	return "unknown"
}

// ParseMarker accepts the marker names used in manifests.
func ParseMarker(s string) (Marker, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "final", "finalized":
		return MarkerFinalized, true
	case "overrides", "override":
		return MarkerDeclaredOverride, true
	case "force_override", "force-override", "forceoverride":
		return MarkerForcedOverride, true
	}
	return 0, false
}

// Markers is a bit set of Marker values.
type Markers uint8

// Has reports whether m is set.
func (s Markers) Has(m Marker) bool {
	return s&Markers(m) != 0
}

// Any reports whether at least one of ms is set.
func (s Markers) Any(ms ...Marker) bool {
	for _, m := range ms {
		if s.Has(m) {
			return true
		}
	}
	return false
}

func (s Markers) String() string {
	if s == 0 {
		return "none"
	}
	parts := make([]string, 0, 3)
	for _, m := range []Marker{MarkerFinalized, MarkerDeclaredOverride, MarkerForcedOverride} {
		if s.Has(m) {
			parts = append(parts, m.String())
		}
	}
	return strings.Join(parts, "|")
}

var (
	// ErrFrozenMember is the cause of attach failures on frozen members.
	ErrFrozenMember = errors.New("member does not accept markers")
	// ErrDataMember is the cause of attach failures on plain attributes.
	ErrDataMember = errors.New("plain attributes cannot carry markers")
)

// AttachError reports a marker that could not be stored for an entry.
type AttachError struct {
	Member string
	Kind   Kind
	Marker Marker
	Err    error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("cannot attach %s to %s `%s`: %v", e.Marker, e.Kind, e.Member, e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }

// Store is the side table holding markers by entry identity.
// Records are write-once per marker: nothing ever clears a bit.
type Store struct {
	table map[Entry]Markers
}

// NewStore returns an empty marker table.
func NewStore() *Store {
	return &Store{table: make(map[Entry]Markers)}
}

// Attach sets m on e.
func (s *Store) Attach(e Entry, m Marker) error {
	if e == nil {
		return fmt.Errorf("attach %s: nil entry", m)
	}
	if mem, ok := e.(*Member); ok {
		switch {
		case mem.kind == KindData:
			return &AttachError{Member: mem.name, Kind: mem.kind, Marker: m, Err: ErrDataMember}
		case mem.frozen:
			return &AttachError{Member: mem.name, Kind: mem.kind, Marker: m, Err: ErrFrozenMember}
		}
	}
	s.table[e] |= Markers(m)
	return nil
}

// Has reports whether m was ever set on e.
func (s *Store) Has(e Entry, m Marker) bool {
	return s.Markers(e).Has(m)
}

// Markers returns the full marker set visible through e.
// A proxy sees its own record, its tag and everything the wrapped entry carries.
func (s *Store) Markers(e Entry) Markers {
	if e == nil || s == nil {
		return 0
	}
	set := s.table[e]
	if p, ok := e.(*Proxy); ok {
		set |= p.tag
		set |= s.Markers(p.target)
	}
	return set
}

// Len returns the number of entries with at least one record.
func (s *Store) Len() int {
	return len(s.table)
}
