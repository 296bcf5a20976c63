package hier

import (
	"fmt"

	"strictparent/internal/source"
)

// Proxy wraps an entry that refused in-place annotation.
// Reads and identity-like queries are forwarded to the wrapped entry;
// writes through the proxy are not supported.
type Proxy struct {
	target Entry
	tag    Markers
}

func (p *Proxy) Name() string      { return p.target.Name() }
func (p *Proxy) Kind() Kind        { return p.target.Kind() }
func (p *Proxy) Span() source.Span { return p.target.Span() }
func (p *Proxy) Unwrap() *Member   { return p.target.Unwrap() }

// Target returns the directly wrapped entry.
func (p *Proxy) Target() Entry { return p.target }

// Get forwards to the wrapped entry so the proxy still acts as an accessor.
func (p *Proxy) Get(recv any) (any, error) {
	return p.target.Get(recv)
}

// Set always fails.
func (p *Proxy) Set(any, any) error { return ErrProxyReadOnly }

// Delete always fails.
func (p *Proxy) Delete(any) error { return ErrProxyReadOnly }

// Final marks e as finalized. Attach failures propagate.
func (s *Store) Final(e Entry) (Entry, error) {
	if err := s.Attach(e, MarkerFinalized); err != nil {
		return nil, err
	}
	return e, nil
}

// Overrides declares e as an intentional override.
// If e refuses the marker, a tagged Proxy is returned instead.
func (s *Store) Overrides(e Entry) Entry {
	if err := s.Attach(e, MarkerDeclaredOverride); err != nil {
		return &Proxy{target: e, tag: Markers(MarkerDeclaredOverride)}
	}
	return e
}

// ForceOverride permits overriding a finalized ancestor member.
// There is no proxy fallback: attach failures propagate.
func (s *Store) ForceOverride(e Entry) (Entry, error) {
	if err := s.Attach(e, MarkerForcedOverride); err != nil {
		return nil, err
	}
	return e, nil
}

// Apply runs a stack of marker operations in order and returns the resulting handle.
func (s *Store) Apply(e Entry, ms ...Marker) (Entry, error) {
	cur := e
	for _, m := range ms {
		var err error
		switch m {
		case MarkerFinalized:
			cur, err = s.Final(cur)
		case MarkerDeclaredOverride:
			cur = s.Overrides(cur)
		case MarkerForcedOverride:
			cur, err = s.ForceOverride(cur)
		default:
			err = fmt.Errorf("unknown marker %d", m)
		}
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}
