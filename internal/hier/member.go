package hier

import (
	"errors"

	"strictparent/internal/source"
)

// Kind classifies an entry declared in a class body.
type Kind uint8

const (
	// KindData is a plain attribute. It is owned by the class but never validated.
	KindData Kind = iota
	KindMethod
	KindStaticMethod
	KindClassMethod
	KindProperty
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindMethod:
		return "method"
	case KindStaticMethod:
		return "staticmethod"
	case KindClassMethod:
		return "classmethod"
	case KindProperty:
		return "property"
	}
	return "unknown"
}

// Validated reports whether entries of this kind are validation candidates.
func (k Kind) Validated() bool {
	return k != KindData
}

// ParseKind converts a manifest spelling into Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "", "method", "fn", "function":
		return KindMethod, true
	case "staticmethod", "static":
		return KindStaticMethod, true
	case "classmethod":
		return KindClassMethod, true
	case "property":
		return KindProperty, true
	case "data", "attr", "attribute":
		return KindData, true
	}
	return KindData, false
}

var (
	// ErrNoAccessor is returned when an entry has no accessor for the requested operation.
	ErrNoAccessor = errors.New("member has no accessor")
	// ErrProxyReadOnly is returned by write-side operations on a Proxy.
	ErrProxyReadOnly = errors.New("marker proxy does not forward writes")
)

// Accessor holds descriptor-like behavior of a member.
// Any field may be nil.
type Accessor struct {
	Get    func(recv any) (any, error)
	Set    func(recv, value any) error
	Delete func(recv any) error
}

// Entry is anything a class body may hold: a *Member or a *Proxy wrapping one.
type Entry interface {
	Name() string
	Kind() Kind
	Span() source.Span
	// Unwrap returns the innermost declared member.
	Unwrap() *Member
	// Get reads the entry through recv using its accessor.
	Get(recv any) (any, error)
}

// Member is a named declaration in a class body.
// Identity is pointer identity: two members never alias even with equal names.
type Member struct {
	name   string
	kind   Kind
	span   source.Span
	frozen bool
	access Accessor
}

// MemberOption configures NewMember.
type MemberOption func(*Member)

// WithSpan records where the member was declared.
func WithSpan(sp source.Span) MemberOption {
	return func(m *Member) { m.span = sp }
}

// Frozen makes the member refuse in-place marker attachment,
// like descriptor objects without writable attributes.
func Frozen() MemberOption {
	return func(m *Member) { m.frozen = true }
}

// WithAccessor attaches descriptor behavior.
func WithAccessor(a Accessor) MemberOption {
	return func(m *Member) { m.access = a }
}

// NewMember creates a fresh member.
func NewMember(name string, kind Kind, opts ...MemberOption) *Member {
	m := &Member{name: name, kind: kind}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Member) Name() string      { return m.name }
func (m *Member) Kind() Kind        { return m.kind }
func (m *Member) Span() source.Span { return m.span }
func (m *Member) Unwrap() *Member   { return m }

// IsFrozen reports whether the member refuses in-place markers.
func (m *Member) IsFrozen() bool { return m.frozen }

// Get invokes the read accessor.
func (m *Member) Get(recv any) (any, error) {
	if m.access.Get == nil {
		return nil, ErrNoAccessor
	}
	return m.access.Get(recv)
}

// Set invokes the write accessor.
func (m *Member) Set(recv, value any) error {
	if m.access.Set == nil {
		return ErrNoAccessor
	}
	return m.access.Set(recv, value)
}

// Delete invokes the delete accessor.
func (m *Member) Delete(recv any) error {
	if m.access.Delete == nil {
		return ErrNoAccessor
	}
	return m.access.Delete(recv)
}
