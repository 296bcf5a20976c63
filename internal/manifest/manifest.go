package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/unicode/norm"

	"strictparent/internal/diag"
	"strictparent/internal/hier"
	"strictparent/internal/source"
)

// Suffix is the default file suffix of class manifests.
const Suffix = ".classes.toml"

// Manifest is a decoded class manifest. Classes keep file order.
type Manifest struct {
	File    source.FileID
	Classes []ClassSpec
}

// ClassSpec describes one [[class]] table.
type ClassSpec struct {
	Name    string
	Span    source.Span
	Bases   []BaseRef
	Opaque  bool
	Members []MemberSpec
	// Invalid is set when the class body had errors; such classes are never derived.
	Invalid bool
}

type BaseRef struct {
	Name string
	Span source.Span
}

// MemberSpec describes one [[class.member]] table.
type MemberSpec struct {
	Name    string
	Span    source.Span
	Kind    hier.Kind
	Markers []hier.Marker
	// MarkersKey is set when the table has a markers key, even an empty one.
	MarkersKey bool
	Frozen     bool
}

// Lookup returns the class declared under name.
func (m *Manifest) Lookup(name string) (*ClassSpec, bool) {
	for i := range m.Classes {
		if m.Classes[i].Name == name {
			return &m.Classes[i], true
		}
	}
	return nil, false
}

type rawManifest struct {
	Class []rawClass `toml:"class"`
}

type rawClass struct {
	Name   string      `toml:"name"`
	Bases  []string    `toml:"bases"`
	Opaque bool        `toml:"opaque"`
	Doc    string      `toml:"doc"`
	Member []rawMember `toml:"member"`
}

type rawMember struct {
	Name    string   `toml:"name"`
	Kind    string   `toml:"kind"`
	Markers []string `toml:"markers"`
	Frozen  bool     `toml:"frozen"`
	Doc     string   `toml:"doc"`
}

// NormalizeName trims and NFC-normalizes an identifier so that visually
// equal names written with different code point sequences compare equal.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Parse decodes file and reports every problem to r.
// It returns nil when the file is not valid TOML.
func Parse(file *source.File, r diag.Reporter) *Manifest {
	if file == nil {
		return nil
	}
	var raw rawManifest
	meta, err := toml.Decode(string(file.Content), &raw)
	if err != nil {
		reportDecodeError(file, err, r)
		return nil
	}

	loc := newLocator(file)
	for _, key := range meta.Undecoded() {
		diag.ReportWarning(r, diag.ManUnknownKey, loc.key(key), fmt.Sprintf("unknown manifest key %q", key.String())).Emit()
	}

	m := &Manifest{File: file.ID, Classes: make([]ClassSpec, 0, len(raw.Class))}
	if len(raw.Class) == 0 {
		diag.ReportWarning(r, diag.ManEmptyManifest, loc.fileStart(), "manifest declares no classes").Emit()
		return m
	}

	seen := make(map[string]source.Span, len(raw.Class))
	for i := range raw.Class {
		spec, ok := decodeClass(&raw.Class[i], loc.class(i), r)
		if !ok {
			continue
		}
		if prev, dup := seen[spec.Name]; dup {
			diag.ReportError(r, diag.ManDuplicateClass, spec.Span, fmt.Sprintf("class %s is declared twice", spec.Name)).
				WithNote(prev, "first declared here").
				Emit()
			continue
		}
		seen[spec.Name] = spec.Span
		m.Classes = append(m.Classes, spec)
	}
	return m
}

func decodeClass(raw *rawClass, loc classLocator, r diag.Reporter) (ClassSpec, bool) {
	name := NormalizeName(raw.Name)
	if name == "" {
		diag.ReportError(r, diag.ManMissingName, loc.header, "class table has no name").Emit()
		return ClassSpec{}, false
	}
	spec := ClassSpec{
		Name:   name,
		Span:   loc.name(raw.Name),
		Opaque: raw.Opaque,
		Bases:  make([]BaseRef, 0, len(raw.Bases)),
	}
	for _, b := range raw.Bases {
		spec.Bases = append(spec.Bases, BaseRef{Name: NormalizeName(b), Span: loc.base(b)})
	}

	index := make(map[string]source.Span, len(raw.Member))
	for j := range raw.Member {
		rm := &raw.Member[j]
		ml := loc.member(j)
		mname := NormalizeName(rm.Name)
		if mname == "" {
			diag.ReportError(r, diag.ManMissingName, ml.header, fmt.Sprintf("member %d of %s has no name", j+1, name)).Emit()
			spec.Invalid = true
			continue
		}
		ms := MemberSpec{
			Name:       mname,
			Span:       ml.name(rm.Name),
			Frozen:     rm.Frozen,
			MarkersKey: len(rm.Markers) > 0 || ml.defines("markers"),
		}

		kind, ok := hier.ParseKind(rm.Kind)
		if !ok {
			diag.ReportError(r, diag.ManUnknownKind, ml.value(rm.Kind, ms.Span),
				fmt.Sprintf("unknown member kind %q (expected method|staticmethod|classmethod|property|data)", rm.Kind)).Emit()
			spec.Invalid = true
		}
		ms.Kind = kind

		for _, text := range rm.Markers {
			mk, ok := hier.ParseMarker(text)
			if !ok {
				diag.ReportError(r, diag.ManUnknownMarker, ml.value(text, ms.Span),
					fmt.Sprintf("unknown marker %q (expected final|overrides|force_override)", text)).Emit()
				spec.Invalid = true
				continue
			}
			ms.Markers = append(ms.Markers, mk)
			if spec.Opaque && mk != hier.MarkerFinalized {
				diag.ReportWarning(r, diag.ManOpaqueWithMarker, ml.value(text, ms.Span),
					fmt.Sprintf("%s on %s.%s is not checked because %s is opaque", mk, name, mname, name)).Emit()
			}
		}

		if prev, dup := index[mname]; dup {
			diag.ReportWarning(r, diag.ManRedefinedMember, ms.Span,
				fmt.Sprintf("%s.%s is redefined; the later definition wins", name, mname)).
				WithNote(prev, "previous definition").
				Emit()
		}
		index[mname] = ms.Span
		spec.Members = append(spec.Members, ms)
	}
	return spec, true
}

func reportDecodeError(file *source.File, err error, r diag.Reporter) {
	sp := source.Span{File: file.ID}
	msg := err.Error()
	var perr toml.ParseError
	if errors.As(err, &perr) {
		sp = spanAt(file, perr.Position.Start, perr.Position.Len)
		msg = perr.Message
	}
	diag.ReportError(r, diag.ManParse, sp, "malformed manifest: "+msg).Emit()
}
