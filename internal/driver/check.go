package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"fortio.org/safecast"

	"strictparent/internal/diag"
	"strictparent/internal/hier"
	"strictparent/internal/manifest"
	"strictparent/internal/source"
	"strictparent/internal/trace"
)

// ClassVerdict is the outcome for one class of a manifest.
type ClassVerdict struct {
	Name     string `msgpack:"name" json:"name"`
	State    string `msgpack:"state" json:"state"`
	Ancestry string `msgpack:"ancestry,omitempty" json:"ancestry,omitempty"`
	Opaque   bool   `msgpack:"opaque,omitempty" json:"opaque,omitempty"`
}

// FileResult holds everything produced for one manifest.
type FileResult struct {
	Path     string
	FileID   source.FileID
	Bag      *diag.Bag
	Verdicts []ClassVerdict
	Cached   bool
}

// Valid reports how many classes were accepted.
func (r *FileResult) Valid() int {
	n := 0
	for _, v := range r.Verdicts {
		if v.State == hier.StateValid.String() {
			n++
		}
	}
	return n
}

// checker derives the classes of one manifest into a fresh registry.
type checker struct {
	ctx      context.Context
	file     *source.File
	spec     *manifest.Manifest
	reg      *hier.Registry
	reporter diag.Reporter
	// broken marks classes that were never derived because of manifest errors.
	broken   map[string]source.Span
	verdicts []ClassVerdict
	progress func(classes int)
}

// checkFile parses and derives one loaded manifest, reporting into bag.
func checkFile(ctx context.Context, file *source.File, opts hier.Options, bag *diag.Bag, progress func(int)) []ClassVerdict {
	ctx, span := trace.Start(ctx, trace.ScopePass, "parse")
	reporter := diag.NewDedupReporter(diag.BagReporter{Bag: bag})
	m := manifest.Parse(file, reporter)
	span.End("")
	if m == nil {
		return nil
	}

	ctx, span = trace.Start(ctx, trace.ScopePass, "derive")
	defer span.End("")
	c := &checker{
		ctx:      ctx,
		file:     file,
		spec:     m,
		reg:      hier.NewRegistry(opts),
		reporter: reporter,
		broken:   make(map[string]source.Span),
		progress: progress,
	}
	for i := range m.Classes {
		if err := ctx.Err(); err != nil {
			break
		}
		c.derive(&m.Classes[i])
		if c.progress != nil {
			c.progress(i + 1)
		}
	}
	span.WithExtra("classes", fmt.Sprint(len(c.verdicts)))
	return c.verdicts
}

func (c *checker) derive(cs *manifest.ClassSpec) {
	ctx, span := trace.StartClass(c.ctx, cs.Name)
	defer span.End("")

	c.reg.Declare(cs.Name)
	if cs.Invalid {
		c.markBroken(cs)
		return
	}
	bases, ok := c.resolveBases(cs)
	if !ok {
		c.markBroken(cs)
		return
	}
	members, ok := c.buildMembers(cs)
	if !ok {
		c.markBroken(cs)
		return
	}

	var (
		class *hier.Class
		err   error
	)
	if cs.Opaque {
		class, err = c.reg.Opaque(cs.Name, cs.Span, bases, members...)
	} else {
		class, err = c.reg.Derive(hier.Decl{Name: cs.Name, Span: cs.Span, Bases: bases, Members: members})
	}
	if err != nil {
		c.reportDerive(cs, err)
		c.verdicts = append(c.verdicts, ClassVerdict{Name: cs.Name, State: c.reg.State(cs.Name).String()})
		trace.Point(ctx, trace.ScopeClass, "rejected", err.Error())
		return
	}
	c.verdicts = append(c.verdicts, ClassVerdict{
		Name:     class.Name(),
		State:    hier.StateValid.String(),
		Ancestry: class.Ancestry(),
		Opaque:   class.Opaque(),
	})
}

func (c *checker) markBroken(cs *manifest.ClassSpec) {
	c.broken[cs.Name] = cs.Span
	c.verdicts = append(c.verdicts, ClassVerdict{Name: cs.Name, State: hier.StateRejected.String()})
}

func (c *checker) resolveBases(cs *manifest.ClassSpec) ([]*hier.Class, bool) {
	bases := make([]*hier.Class, 0, len(cs.Bases))
	ok := true
	for _, ref := range cs.Bases {
		if base, found := c.reg.Lookup(ref.Name); found {
			bases = append(bases, base)
			continue
		}
		ok = false
		switch {
		case ref.Name == cs.Name:
			diag.ReportError(c.reporter, diag.ManUnknownBase, ref.Span,
				fmt.Sprintf("%s cannot inherit from itself", cs.Name)).Emit()
		case c.reg.State(ref.Name) == hier.StateRejected:
			b := diag.ReportError(c.reporter, diag.ManRejectedBase, ref.Span,
				fmt.Sprintf("%s cannot inherit from %s: it was rejected", cs.Name, ref.Name))
			if spec, declared := c.spec.Lookup(ref.Name); declared {
				b.WithNote(spec.Span, ref.Name+" was rejected here")
			}
			b.Emit()
		case c.isBroken(ref.Name):
			diag.ReportError(c.reporter, diag.ManRejectedBase, ref.Span,
				fmt.Sprintf("%s cannot inherit from %s: its declaration has errors", cs.Name, ref.Name)).
				WithNote(c.broken[ref.Name], ref.Name+" is declared here").
				Emit()
		default:
			msg := fmt.Sprintf("unknown base class %s", ref.Name)
			b := diag.ReportError(c.reporter, diag.ManUnknownBase, ref.Span, msg)
			if spec, declared := c.spec.Lookup(ref.Name); declared {
				b.WithNote(spec.Span, ref.Name+" is declared later; bases must be declared first")
			}
			b.Emit()
		}
	}
	return bases, ok
}

func (c *checker) isBroken(name string) bool {
	_, ok := c.broken[name]
	return ok
}

func (c *checker) buildMembers(cs *manifest.ClassSpec) ([]hier.Entry, bool) {
	store := c.reg.Store()
	entries := make([]hier.Entry, 0, len(cs.Members))
	ok := true
	for _, ms := range cs.Members {
		opts := []hier.MemberOption{hier.WithSpan(ms.Span)}
		if ms.Frozen {
			opts = append(opts, hier.Frozen())
		}
		entry, err := store.Apply(hier.NewMember(ms.Name, ms.Kind, opts...), ms.Markers...)
		if err != nil {
			ok = false
			c.reportAttach(cs, ms, err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, ok
}

func (c *checker) reportAttach(cs *manifest.ClassSpec, ms manifest.MemberSpec, err error) {
	var ae *hier.AttachError
	msg := err.Error()
	if errors.As(err, &ae) {
		msg = fmt.Sprintf("cannot mark %s.%s as %s: %v", cs.Name, ms.Name, ae.Marker, ae.Err)
	}
	b := diag.ReportError(c.reporter, diag.HierMarkerAttach, ms.Span, msg)
	if errors.Is(err, hier.ErrFrozenMember) {
		b.WithNote(ms.Span, "only `overrides` can fall back to a read-only proxy for frozen members")
	}
	b.Emit()
}

func (c *checker) reportDerive(cs *manifest.ClassSpec, err error) {
	var ie *hier.InheritanceError
	if errors.As(err, &ie) {
		c.reportInheritance(cs, ie)
		return
	}
	var de *hier.DeriveError
	if errors.As(err, &de) {
		code := diag.UnknownCode
		switch de.Problem {
		case hier.ProblemDuplicateClass:
			code = diag.HierDuplicateClass
		case hier.ProblemDuplicateBase:
			code = diag.HierDuplicateBase
		case hier.ProblemInconsistentMRO:
			code = diag.HierInconsistentMRO
		case hier.ProblemNilBase:
			code = diag.ManUnknownBase
		case hier.ProblemEmptyName:
			code = diag.ManMissingName
		}
		diag.ReportError(c.reporter, code, cs.Span, de.Error()).Emit()
		return
	}
	diag.ReportError(c.reporter, diag.UnknownCode, cs.Span, err.Error()).Emit()
}

func (c *checker) reportInheritance(cs *manifest.ClassSpec, ie *hier.InheritanceError) {
	var code diag.Code
	switch ie.Rule {
	case hier.RuleUnjustifiedOverride:
		code = diag.HierUnjustifiedOverride
	case hier.RuleUndeclaredOverride:
		code = diag.HierUndeclaredOverride
	case hier.RuleFinalizedOverride:
		code = diag.HierFinalizedOverride
	default:
		code = diag.UnknownCode
	}
	primary := ie.Span
	if primary.Empty() {
		primary = cs.Span
	}
	b := diag.ReportError(c.reporter, code, primary, ie.Error())
	if ie.Owner != "" && !ie.OwnerSpan.Empty() && ie.OwnerSpan.File == c.file.ID {
		switch ie.Rule {
		case hier.RuleFinalizedOverride:
			b.WithNote(ie.OwnerSpan, fmt.Sprintf("`%s` is finalized here in %s", ie.Member, ie.Owner))
		default:
			b.WithNote(ie.OwnerSpan, fmt.Sprintf("`%s` is declared here in %s", ie.Member, ie.Owner))
		}
	}
	if ie.Base != "" && ie.Base != ie.Owner {
		b.WithNote(primary, fmt.Sprintf("inherited through base %s", ie.Base))
	}
	if fix, ok := c.markerFix(cs, ie); ok {
		b.WithFix(fix.Title, fix.Edits...)
	}
	b.Emit()
}

// markerFix proposes a markers line for members declared without one.
func (c *checker) markerFix(cs *manifest.ClassSpec, ie *hier.InheritanceError) (diag.Fix, bool) {
	var marker hier.Marker
	switch ie.Rule {
	case hier.RuleUndeclaredOverride:
		marker = hier.MarkerDeclaredOverride
	case hier.RuleFinalizedOverride:
		marker = hier.MarkerForcedOverride
	default:
		return diag.Fix{}, false
	}
	var spec *manifest.MemberSpec
	for i := range cs.Members {
		if cs.Members[i].Name == ie.Member {
			spec = &cs.Members[i]
		}
	}
	if spec == nil || spec.MarkersKey || spec.Span.Empty() {
		return diag.Fix{}, false
	}
	at, ok := lineEnd(c.file.Content, spec.Span.End)
	if !ok {
		return diag.Fix{}, false
	}
	indent := lineIndent(c.file.Content, spec.Span.Start)
	return diag.Fix{
		Title: fmt.Sprintf("declare `%s` with %s", ie.Member, marker),
		Edits: []diag.FixEdit{{
			Span:    source.Span{File: c.file.ID, Start: at, End: at},
			NewText: fmt.Sprintf("\n%smarkers = [%q]", indent, marker.String()),
		}},
	}, true
}

func lineEnd(content []byte, from uint32) (uint32, bool) {
	if int(from) > len(content) {
		return 0, false
	}
	i := bytes.IndexByte(content[from:], '\n')
	if i < 0 {
		i = len(content) - int(from)
	}
	at, err := safecast.Conv[uint32](int(from) + i)
	return at, err == nil
}

func lineIndent(content []byte, at uint32) string {
	start := bytes.LastIndexByte(content[:at], '\n') + 1
	line := string(content[start:at])
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
