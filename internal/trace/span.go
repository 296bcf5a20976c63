package trace

import (
	"context"
	"sync/atomic"
	"time"
)

var spanIDs atomic.Uint64

// frame is what a context carries: the tracer plus the innermost span and
// the manifest and class it belongs to.
type frame struct {
	tracer Tracer
	parent uint64
	file   string
	class  string
}

type frameKey struct{}

func frameOf(ctx context.Context) frame {
	if ctx != nil {
		if f, ok := ctx.Value(frameKey{}).(frame); ok {
			return f
		}
	}
	return frame{tracer: Nop}
}

// WithTracer attaches t to ctx. A nil t detaches tracing.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	f := frameOf(ctx)
	f.tracer = t
	return context.WithValue(ctx, frameKey{}, f)
}

// FromContext returns the tracer attached to ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	return frameOf(ctx).tracer
}

// Span is an open begin/end pair. The zero and nil Span are inert.
type Span struct {
	tracer  Tracer
	frame   frame
	id      uint64
	scope   Scope
	name    string
	started time.Time
	extra   map[string]string
}

// Start opens a span below the one carried by ctx and returns a context
// in which it is the parent.
func Start(ctx context.Context, scope Scope, name string) (context.Context, *Span) {
	return open(ctx, frameOf(ctx), scope, name)
}

// StartFile opens a ScopeFile span for the manifest at path. Events
// emitted below it are tagged with path.
func StartFile(ctx context.Context, path string) (context.Context, *Span) {
	f := frameOf(ctx)
	f.file, f.class = path, ""
	return open(ctx, f, ScopeFile, path)
}

// StartClass opens a ScopeClass span for one class derivation.
func StartClass(ctx context.Context, class string) (context.Context, *Span) {
	f := frameOf(ctx)
	f.class = class
	return open(ctx, f, ScopeClass, class)
}

func open(ctx context.Context, f frame, scope Scope, name string) (context.Context, *Span) {
	if !f.tracer.Enabled() || !f.tracer.Level().ShouldEmit(scope) {
		return ctx, &Span{}
	}
	sp := &Span{
		tracer:  f.tracer,
		frame:   f,
		id:      spanIDs.Add(1),
		scope:   scope,
		name:    name,
		started: time.Now(),
	}
	sp.emit(KindSpanBegin, sp.started, "", nil)
	f.parent = sp.id
	return context.WithValue(ctx, frameKey{}, f), sp
}

func (s *Span) emit(kind Kind, at time.Time, detail string, extra map[string]string) {
	s.tracer.Emit(&Event{
		Time:     at,
		Kind:     kind,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.frame.parent,
		File:     s.frame.file,
		Class:    s.frame.class,
		Name:     s.name,
		Detail:   detail,
		Extra:    extra,
	})
}

// End closes the span and returns its duration.
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.tracer == nil {
		return 0
	}
	now := time.Now()
	s.emit(KindSpanEnd, now, detail, s.extra)
	return now.Sub(s.started)
}

// WithExtra attaches a key/value pair reported on End.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || s.tracer == nil {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string, 2)
	}
	s.extra[key] = value
	return s
}

// ID returns the span id, zero for inert spans.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// Point emits an instant event under the span carried by ctx.
func Point(ctx context.Context, scope Scope, name, detail string) {
	f := frameOf(ctx)
	if !f.tracer.Enabled() || !f.tracer.Level().ShouldEmit(scope) {
		return
	}
	f.tracer.Emit(&Event{
		Time:     time.Now(),
		Kind:     KindPoint,
		Scope:    scope,
		SpanID:   spanIDs.Add(1),
		ParentID: f.parent,
		File:     f.file,
		Class:    f.class,
		Name:     name,
		Detail:   detail,
	})
}
