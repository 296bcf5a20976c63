package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestStreamTracerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)
	ctx := WithTracer(context.Background(), tr)

	ctx, run := Start(ctx, ScopeDriver, "check")
	_, file := StartFile(ctx, "zoo.classes.toml")
	file.End("")
	run.WithExtra("files", "1").End("ok")
	if err := tr.Flush(); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if strings.Contains(out, "zoo.classes.toml") {
		t.Fatalf("file scope must be filtered at phase level:\n%s", out)
	}
	if !strings.Contains(out, "→ check") || !strings.Contains(out, "← check (ok) files=1") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestStreamTracerBuffersUntilFlush(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDebug, FormatText)
	tr.Emit(&Event{Kind: KindPoint, Scope: ScopeDriver, Name: "x"})
	if buf.Len() != 0 {
		t.Fatalf("written before flush: %q", buf.String())
	}
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "• x") {
		t.Fatalf("close must flush, got %q", buf.String())
	}
}

func TestSpanParentPropagation(t *testing.T) {
	ring := NewRingTracer(8, LevelDebug)
	ctx := WithTracer(context.Background(), ring)

	ctx, outer := Start(ctx, ScopePass, "derive")
	_, inner := StartClass(ctx, "Dog")
	Point(ctx, ScopeClass, "rejected", "Dog")
	inner.End("")
	outer.End("")

	events := ring.Snapshot()
	if len(events) != 5 {
		t.Fatalf("got %d events", len(events))
	}
	if events[1].ParentID != outer.ID() || events[2].ParentID != outer.ID() {
		t.Fatalf("nested events must point at the outer span")
	}
	if events[2].Kind != KindPoint || events[2].Detail != "Dog" {
		t.Fatalf("unexpected point event %+v", events[2])
	}
	for i := 1; i < len(events); i++ {
		if events[i].Seq <= events[i-1].Seq {
			t.Fatalf("sequence numbers must grow")
		}
	}
}

func TestFileAndClassTags(t *testing.T) {
	ring := NewRingTracer(16, LevelDebug)
	ctx := WithTracer(context.Background(), ring)

	ctx, file := StartFile(ctx, "zoo.classes.toml")
	cctx, class := StartClass(ctx, "Dog")
	Point(cctx, ScopeClass, "rejected", "")
	class.End("")
	Point(ctx, ScopeFile, "cache hit", "")
	file.End("")

	events := ring.Snapshot()
	if len(events) != 6 {
		t.Fatalf("got %d events", len(events))
	}
	for _, ev := range events {
		if ev.File != "zoo.classes.toml" {
			t.Errorf("%s %s: file = %q", ev.Kind, ev.Name, ev.File)
		}
	}
	if events[2].Class != "Dog" || events[4].Class != "" {
		t.Errorf("class tags: %q, %q", events[2].Class, events[4].Class)
	}
	if line := string(FormatEvent(&events[2], FormatText)); !strings.Contains(line, "• rejected [Dog]") {
		t.Errorf("text line %q", line)
	}
}

func TestRingTracerWraps(t *testing.T) {
	ring := NewRingTracer(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		ring.Emit(&Event{Kind: KindPoint, Scope: ScopeDriver, Name: name})
	}
	events := ring.Snapshot()
	if len(events) != 2 || events[0].Name != "b" || events[1].Name != "c" {
		t.Fatalf("unexpected snapshot %+v", events)
	}
	var buf bytes.Buffer
	if err := ring.Dump(&buf, FormatNDJSON); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("dump lines = %d", len(lines))
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["name"] != "c" || decoded["scope"] != "driver" {
		t.Fatalf("unexpected json %v", decoded)
	}
}

func TestNewSelectsImplementation(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil || tr.Enabled() {
		t.Fatalf("off level must yield a disabled tracer")
	}
	var buf bytes.Buffer
	tr, err = New(Config{Level: LevelDebug, Mode: ModeBoth, Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tr.(*MultiTracer); !ok {
		t.Fatalf("both mode must build a MultiTracer, got %T", tr)
	}
	_, sp := Start(WithTracer(context.Background(), tr), ScopeDriver, "x")
	sp.End("")
	if err := tr.Flush(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Fatalf("stream half received nothing")
	}
	if got := len(RingOf(tr).Snapshot()); got != 2 {
		t.Fatalf("ring half has %d events", got)
	}
	if _, err := New(Config{Level: LevelPhase, Mode: StorageMode(9)}); err == nil {
		t.Fatalf("unknown mode must fail")
	}
}

func TestLevelGate(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeDriver, false},
		{LevelError, ScopeDriver, false},
		{LevelPhase, ScopePass, true},
		{LevelPhase, ScopeFile, false},
		{LevelDetail, ScopeFile, true},
		{LevelDetail, ScopeClass, false},
		{LevelDebug, ScopeClass, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Errorf("%s.ShouldEmit(%s) = %v", tt.level, tt.scope, got)
		}
	}
}

func TestParsers(t *testing.T) {
	if l, err := ParseLevel("Detail"); err != nil || l != LevelDetail {
		t.Errorf("ParseLevel = %s, %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Errorf("expected error")
	}
	if m, err := ParseMode("ring"); err != nil || m != ModeRing {
		t.Errorf("ParseMode = %s, %v", m, err)
	}
	if m, err := ParseMode(""); err != nil || m != ModeStream {
		t.Errorf("ParseMode(\"\") = %s, %v", m, err)
	}
	if f, err := ParseFormat("ndjson"); err != nil || f != FormatNDJSON {
		t.Errorf("ParseFormat = %d, %v", f, err)
	}
}

func TestNopAndContextDefaults(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatalf("missing tracer must resolve to Nop")
	}
	ctx, sp := Start(context.Background(), ScopeDriver, "x")
	if sp.End("") != 0 || sp.ID() != 0 {
		t.Fatalf("nop spans must be inert")
	}
	if FromContext(ctx) != Nop {
		t.Fatalf("inert spans must not change the context")
	}
	Nop.Emit(&Event{})
}

func TestRingOf(t *testing.T) {
	ring := NewRingTracer(4, LevelDebug)
	multi := NewMultiTracer(LevelDebug, NewStreamTracer(&bytes.Buffer{}, LevelDebug, FormatText), ring)
	if RingOf(multi) != ring {
		t.Error("ring not found behind MultiTracer")
	}
	if RingOf(ring) != ring {
		t.Error("ring not returned as is")
	}
	if RingOf(Nop) != nil {
		t.Error("Nop has no ring")
	}
}
