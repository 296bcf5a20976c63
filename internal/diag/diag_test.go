package diag

import (
	"strings"
	"testing"

	"strictparent/internal/source"
)

func TestCodeIDs(t *testing.T) {
	tests := []struct {
		code Code
		id   string
	}{
		{ManParse, "MAN1001"},
		{HierUndeclaredOverride, "HIE3002"},
		{IOLoadFileError, "IO4001"},
		{ProjInvalidConfig, "PRJ5001"},
		{UnknownCode, "E0000"},
	}
	for _, tt := range tests {
		if got := tt.code.ID(); got != tt.id {
			t.Errorf("%d.ID() = %s, want %s", tt.code, got, tt.id)
		}
		if tt.code != UnknownCode {
			if back, ok := ParseCode(tt.id); !ok || back != tt.code {
				t.Errorf("ParseCode(%s) = %d, %v", tt.id, back, ok)
			}
		}
	}
	if Code(9999).Title() != "Unknown error" {
		t.Errorf("unknown codes must fall back to the unknown title")
	}
	if !strings.HasPrefix(HierFinalizedOverride.String(), "[HIE3003]: ") {
		t.Errorf("String() = %q", HierFinalizedOverride.String())
	}
	codes := Codes()
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Fatalf("Codes() not sorted: %v", codes)
		}
	}
}

func TestBagLimitSortAndDedup(t *testing.T) {
	b := NewBag(4)
	sp := source.Span{File: 0, Start: 4, End: 8}
	b.Add(NewError(HierFinalizedOverride, sp, "x"))
	b.Add(New(SevWarning, ManRedefinedMember, source.Span{Start: 1, End: 2}, "w"))
	b.Add(NewError(HierFinalizedOverride, sp, "x"))
	b.Add(New(SevInfo, HierInfo, source.Span{Start: 9, End: 9}, "i"))
	if b.Add(New(SevInfo, HierInfo, sp, "dropped")) {
		t.Fatalf("bag must respect its limit")
	}
	b.Dedup()
	b.Sort()
	items := b.Items()
	if len(items) != 3 || items[0].Code != ManRedefinedMember {
		t.Fatalf("unexpected items %+v", items)
	}
	if !b.HasErrors() || !b.HasWarnings() || b.Count(SevError) != 1 {
		t.Fatalf("severity counters mismatch")
	}
	b.PromoteWarnings()
	if b.Count(SevError) != 2 {
		t.Fatalf("warnings must be promoted")
	}
}

func TestFullBagKeepsErrors(t *testing.T) {
	b := NewBag(1)
	b.Add(New(SevWarning, ManUnknownKey, source.Span{Start: 1, End: 2}, "unknown key"))
	if !b.Add(NewError(HierUndeclaredOverride, source.Span{Start: 5, End: 9}, "shadow")) {
		t.Fatalf("an error must displace a warning")
	}
	if b.Add(New(SevWarning, ManRedefinedMember, source.Span{}, "late")) {
		t.Fatalf("a warning must not displace an error")
	}
	if b.Add(NewError(HierFinalizedOverride, source.Span{}, "second")) {
		t.Fatalf("an error must not displace an error")
	}
	items := b.Items()
	if len(items) != 1 || items[0].Code != HierUndeclaredOverride || !b.HasErrors() {
		t.Fatalf("unexpected items %+v", items)
	}
	if b.Dropped() != 3 {
		t.Errorf("Dropped() = %d, want 3", b.Dropped())
	}
}

func TestBagFilterAndMerge(t *testing.T) {
	a := NewBag(1)
	a.Add(New(SevInfo, HierInfo, source.Span{}, "info"))
	other := NewBag(0)
	other.Add(NewError(ManParse, source.Span{}, "e"))
	other.Add(New(SevWarning, ManUnknownKey, source.Span{}, "w"))
	a.Merge(other)
	if a.Len() != 3 || a.Cap() < 3 {
		t.Fatalf("merge must grow the limit, len=%d cap=%d", a.Len(), a.Cap())
	}
	a.Filter(SevWarning)
	if a.Len() != 2 {
		t.Fatalf("filter kept %d", a.Len())
	}
}

func TestReportBuilderAndDedupReporter(t *testing.T) {
	bag := NewBag(10)
	r := NewDedupReporter(BagReporter{Bag: bag})
	sp := source.Span{Start: 1, End: 3}
	for range 2 {
		ReportError(r, HierUndeclaredOverride, sp, "`area` shadows Shape.area").
			WithNote(source.Span{Start: 5, End: 6}, "declared here").
			WithFix("mark with overrides", FixEdit{Span: sp, NewText: "x"}).
			Emit()
	}
	if bag.Len() != 1 {
		t.Fatalf("dedup reporter let %d copies through", bag.Len())
	}
	d := bag.Items()[0]
	if len(d.Notes) != 1 || len(d.Fixes) != 1 || d.Fixes[0].Edits[0].NewText != "x" {
		t.Fatalf("builder lost details: %+v", d)
	}

	var nb *ReportBuilder
	nb.WithNote(sp, "ignored").Emit()

	b := ReportWarning(MultiReporter{BagReporter{Bag: bag}, NopReporter{}}, ManUnknownKey, sp, "k")
	b.Emit()
	b.Emit()
	if bag.Len() != 2 {
		t.Fatalf("Emit must fire once, got %d", bag.Len())
	}
}

func TestFormatShortDiagnostics(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("zoo.classes.toml", []byte("[[class]]\nname = \"Dog\"\n"))
	f := fs.Get(id)
	sp, _ := f.SpanOf(`"Dog"`, 0)

	diags := []Diagnostic{
		NewError(HierUndeclaredOverride, sp, "speak\nshadows").
			WithNote(source.Span{File: id, Start: 0, End: 1}, "base here"),
		New(SevWarning, ManRedefinedMember, source.Span{File: id, Start: 0, End: 1}, "dup"),
		NewError(ManParse, source.Span{File: 77}, "unresolvable"),
	}
	got := FormatShortDiagnostics(diags, fs, true)
	want := strings.Join([]string{
		"note HIE3002 zoo.classes.toml:1:1 base here",
		"warning MAN1006 zoo.classes.toml:1:1 dup",
		"error HIE3002 zoo.classes.toml:2:8 speak shadows",
	}, "\n")
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
	if FormatShortDiagnostics(nil, fs, false) != "" {
		t.Fatalf("expected empty output")
	}
}
